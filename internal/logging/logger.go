package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component constants for structured logging.
const (
	CompIPC       = "ipc"
	CompConfig    = "config"
	CompDaemon    = "daemon"
	CompWorkspace = "workspace"
)

// CrashFileName is written next to the log file by DumpCrash.
const CrashFileName = "crash.log"

// Config holds logging configuration.
type Config struct {
	// File is the log file path. Empty means stderr (or syslog).
	File string

	// Syslog sends records to the system logger instead of stderr.
	// Ignored when File is set.
	Syslog bool

	// Tag identifies records in syslog (default: "piow")
	Tag string

	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format is "text" (default) or "json"
	Format string

	// MaxSizeMB is the max size in MB before rotation (default: 10)
	MaxSizeMB int

	// MaxBackups is rotated files to keep (default: 3)
	MaxBackups int

	// MaxAgeDays is days to keep rotated files (default: 10)
	MaxAgeDays int

	// Compress rotated files
	Compress bool

	// RingBufferSize is the in-memory ring buffer size in bytes (default: 1MB)
	RingBufferSize int

	// AggregateIntervalSecs is the aggregation flush interval (default: 60)
	AggregateIntervalSecs int
}

var (
	globalLogger *slog.Logger
	globalRing   *RingBuffer
	globalAgg    *Aggregator
	globalMu     sync.RWMutex
	closers      []io.Closer
	crashDir     string
)

// ParseLevel maps a level name to a slog level. Unknown names map to warn.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug", "trace":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Init initializes the global logging system. It replaces any previous
// configuration.
func Init(cfg Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	shutdownLocked()

	// Defaults
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 10
	}
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 1024 * 1024
	}
	if cfg.AggregateIntervalSecs <= 0 {
		cfg.AggregateIntervalSecs = 60
	}
	if cfg.Tag == "" {
		cfg.Tag = "piow"
	}

	var (
		sink      io.Writer
		sysw      *syslog.Writer
		omitTime  bool
		sinkClose io.Closer
	)
	switch {
	case cfg.File != "":
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		sink, sinkClose = lj, lj
		crashDir = filepath.Dir(cfg.File)
	case cfg.Syslog:
		w, err := syslog.New(syslog.LOG_USER|syslog.LOG_WARNING, cfg.Tag)
		if err != nil {
			globalLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))
			return fmt.Errorf("connect to syslog: %w", err)
		}
		sysw, sinkClose = w, w
		// syslog stamps its own time.
		omitTime = true
	default:
		sink = os.Stderr
		omitTime = true
	}
	if sinkClose != nil {
		closers = append(closers, sinkClose)
	}

	// Ring buffer for crash dumps
	globalRing = NewRingBuffer(cfg.RingBufferSize)

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if omitTime {
		handlerOpts.ReplaceAttr = dropTime
	}
	newHandler := func(w io.Writer) slog.Handler {
		if cfg.Format == "json" {
			return slog.NewJSONHandler(w, handlerOpts)
		}
		return slog.NewTextHandler(w, handlerOpts)
	}

	var handler slog.Handler
	if sysw != nil {
		handler = newSyslogHandler(sysw, globalRing, newHandler)
	} else {
		handler = newHandler(io.MultiWriter(sink, globalRing))
	}
	globalLogger = slog.New(handler)

	globalAgg = NewAggregator(globalLogger, cfg.AggregateIntervalSecs)
	globalAgg.Start()
	return nil
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// Logger returns the global logger. Safe to call before Init, in which case
// warnings and errors go to stderr.
func Logger() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return fallbackLogger
	}
	return globalLogger
}

var fallbackLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level:       slog.LevelWarn,
	ReplaceAttr: dropTime,
}))

// ForComponent returns a sub-logger with the component field set.
// Uses a dynamicHandler so that package-level loggers created before Init()
// use the real handler once Init() runs.
func ForComponent(name string) *slog.Logger {
	return slog.New(&dynamicHandler{
		component: name,
	})
}

// dynamicHandler implements slog.Handler by delegating to the current global
// handler at log time.
type dynamicHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *dynamicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler()
	handler = handler.WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &dynamicHandler{component: h.component, attrs: newAttrs, group: h.group}
}

func (h *dynamicHandler) WithGroup(name string) slog.Handler {
	return &dynamicHandler{component: h.component, attrs: h.attrs, group: name}
}

// Aggregate records a high-frequency event for batched logging.
func Aggregate(component, key string, fields ...slog.Attr) {
	globalMu.RLock()
	agg := globalAgg
	globalMu.RUnlock()
	if agg != nil {
		agg.Record(component, key, fields...)
	}
}

// DumpCrash writes the ring buffer next to the log file. It does nothing
// when logging to stderr or syslog and returns the path written otherwise.
func DumpCrash() (string, error) {
	globalMu.RLock()
	ring, dir := globalRing, crashDir
	globalMu.RUnlock()
	if ring == nil || dir == "" {
		return "", nil
	}
	path := filepath.Join(dir, CrashFileName)
	if err := ring.DumpToFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// Shutdown flushes the aggregator and closes writers.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	shutdownLocked()
}

func shutdownLocked() {
	if globalAgg != nil {
		globalAgg.Stop()
		globalAgg = nil
	}
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
	globalLogger = nil
	globalRing = nil
	crashDir = ""
}
