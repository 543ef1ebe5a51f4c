package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/piow/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompConfig)

// DefaultDebounce coalesces the burst of writes editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads the config file when it changes on disk and delivers every
// successfully parsed config on Updates(). Parse failures are logged and the
// previous config stays in effect.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	updates  chan *IconConfig
	debounce time.Duration
	errLog   rate.Sometimes
}

// NewWatcher watches the directory containing path, so that files replaced
// by rename are still noticed.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		watcher:  fw,
		updates:  make(chan *IconConfig, 1),
		debounce: DefaultDebounce,
		errLog:   rate.Sometimes{First: 3, Interval: time.Minute},
	}, nil
}

// Path is the absolute path of the watched file.
func (w *Watcher) Path() string { return w.path }

// Updates delivers reloaded configs.
func (w *Watcher) Updates() <-chan *IconConfig { return w.updates }

// Run watches until ctx is done or the fsnotify watcher shuts down. It closes
// the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.errLog.Do(func() {
				watchLog.Warn("config_watcher_error", slog.String("error", err.Error()))
			})
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write) != 0
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		watchLog.Warn("config_reload_failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}

	watchLog.Info("config_reloaded",
		slog.String("path", w.path),
		slog.Int("icons", len(cfg.icons)),
	)
	select {
	case w.updates <- cfg:
	case <-ctx.Done():
	}
}
