package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/piow/internal/config"
	"github.com/asheshgoplani/piow/internal/daemon"
	"github.com/asheshgoplani/piow/internal/logging"
	"github.com/asheshgoplani/piow/internal/sway"
)

var runLog = logging.ForComponent(logging.CompDaemon)

// handleRun runs the renaming daemon until the window manager goes away.
func handleRun(settings config.Settings, args []string, stdout io.Writer) error {
	fs, opts := newFlagSet("run", settings)
	once := fs.Bool("once", false, "rename all workspaces once and exit")
	watch := fs.Bool("watch", settings.Watch, "reload the configuration when it changes")

	ok, err := opts.parse(fs, args, stdout)
	if !ok {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return runDaemon(ctx, opts, *once, *watch)
}

func runDaemon(ctx context.Context, opts *options, once, watch bool) (err error) {
	if err := logging.Init(opts.loggingConfig()); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Shutdown()
	defer func() {
		if err == nil {
			return
		}
		runLog.Error("daemon_failed", slog.String("error", err.Error()))
		if path, dumpErr := logging.DumpCrash(); dumpErr == nil && path != "" {
			fmt.Fprintf(os.Stderr, "piow: recent log written to %s\n", path)
		}
	}()

	cfg, cfgPath := opts.loadConfig()

	socket, err := opts.socketPath()
	if err != nil {
		return err
	}
	conn, err := sway.Dial(ctx, socket)
	if err != nil {
		return err
	}
	defer conn.Close()

	d := daemon.New(conn, cfg)
	if once {
		return d.SyncOnce(ctx)
	}

	// Subscribe before the first sync so no focus change falls in between.
	sub, err := sway.Subscribe(ctx, socket, sway.EventWorkspace)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := d.SyncOnce(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	gctx, stop := context.WithCancel(gctx)
	defer stop()

	if watch && cfgPath != "" {
		w, err := config.NewWatcher(cfgPath)
		if err != nil {
			runLog.Warn("config_watch_disabled", slog.String("error", err.Error()))
		} else {
			d.WatchConfig(w.Updates())
			g.Go(func() error { return w.Run(gctx) })
		}
	}
	g.Go(func() error {
		// The watcher has nothing left to do once the event stream ends.
		defer stop()
		return d.Run(gctx, sub)
	})

	runLog.Info("daemon_started",
		slog.String("socket", socket),
		slog.String("config", cfg.Source()),
	)
	return g.Wait()
}
