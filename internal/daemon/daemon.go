// Package daemon keeps workspace names in sync with their windows. It renames
// every workspace once at startup, then reacts to workspace focus events and
// configuration reloads until the event stream ends.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/asheshgoplani/piow/internal/config"
	"github.com/asheshgoplani/piow/internal/logging"
	"github.com/asheshgoplani/piow/internal/sway"
	"github.com/asheshgoplani/piow/internal/workspace"
)

var daemonLog = logging.ForComponent(logging.CompDaemon)

// ErrUnexpectedEvent is returned when the stream delivers an event of a
// category that was not subscribed to.
var ErrUnexpectedEvent = errors.New("unexpected event category")

// Commander sends commands to the window manager. *sway.Conn implements it.
type Commander interface {
	RunCommand(ctx context.Context, command string) ([]sway.CommandResult, error)
	GetTree(ctx context.Context) (*sway.Node, error)
}

// EventStream is an ordered source of events. *sway.Subscription implements
// it. Events is closed when the stream ends; Err then tells why.
type EventStream interface {
	Events() <-chan sway.Event
	Err() error
}

// Daemon renames workspaces. The configuration is only touched by the
// goroutine running Run, so a reload never lands in the middle of an event.
type Daemon struct {
	cmd     Commander
	cfg     *config.IconConfig
	reloads <-chan *config.IconConfig
}

// New returns a daemon sending its commands through cmd.
func New(cmd Commander, cfg *config.IconConfig) *Daemon {
	return &Daemon{cmd: cmd, cfg: cfg}
}

// WatchConfig makes Run switch to every configuration received on updates.
// Must be called before Run.
func (d *Daemon) WatchConfig(updates <-chan *config.IconConfig) {
	d.reloads = updates
}

// Config returns the configuration currently in use.
func (d *Daemon) Config() *config.IconConfig {
	return d.cfg
}

// SyncOnce renames every workspace of the current tree.
func (d *Daemon) SyncOnce(ctx context.Context) error {
	root, err := d.cmd.GetTree(ctx)
	if err != nil {
		return fmt.Errorf("get tree: %w", err)
	}
	plan := workspace.PlanAll(root, d.cfg)
	for _, rc := range plan {
		if err := d.submit(ctx, rc); err != nil {
			return err
		}
	}
	daemonLog.Info("workspaces_synced", slog.Int("count", len(plan)))
	return nil
}

// Run handles events from stream until it ends or ctx is done. A stream that
// ends cleanly and a cancelled ctx both return nil. Transport failures and
// events of an unexpected category are returned.
func (d *Daemon) Run(ctx context.Context, stream EventStream) error {
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if err := stream.Err(); err != nil {
					return fmt.Errorf("event stream: %w", err)
				}
				daemonLog.Info("event_stream_closed")
				return nil
			}
			if err := d.Handle(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		case cfg, ok := <-d.reloads:
			if !ok {
				d.reloads = nil
				continue
			}
			d.cfg = cfg
			daemonLog.Info("config_applied", slog.String("source", cfg.Source()))
			if err := d.SyncOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Handle processes a single event. Only focus changes rename anything: the
// newly focused workspace first, then the one focus left.
func (d *Daemon) Handle(ctx context.Context, ev sway.Event) error {
	if ev.Type != sway.EventWorkspace {
		return fmt.Errorf("%w: %s", ErrUnexpectedEvent, ev.Type)
	}
	we, err := ev.Workspace()
	if err != nil {
		return err
	}
	if we.Change != sway.ChangeFocus {
		logging.Aggregate(logging.CompDaemon, "event_ignored", slog.String("change", we.Change))
		return nil
	}

	for _, ws := range []*sway.Node{we.Current, we.Old} {
		if ws == nil {
			continue
		}
		rc, ok := workspace.BuildRename(ws, d.cfg)
		if !ok {
			daemonLog.Debug("workspace_skipped", slog.Int64("id", ws.ID))
			continue
		}
		if err := d.submit(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

// submit sends one rename. A rename the window manager rejects is logged and
// dropped; only a transport failure is returned.
func (d *Daemon) submit(ctx context.Context, rc workspace.RenameCommand) error {
	results, err := d.cmd.RunCommand(ctx, rc.Command)
	if err != nil {
		return fmt.Errorf("rename workspace %q: %w", rc.Workspace, err)
	}
	for _, r := range results {
		if err := r.Err(); err != nil {
			daemonLog.Debug("rename_failed",
				slog.String("workspace", rc.Workspace),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
