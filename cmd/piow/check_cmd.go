package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/asheshgoplani/piow/internal/config"
	"github.com/asheshgoplani/piow/internal/daemon"
	"github.com/asheshgoplani/piow/internal/logging"
	"github.com/asheshgoplani/piow/internal/sway"
	"github.com/asheshgoplani/piow/internal/workspace"
)

// handleCheck prints the name every workspace would get. With --apply the
// renames are sent as well.
func handleCheck(settings config.Settings, args []string, stdout io.Writer) error {
	fs, opts := newFlagSet("check", settings)
	apply := fs.Bool("apply", false, "send the rename commands")

	ok, err := opts.parse(fs, args, stdout)
	if !ok {
		return err
	}
	if err := logging.Init(opts.loggingConfig()); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Shutdown()

	return runCheck(context.Background(), opts, *apply, stdout, colorProfile(stdout))
}

func runCheck(ctx context.Context, opts *options, apply bool, stdout io.Writer, profile termenv.Profile) error {
	cfg, _ := opts.loadConfig()

	socket, err := opts.socketPath()
	if err != nil {
		return err
	}
	conn, err := sway.Dial(ctx, socket)
	if err != nil {
		return err
	}
	defer conn.Close()

	root, err := conn.GetTree(ctx)
	if err != nil {
		return fmt.Errorf("get tree: %w", err)
	}
	plan := workspace.PlanAll(root, cfg)
	renderPlan(stdout, plan, cfg, profile)

	if !apply {
		return nil
	}
	if err := daemon.New(conn, cfg).SyncOnce(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nrenamed %d workspace(s)\n", len(plan))
	return nil
}

// colorProfile returns the terminal's profile, or plain ASCII when w is not
// a terminal.
func colorProfile(w io.Writer) termenv.Profile {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

var planColumns = []string{"WORKSPACE", "NEW NAME", "APPLICATIONS"}

func renderPlan(w io.Writer, plan []workspace.RenameCommand, cfg *config.IconConfig, profile termenv.Profile) {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	header := r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dim := r.NewStyle().Foreground(lipgloss.Color("8"))

	rows := make([][]string, 0, len(plan))
	for _, rc := range plan {
		apps := strings.Join(rc.Identifiers, ", ")
		if apps == "" {
			apps = "-"
		}
		rows = append(rows, []string{rc.Workspace, rc.NewName, apps})
	}

	widths := make([]int, len(planColumns))
	for i, col := range planColumns {
		widths[i] = runewidth.StringWidth(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	fmt.Fprintln(w, header.Render(formatRow(planColumns, widths)))
	for _, row := range rows {
		fmt.Fprintln(w, formatRow(row, widths))
	}
	fmt.Fprintln(w, dim.Render(fmt.Sprintf("%d workspace(s), config: %s", len(rows), cfg.Source())))
}

// formatRow pads every cell but the last to its column width. Icon glyphs
// can be wider than one cell, so widths are display widths.
func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			b.WriteString(cell)
			break
		}
		b.WriteString(runewidth.FillRight(cell, widths[i]))
		b.WriteString("  ")
	}
	return b.String()
}
