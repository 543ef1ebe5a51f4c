package workspace

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/asheshgoplani/piow/internal/config"
	"github.com/asheshgoplani/piow/internal/sway"
)

// FormatName fills the %n and %i placeholders of template. Every occurrence
// is replaced; anything else in the template is kept as is.
func FormatName(template string, number int, icons string) string {
	r := strings.NewReplacer(
		config.NumberPlaceholder, strconv.Itoa(number),
		config.IconPlaceholder, icons,
	)
	return r.Replace(template)
}

// RenameCommand is the rename of one workspace.
type RenameCommand struct {
	// Workspace is the current name of the workspace.
	Workspace string
	// NewName is the formatted name.
	NewName string
	// Identifiers are the application identifiers the name was built from.
	Identifiers []string
	// Command is the string sent to the window manager.
	Command string
}

// RenameWorkspaceCommand returns the rename command for a workspace.
func RenameWorkspaceCommand(current, newName string) string {
	return fmt.Sprintf("rename workspace '%s' to '%s'", current, newName)
}

// BuildRename builds the rename command for ws. ok is false when ws has no
// name or no number; those workspaces cannot be addressed and are skipped.
func BuildRename(ws *sway.Node, cfg *config.IconConfig) (RenameCommand, bool) {
	name, ok := ws.DisplayName()
	if !ok {
		return RenameCommand{}, false
	}
	num, ok := ws.Number()
	if !ok {
		return RenameCommand{}, false
	}

	ids := ExtractIdentifiers(ws)
	newName := FormatName(cfg.NameFormat(), num, ResolveIcons(ids, cfg))
	rc := RenameCommand{
		Workspace:   name,
		NewName:     newName,
		Identifiers: ids,
		Command:     RenameWorkspaceCommand(name, newName),
	}
	iconLog.Debug("rename_built",
		slog.String("workspace", name),
		slog.Any("apps", ids),
		slog.String("command", rc.Command),
	)
	return rc, true
}

// PlanAll builds the rename commands for every addressable workspace in the
// tree below root, in tree order.
func PlanAll(root *sway.Node, cfg *config.IconConfig) []RenameCommand {
	var out []RenameCommand
	for _, ws := range root.Workspaces() {
		if rc, ok := BuildRename(ws, cfg); ok {
			out = append(out, rc)
		}
	}
	return out
}
