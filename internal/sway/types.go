package sway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node types reported in the tree.
const (
	NodeRoot        = "root"
	NodeOutput      = "output"
	NodeWorkspace   = "workspace"
	NodeCon         = "con"
	NodeFloatingCon = "floating_con"
)

// Workspace event change kinds.
const (
	ChangeFocus  = "focus"
	ChangeInit   = "init"
	ChangeEmpty  = "empty"
	ChangeRename = "rename"
	ChangeMove   = "move"
	ChangeReload = "reload"
	ChangeUrgent = "urgent"
)

// WindowProperties is the X11 metadata of an Xwayland (or i3) window.
type WindowProperties struct {
	Class    string `json:"class,omitempty"`
	Instance string `json:"instance,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Node is one entry of the layout tree as returned by GET_TREE and carried
// in workspace events. Optional fields are pointers.
type Node struct {
	ID               int64             `json:"id"`
	Name             *string           `json:"name"`
	Type             string            `json:"type"`
	Num              *int              `json:"num,omitempty"`
	Focused          bool              `json:"focused"`
	Nodes            []*Node           `json:"nodes"`
	FloatingNodes    []*Node           `json:"floating_nodes"`
	AppID            *string           `json:"app_id,omitempty"`
	WindowProperties *WindowProperties `json:"window_properties,omitempty"`
	Representation   *string           `json:"representation,omitempty"`
}

// DisplayName returns the node name and whether it is set.
func (n *Node) DisplayName() (string, bool) {
	if n == nil || n.Name == nil {
		return "", false
	}
	return *n.Name, true
}

// Number returns the workspace number and whether it is set.
func (n *Node) Number() (int, bool) {
	if n == nil || n.Num == nil {
		return 0, false
	}
	return *n.Num, true
}

// AppIdentifier returns the Wayland app_id, if any.
func (n *Node) AppIdentifier() (string, bool) {
	if n == nil || n.AppID == nil || *n.AppID == "" {
		return "", false
	}
	return *n.AppID, true
}

// WindowClass returns the X11 window class, if any.
func (n *Node) WindowClass() (string, bool) {
	if n == nil || n.WindowProperties == nil || n.WindowProperties.Class == "" {
		return "", false
	}
	return n.WindowProperties.Class, true
}

// TreeRepresentation returns the compact layout string, e.g. `H[firefox V[foot foot]]`.
func (n *Node) TreeRepresentation() (string, bool) {
	if n == nil || n.Representation == nil || *n.Representation == "" {
		return "", false
	}
	return *n.Representation, true
}

// Workspaces returns every workspace below n in tree order, skipping the
// internal ones (scratchpad) whose names start with "__".
func (n *Node) Workspaces() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur == nil {
			return
		}
		if cur.Type == NodeWorkspace {
			if name, ok := cur.DisplayName(); ok && !strings.HasPrefix(name, "__") {
				out = append(out, cur)
			}
			return
		}
		for _, child := range cur.Nodes {
			walk(child)
		}
	}
	walk(n)
	return out
}

// Workspace is an entry of the GET_WORKSPACES reply.
type Workspace struct {
	ID      int64  `json:"id"`
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Focused bool   `json:"focused"`
	Urgent  bool   `json:"urgent"`
	Output  string `json:"output"`
}

// WorkspaceEvent is the payload of a workspace event. Current and Old are
// nil when the window manager leaves that side out.
type WorkspaceEvent struct {
	Change  string `json:"change"`
	Current *Node  `json:"current"`
	Old     *Node  `json:"old"`
}

// CommandResult is the outcome of one command in a RUN_COMMAND reply.
type CommandResult struct {
	Success    bool   `json:"success"`
	ParseError bool   `json:"parse_error,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Err returns nil for a successful command.
func (r CommandResult) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("command failed")
	}
	return fmt.Errorf("command failed: %s", r.Error)
}

// Version is the GET_VERSION reply.
type Version struct {
	Major                int    `json:"major"`
	Minor                int    `json:"minor"`
	Patch                int    `json:"patch"`
	HumanReadable        string `json:"human_readable"`
	LoadedConfigFileName string `json:"loaded_config_file_name"`
}

// Event is one message received on a subscription, in arrival order.
type Event struct {
	Type    EventType
	Payload json.RawMessage
}

// Workspace decodes the payload of a workspace event.
func (e Event) Workspace() (*WorkspaceEvent, error) {
	if e.Type != EventWorkspace {
		return nil, fmt.Errorf("decode workspace event: got %s event", e.Type)
	}
	var ev WorkspaceEvent
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return nil, fmt.Errorf("decode workspace event: %w", err)
	}
	return &ev, nil
}
