// Package workspace turns a workspace tree into the name piow gives it:
// application identifiers are collected from the tree, mapped to icons and
// formatted into a rename command.
package workspace

import (
	"strings"

	"github.com/asheshgoplani/piow/internal/sway"
)

// Kind says how a node contributes identifiers.
type Kind int

const (
	// KindEmpty nodes contribute nothing.
	KindEmpty Kind = iota
	// KindContainer nodes only hold other nodes.
	KindContainer
	// KindWindow nodes carry an app_id, a window class or both.
	KindWindow
	// KindRepresentation nodes expose identifiers only as layout text.
	KindRepresentation
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindWindow:
		return "window"
	case KindRepresentation:
		return "representation"
	default:
		return "empty"
	}
}

// Classify returns the kind of n. Structured identifiers win over children,
// children win over the representation.
func Classify(n *sway.Node) Kind {
	if n == nil {
		return KindEmpty
	}
	if _, ok := n.AppIdentifier(); ok {
		return KindWindow
	}
	if _, ok := n.WindowClass(); ok {
		return KindWindow
	}
	if len(n.Nodes) > 0 || len(n.FloatingNodes) > 0 {
		return KindContainer
	}
	if _, ok := n.TreeRepresentation(); ok {
		return KindRepresentation
	}
	return KindEmpty
}

// representationTokens are removed from a representation before splitting.
// Order matters: the layout prefixes go before the bare bracket. T[ and S[
// are the tabbed and stacked layouts.
var representationTokens = []string{"H[", "V[", "T[", "S[", "[", "]", `"`}

// ExtractIdentifiers returns the application identifiers found below ws,
// depth first: tiled children, then the node's own identifiers, then the
// floating windows. When no node carries a structured identifier the
// workspace representation is parsed instead. Duplicates are kept.
func ExtractIdentifiers(ws *sway.Node) []string {
	ids := walk(ws, nil)
	if len(ids) > 0 {
		return ids
	}
	if rep, ok := ws.TreeRepresentation(); ok {
		return ParseRepresentation(rep)
	}
	return nil
}

func walk(n *sway.Node, ids []string) []string {
	if n == nil {
		return ids
	}
	// A window may still hold children (i3 allows it), so every kind
	// descends.
	for _, child := range n.Nodes {
		ids = walk(child, ids)
	}
	switch Classify(n) {
	case KindWindow:
		if class, ok := n.WindowClass(); ok {
			ids = append(ids, class)
		}
		if appID, ok := n.AppIdentifier(); ok {
			ids = append(ids, appID)
		}
	case KindContainer, KindRepresentation, KindEmpty:
	}
	for _, floating := range n.FloatingNodes {
		ids = walk(floating, ids)
	}
	return ids
}

// ParseRepresentation splits a layout string such as
// `H[firefox V["foot" foot]]` into its identifiers.
func ParseRepresentation(rep string) []string {
	for _, tok := range representationTokens {
		rep = strings.ReplaceAll(rep, tok, "")
	}
	var ids []string
	for _, id := range strings.Split(rep, " ") {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
