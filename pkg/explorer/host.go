// Package explorer orchestrates the solution tree: it owns the
// collection and its persisted expansion state, rebuilds on change
// events, and replays saved expansion after a rebuild through a
// batched, bounded restore session.
//
// The engine talks to its UI through the small Host capability surface
// below, so any toolkit can adapt it; the bubbletea adapter lives in
// pkg/ui.
package explorer

import (
	"context"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// RevealOptions controls how the host surfaces a node.
type RevealOptions struct {
	// Select moves the selection to the node instead of only
	// scrolling it into view.
	Select bool
	// Focus moves the cursor to the node without recording a
	// selection change.
	Focus bool
}

// Host is the capability surface the engine consumes from its UI.
type Host interface {
	// Reveal scrolls the node into view, optionally selecting it.
	Reveal(ctx context.Context, n *tree.Node, opts RevealOptions) error
	// NotifyChanged signals that n's subtree changed. A nil node means
	// the whole tree.
	NotifyChanged(n *tree.Node)
	// ShowWorking displays a busy indicator with the given label and
	// returns the function that hides it again.
	ShowWorking(label string) func()
}

// NopHost discards every host call. Used headless (export mode) and in
// tests that do not care about reveals.
type NopHost struct{}

// Reveal does nothing.
func (NopHost) Reveal(context.Context, *tree.Node, RevealOptions) error { return nil }

// NotifyChanged does nothing.
func (NopHost) NotifyChanged(*tree.Node) {}

// ShowWorking does nothing.
func (NopHost) ShowWorking(string) func() { return func() {} }
