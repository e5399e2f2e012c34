package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/NuranDp/vscode-solution-explorer/pkg/explorer"
	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// Messages the engine posts into the Bubble Tea program.

// RevealMsg asks the view to scroll the node into view, optionally
// selecting it.
type RevealMsg struct {
	Node   *tree.Node
	Select bool
	Focus  bool
}

// TreeChangedMsg reports that the tree data changed. A nil node means
// everything did.
type TreeChangedMsg struct {
	Node *tree.Node
}

// WorkingMsg toggles the busy indicator in the status line.
type WorkingMsg struct {
	Label string
	Show  bool
}

// Bridge adapts explorer.Host to a running Bubble Tea program. The
// engine calls it from its own goroutines; the bridge forwards each
// call as a message so all UI mutation happens on the program loop.
//
// Calls made before Attach are buffered and flushed on attach, since
// the provider may finish its first build before the program has
// started.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
	backlog []tea.Msg
}

var _ explorer.Host = (*Bridge)(nil)

// NewBridge creates an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach connects the bridge to a program and flushes buffered calls.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	backlog := b.backlog
	b.backlog = nil
	b.mu.Unlock()

	for _, msg := range backlog {
		p.Send(msg)
	}
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	if p == nil {
		b.backlog = append(b.backlog, msg)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	p.Send(msg)
}

// Reveal implements explorer.Host.
func (b *Bridge) Reveal(ctx context.Context, n *tree.Node, opts explorer.RevealOptions) error {
	b.send(RevealMsg{Node: n, Select: opts.Select, Focus: opts.Focus})
	return nil
}

// NotifyChanged implements explorer.Host.
func (b *Bridge) NotifyChanged(n *tree.Node) {
	b.send(TreeChangedMsg{Node: n})
}

// ShowWorking implements explorer.Host.
func (b *Bridge) ShowWorking(label string) func() {
	b.send(WorkingMsg{Label: label, Show: true})
	var once sync.Once
	return func() {
		once.Do(func() {
			b.send(WorkingMsg{Label: label, Show: false})
		})
	}
}
