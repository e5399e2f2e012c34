// Package ui is the terminal adapter for the explorer engine: a flat
// projection of the solution tree with cursor navigation, expand and
// collapse keys wired to the provider's host hooks, and a status line
// carrying the engine's working indicator. The engine itself never
// imports this package; it talks through explorer.Host.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/NuranDp/vscode-solution-explorer/pkg/config"
	"github.com/NuranDp/vscode-solution-explorer/pkg/debug"
	"github.com/NuranDp/vscode-solution-explorer/pkg/explorer"
	"github.com/NuranDp/vscode-solution-explorer/pkg/export"
	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// row is one visible line of the tree: a node plus its render depth.
type row struct {
	node  *tree.Node
	depth int
}

// Internal messages.
type rootsLoadedMsg struct {
	err error
}

type childrenLoadedMsg struct {
	node *tree.Node
	err  error
}

type exportDoneMsg struct {
	path string
	err  error
}

// Model is the Bubble Tea model for the solution tree view.
type Model struct {
	provider *explorer.Provider
	cfg      config.Config
	indent   string

	rows   []row
	cursor int
	offset int

	width  int
	height int

	spin         spinner.Model
	working      int
	workingLabel string

	status    string
	statusErr bool

	showHelp bool
	help     viewport.Model
	helpText string

	exportPath string
	quitting   bool
}

// NewModel creates the tree view over provider. cfg supplies UI
// preferences and the favorite slots. exportPath is where the outline
// snapshot lands on 'e'; empty defaults to solution-outline.svg in the
// working directory.
func NewModel(provider *explorer.Provider, cfg config.Config, exportPath string) Model {
	if exportPath == "" {
		exportPath = "solution-outline.svg"
	}
	indentWidth := cfg.UI.IndentWidth
	if indentWidth <= 0 {
		indentWidth = 2
	}
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = workingStyle
	return Model{
		provider:   provider,
		cfg:        cfg,
		indent:     strings.Repeat(" ", indentWidth),
		spin:       sp,
		width:      80,
		height:     24,
		exportPath: exportPath,
	}
}

// Init starts the first build pass.
func (m Model) Init() tea.Cmd {
	return m.loadRootsCmd()
}

func (m Model) loadRootsCmd() tea.Cmd {
	provider := m.provider
	return func() tea.Msg {
		_, err := provider.GetChildren(context.Background(), nil)
		return rootsLoadedMsg{err: err}
	}
}

func (m Model) expandCmd(n *tree.Node) tea.Cmd {
	provider := m.provider
	return func() tea.Msg {
		_, err := n.GetChildren(context.Background())
		if err != nil {
			return childrenLoadedMsg{node: n, err: err}
		}
		provider.HandleExpanded(n)
		return childrenLoadedMsg{node: n}
	}
}

func (m Model) exportCmd() tea.Cmd {
	roots := m.provider.Collection().Roots()
	path := m.exportPath
	return func() tea.Msg {
		err := export.SaveOutline(context.Background(), export.OutlineOptions{
			Path:  path,
			Roots: roots,
		})
		return exportDoneMsg{path: path, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width - 4
		m.help.Height = msg.Height - 4
		m.clampViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case rootsLoadedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("load failed: %v", msg.err))
		}
		m.rebuildRows()
		return m, nil

	case childrenLoadedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("cannot open %s: %v", msg.node.Label(), msg.err))
		}
		m.rebuildRows()
		return m, nil

	case TreeChangedMsg:
		// A nil node means the collection itself was invalidated and
		// needs a fresh build pass.
		if msg.Node == nil {
			return m, m.loadRootsCmd()
		}
		m.rebuildRows()
		return m, nil

	case RevealMsg:
		m.rebuildRows()
		if msg.Node == nil {
			return m, nil
		}
		if i := m.rowIndex(msg.Node.ID()); i >= 0 {
			// A plain reveal only scrolls the node into view; the
			// cursor moves when the caller asked for focus or
			// selection.
			if msg.Focus || msg.Select {
				m.cursor = i
				m.clampViewport()
			} else {
				m.ensureVisible(i)
			}
			if msg.Select {
				m.provider.HandleSelectionChanged(msg.Node)
			}
		} else {
			debug.Log("reveal target %s not visible", msg.Node.ID())
		}
		return m, nil

	case WorkingMsg:
		if msg.Show {
			m.working++
			m.workingLabel = msg.Label
			if m.working == 1 {
				return m, m.spin.Tick
			}
			return m, nil
		}
		if m.working > 0 {
			m.working--
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("export failed: %v", msg.err))
		} else {
			m.setNotice(fmt.Sprintf("outline saved to %s", msg.path))
		}
		return m, nil

	case spinner.TickMsg:
		if m.working == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.showHelp {
		var cmd tea.Cmd
		m.help, cmd = m.help.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch msg.String() {
		case "q", "esc", "?":
			m.showHelp = false
			return m, nil
		}
		var cmd tea.Cmd
		m.help, cmd = m.help.Update(msg)
		return m, cmd
	}

	m.status = ""
	m.statusErr = false

	// Number keys 1-9 jump to a solution root: config favorites first,
	// then list position.
	if key := msg.String(); len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		if i := m.solutionRowIndex(int(key[0] - '0')); i >= 0 {
			m.setCursor(i)
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		m.moveCursor(-1)
		return m, nil

	case "down", "j":
		m.moveCursor(1)
		return m, nil

	case "g", "home":
		m.setCursor(0)
		return m, nil

	case "G", "end":
		m.setCursor(len(m.rows) - 1)
		return m, nil

	case "right", "l", "enter":
		n := m.currentNode()
		if n == nil {
			return m, nil
		}
		switch n.State() {
		case tree.Collapsed:
			return m, m.expandCmd(n)
		case tree.Expanded:
			// Already open: step into the first child.
			m.moveCursor(1)
		}
		return m, nil

	case "left", "h":
		n := m.currentNode()
		if n == nil {
			return m, nil
		}
		if n.State() == tree.Expanded {
			m.provider.HandleCollapsed(n)
			m.rebuildRows()
			return m, nil
		}
		if parent := n.Parent(); parent != nil {
			if i := m.rowIndex(parent.ID()); i >= 0 {
				m.setCursor(i)
			}
		}
		return m, nil

	case "y":
		n := m.currentNode()
		if n == nil {
			return m, nil
		}
		if err := clipboard.WriteAll(n.Path()); err != nil {
			m.setError(fmt.Sprintf("clipboard: %v", err))
		} else {
			m.setNotice(fmt.Sprintf("copied %s", filepath.Base(n.Path())))
		}
		return m, nil

	case "r":
		m.provider.Refresh(nil)
		return m, nil

	case "e":
		return m, m.exportCmd()

	case "?":
		m.openHelp()
		return m, nil
	}
	return m, nil
}

// rebuildRows projects the materialized tree into visible lines:
// a node shows when every ancestor is expanded, and an expanded node
// with no cache yet simply shows childless until its load lands.
func (m *Model) rebuildRows() {
	prev := ""
	if n := m.currentNode(); n != nil {
		prev = n.ID()
	}

	m.rows = m.rows[:0]
	var walk func(n *tree.Node, depth int)
	walk = func(n *tree.Node, depth int) {
		m.rows = append(m.rows, row{node: n, depth: depth})
		if n.State() != tree.Expanded {
			return
		}
		for _, child := range n.LoadedChildren() {
			walk(child, depth+1)
		}
	}
	for _, root := range m.provider.Collection().Roots() {
		walk(root, 0)
	}

	// Keep the cursor on the same node across rebuilds when it
	// survived, in place when it did not.
	if prev != "" {
		if i := m.rowIndex(prev); i >= 0 {
			m.cursor = i
		}
	}
	m.clampCursor()
	m.clampViewport()
}

// solutionRowIndex maps a number key (1-9) to a root row. A favorite
// assigned to the key wins; otherwise the key counts root rows in
// order. Returns -1 when nothing answers to the key.
func (m *Model) solutionRowIndex(n int) int {
	if sol := m.cfg.FavoriteSolution(n); sol != nil {
		for i, r := range m.rows {
			if r.depth == 0 && r.node.Path() == sol.ResolvedFile() {
				return i
			}
		}
	}
	seen := 0
	for i, r := range m.rows {
		if r.depth != 0 {
			continue
		}
		seen++
		if seen == n {
			return i
		}
	}
	return -1
}

func (m *Model) rowIndex(id string) int {
	for i, r := range m.rows {
		if r.node.ID() == id {
			return i
		}
	}
	return -1
}

func (m *Model) currentNode() *tree.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].node
}

func (m *Model) moveCursor(delta int) {
	m.setCursor(m.cursor + delta)
}

func (m *Model) setCursor(i int) {
	before := m.cursor
	m.cursor = i
	m.clampCursor()
	m.clampViewport()
	if m.cursor != before {
		m.provider.HandleSelectionChanged(m.currentNode())
	}
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) clampViewport() {
	visible := m.visibleRows()
	if visible <= 0 {
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// ensureVisible scrolls the viewport so row i shows, leaving the
// cursor where it is.
func (m *Model) ensureVisible(i int) {
	visible := m.visibleRows()
	if visible <= 0 {
		return
	}
	if i < m.offset {
		m.offset = i
	}
	if i >= m.offset+visible {
		m.offset = i - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// visibleRows is the row budget after the header and status lines.
func (m *Model) visibleRows() int {
	if m.cfg.UI.Headless {
		return m.height - 2
	}
	return m.height - 3
}

func (m *Model) setNotice(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m *Model) openHelp() {
	if m.helpText == "" {
		wrap := m.width - 6
		if wrap > 78 {
			wrap = 78
		}
		if wrap < 20 {
			wrap = 20
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			if out, err := renderer.Render(helpMarkdown); err == nil {
				m.helpText = out
			}
		}
		if m.helpText == "" {
			m.helpText = helpMarkdown
		}
	}
	m.help = viewport.New(m.width-4, m.height-4)
	m.help.SetContent(m.helpText)
	m.showHelp = true
}

// View renders the tree.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.help.View() + "\n" + helpHintStyle.Render("  ?/esc close · arrows scroll")
	}

	var b strings.Builder
	if !m.cfg.UI.Headless {
		b.WriteString(m.headerView())
		b.WriteString("\n")
	}

	visible := m.visibleRows()
	if visible < 1 {
		visible = 1
	}
	end := m.offset + visible
	if end > len(m.rows) {
		end = len(m.rows)
	}
	if len(m.rows) == 0 {
		b.WriteString(statusBarStyle.Render("  no solutions registered — press ? for help"))
		b.WriteString("\n")
	}
	for i := m.offset; i < end; i++ {
		b.WriteString(m.rowView(i))
		b.WriteString("\n")
	}
	for i := end - m.offset; i < visible && len(m.rows) > 0; i++ {
		b.WriteString("\n")
	}

	b.WriteString(m.statusView())
	return b.String()
}

func (m Model) headerView() string {
	roots := m.provider.Collection().Roots()
	title := headerStyle.Render("slnx")
	count := headerCountStyle.Render(fmt.Sprintf(" · %d solution(s)", len(roots)))
	return truncateWidth(title+count, m.width, "")
}

func (m Model) rowView(i int) string {
	r := m.rows[i]
	n := r.node

	indent := strings.Repeat(m.indent, r.depth)
	glyph := kindGlyph(n.Kind(), n.State())
	label := kindStyle(n.Kind()).Render(n.Label())

	line := fmt.Sprintf("%s%s %s", indent, branchStyle.Render(glyph), label)
	if i == m.cursor {
		raw := fmt.Sprintf("%s%s %s", indent, glyph, n.Label())
		return selectedRowStyle.Render(truncateWidth(padRight(raw, m.width), m.width, "…"))
	}
	if lipgloss.Width(line) > m.width {
		raw := fmt.Sprintf("%s%s %s", indent, glyph, n.Label())
		return truncate(raw, m.width)
	}
	return line
}

func (m Model) statusView() string {
	left := ""
	switch {
	case m.working > 0:
		left = workingStyle.Render(m.spin.View() + " " + m.workingLabel)
	case m.status != "" && m.statusErr:
		left = statusErrorStyle.Render(m.status)
	case m.status != "":
		left = statusNoticeStyle.Render(m.status)
	}

	hints := helpHintStyle.Render("j/k move · enter open · y copy · r refresh · e export · ? help · q quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(hints)
	if gap < 1 {
		return truncateWidth(left, m.width, "…")
	}
	return left + strings.Repeat(" ", gap) + hints
}

const helpMarkdown = `# slnx

A solution browser for the terminal. The tree remembers which nodes
you had open and which one you were on, and restores both after a
rebuild.

## Keys

| key | action |
|-----|--------|
| j / k, arrows | move cursor |
| enter / l | expand node, or step into it |
| h | collapse node, or jump to parent |
| g / G | first / last row |
| 1-9 | jump to a solution root (favorites first) |
| y | copy node path to clipboard |
| r | rebuild the tree from disk |
| e | export outline snapshot (SVG) |
| ? | this help |
| q | quit |

## Configuration

Solutions are registered in ` + "`~/.config/slnx/config.yaml`" + `.
Expansion state persists under ` + "`~/.local/state/slnx/`" + `.
`
