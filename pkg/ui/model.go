// Package ui is the terminal presenter for a document tree: an expandable
// outline with incremental search and in-place editing.
//
// The Model owns the document for the lifetime of the program. File reloads
// and remote batches arrive as messages and are applied inside Update, so
// the tree only ever changes on the bubbletea goroutine.
package ui

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/remote"
	"github.com/vanderheijden86/modeltree/pkg/search"
	"github.com/vanderheijden86/modeltree/pkg/tree"
	"github.com/vanderheijden86/modeltree/pkg/watcher"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// detailHeight is the number of value lines shown for the selection.
const detailHeight = 4

// ReloadMsg carries a reloaded copy of the watched file.
type ReloadMsg struct{ Reload watcher.Reload }

// RemoteMsg carries a batch of ops from a peer.
type RemoteMsg struct{ Batch remote.Batch }

// WaitReloadCmd waits for the next reload.
func WaitReloadCmd(ch <-chan watcher.Reload) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return ReloadMsg{Reload: r}
	}
}

// WaitRemoteCmd waits for the next remote batch.
func WaitRemoteCmd(ch <-chan remote.Batch) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		b, ok := <-ch
		if !ok {
			return nil
		}
		return RemoteMsg{Batch: b}
	}
}

type promptKind int

const (
	promptNone promptKind = iota
	promptSearch
	promptRename
	promptEdit
	promptAddKind
)

// Option configures a Model.
type Option func(*Model)

// WithTitle sets the header title, usually the file name.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithReloads feeds file reloads into the model.
func WithReloads(ch <-chan watcher.Reload) Option {
	return func(m *Model) { m.reloads = ch }
}

// WithRemote feeds remote batches into the model.
func WithRemote(ch <-chan remote.Batch) Option {
	return func(m *Model) { m.remote = ch }
}

// WithRenderer sets the lipgloss renderer, e.g. one bound to the program's
// output.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(m *Model) { m.theme = DefaultTheme(r) }
}

// Model is the bubbletea model for the tree view.
type Model struct {
	doc    *document.Document
	tree   *tree.Model
	search *search.Engine

	theme Theme
	keys  keyMap
	help  help.Model
	input textinput.Model

	prompt promptKind
	title  string

	width, height int
	offset        int

	status    string
	statusErr bool

	reloads <-chan watcher.Reload
	remote  <-chan remote.Batch
}

// New creates a Model over a tree and its search engine. doc is the
// document the tree mirrors; reloads and remote batches are applied to it
// directly.
func New(doc *document.Document, t *tree.Model, e *search.Engine, opts ...Option) Model {
	ti := textinput.New()
	ti.CharLimit = 1024
	ti.Width = 40

	m := Model{
		doc:    doc,
		tree:   t,
		search: e,
		theme:  DefaultTheme(lipgloss.DefaultRenderer()),
		keys:   defaultKeyMap(),
		help:   help.New(),
		input:  ti,
		title:  "document",
		width:  80,
		height: 24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if _, ok := t.Selection(); !ok {
		_ = t.Select(t.Root())
	}
	return m
}

// Tree returns the underlying tree model.
func (m Model) Tree() *tree.Model { return m.tree }

// Status returns the current status line text.
func (m Model) Status() string { return m.status }

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.reloads != nil {
		cmds = append(cmds, WaitReloadCmd(m.reloads))
	}
	if m.remote != nil {
		cmds = append(cmds, WaitRemoteCmd(m.remote))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-16, 10)

	case ReloadMsg:
		n, err := watcher.Apply(m.doc, msg.Reload)
		switch {
		case err != nil:
			m.setError("reload: %v", err)
		case n > 0:
			m.setStatus("reloaded %s: %d changes", m.title, n)
		}
		cmd = WaitReloadCmd(m.reloads)

	case RemoteMsg:
		if err := remote.Apply(m.doc, msg.Batch); err != nil {
			m.setError("remote: %v", err)
		} else {
			m.setStatus("applied %d remote ops", len(msg.Batch.Ops))
		}
		cmd = WaitRemoteCmd(m.remote)

	case tea.KeyMsg:
		if m.prompt != promptNone {
			m, cmd = m.updatePrompt(msg)
		} else {
			m, cmd = m.handleKey(msg)
		}
	}
	m.ensureVisible()
	return m, cmd
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = true
	debug.Log("ui: %s", m.status)
}

func (m *Model) report(err error) {
	if err != nil {
		m.setError("%v", err)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	m.status = ""
	t := m.tree
	sel, _ := t.Selection()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.move(1)
	case key.Matches(msg, m.keys.Top):
		m.moveTo(0)
	case key.Matches(msg, m.keys.Bottom):
		m.moveTo(len(t.VisibleNodes()) - 1)
	case key.Matches(msg, m.keys.Collapse):
		if t.Kind(sel).IsContainer() && t.Expanded(sel) {
			m.report(t.SetExpanded(sel, false))
		} else if parent, ok := t.Parent(sel); ok {
			m.report(t.Select(parent))
		}
	case key.Matches(msg, m.keys.Expand):
		if !t.Kind(sel).IsContainer() {
			break
		}
		if !t.Expanded(sel) {
			m.report(t.SetExpanded(sel, true))
		} else if children := t.Children(sel); len(children) > 0 {
			m.report(t.Select(children[0]))
		}
	case key.Matches(msg, m.keys.Toggle):
		if t.Kind(sel).IsContainer() {
			m.report(t.ToggleExpanded(sel))
		}
	case key.Matches(msg, m.keys.ExpandAll):
		t.ExpandAll()
	case key.Matches(msg, m.keys.CollapseAll):
		t.CollapseAll()
		m.selectVisibleAncestor()

	case key.Matches(msg, m.keys.Search):
		cmd := m.openPrompt(promptSearch, "/", m.search.Query())
		return m, cmd
	case key.Matches(msg, m.keys.Next):
		m.search.Next()
		m.showActive()
	case key.Matches(msg, m.keys.Previous):
		m.search.Previous()
		m.showActive()
	case key.Matches(msg, m.keys.Cancel):
		if t.IsAddingNode() {
			t.CancelAdd()
		} else if m.search.Query() != "" {
			m.search.Clear()
		}

	case key.Matches(msg, m.keys.Add):
		if err := m.editable(); err != nil {
			m.report(err)
			break
		}
		if !t.Kind(sel).IsContainer() {
			m.setError("select an object or array to add to")
			break
		}
		m.prompt = promptAddKind
		m.setStatus("add: (o)bject (a)rray (s)tring (n)umber (b)oolean (d)ate nu(l)l")
	case key.Matches(msg, m.keys.Delete):
		m.report(t.DeleteSelectedNode())
	case key.Matches(msg, m.keys.Rename):
		if err := m.editable(); err != nil {
			m.report(err)
			break
		}
		seg, ok := t.Segment(sel)
		if !ok || seg.IsIndex() {
			m.setError("only object keys can be renamed")
			break
		}
		cmd := m.openPrompt(promptRename, "rename: ", seg.Key())
		return m, cmd
	case key.Matches(msg, m.keys.Edit):
		if err := m.editable(); err != nil {
			m.report(err)
			break
		}
		if t.Kind(sel).IsContainer() {
			m.setError("edit works on values; use add and delete for containers")
			break
		}
		cmd := m.openPrompt(promptEdit, "value: ", t.Text(sel))
		return m, cmd

	case key.Matches(msg, m.keys.CopyPath):
		m.copy("path", t.Path(sel).String())
	case key.Matches(msg, m.keys.CopyValue):
		m.copyValue(sel)

	case key.Matches(msg, m.keys.Mode):
		next := tree.ModeEdit
		if t.Mode() == tree.ModeEdit {
			next = tree.ModeView
		}
		if err := t.SetMode(next); err != nil {
			m.report(err)
		} else {
			m.setStatus("%s mode", next)
		}
	}
	return m, nil
}

func (m *Model) editable() error {
	if m.tree.Mode() != tree.ModeEdit {
		return fmt.Errorf("view mode: press %s to edit", m.keys.Mode.Help().Key)
	}
	if m.tree.IsAddingNode() {
		return fmt.Errorf("waiting for the new node; esc cancels")
	}
	return nil
}

func (m *Model) move(delta int) {
	visible := m.tree.VisibleNodes()
	sel, _ := m.tree.Selection()
	i := indexOf(visible, sel)
	m.moveTo(i + delta)
}

func (m *Model) moveTo(i int) {
	visible := m.tree.VisibleNodes()
	if len(visible) == 0 {
		return
	}
	i = max(0, min(i, len(visible)-1))
	m.report(m.tree.Select(visible[i]))
}

// selectVisibleAncestor moves a selection hidden by a collapse to its
// outermost collapsed ancestor.
func (m *Model) selectVisibleAncestor() {
	sel, ok := m.tree.Selection()
	if !ok {
		_ = m.tree.Select(m.tree.Root())
		return
	}
	target := sel
	for cur, ok := m.tree.Parent(sel); ok; cur, ok = m.tree.Parent(cur) {
		if !m.tree.Expanded(cur) {
			target = cur
		}
	}
	if target != sel {
		m.report(m.tree.Select(target))
	}
}

// showActive brings the active search result into view.
func (m *Model) showActive() {
	r, ok := m.search.Active()
	if !ok {
		if m.search.Query() != "" {
			m.setError("no matches for %q", m.search.Query())
		}
		return
	}
	m.tree.ExpandPathTo(r.Node)
	m.report(m.tree.Select(r.Node))
	m.setStatus("match %d/%d", m.search.ActiveIndex()+1, m.search.Len())
}

func (m *Model) copy(what, text string) {
	if err := writeClipboard(text); err != nil {
		m.setError("copy %s: %v", what, err)
		return
	}
	m.setStatus("copied %s", what)
}

func (m *Model) copyValue(id tree.NodeID) {
	elem := m.tree.Element(id)
	if elem == nil {
		return
	}
	if !m.tree.Kind(id).IsContainer() {
		m.copy("value", m.tree.Text(id))
		return
	}
	data, err := document.EncodeJSON(elem, "  ")
	if err != nil {
		m.setError("copy value: %v", err)
		return
	}
	m.copy("value", string(data))
}

// ensureVisible scrolls the list so the selection is on screen.
func (m *Model) ensureVisible() {
	rows := m.listHeight()
	sel, _ := m.tree.Selection()
	visible := m.tree.VisibleNodes()
	i := indexOf(visible, sel)
	if i < 0 {
		i = 0
	}
	if i < m.offset {
		m.offset = i
	}
	if i >= m.offset+rows {
		m.offset = i - rows + 1
	}
	m.offset = max(0, min(m.offset, len(visible)-rows))
}

func indexOf(ids []tree.NodeID, id tree.NodeID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
