package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/modeltree/pkg/document"
)

// addKinds maps the key pressed after "add" to the kind created.
var addKinds = map[string]document.Kind{
	"o": document.KindObject,
	"a": document.KindArray,
	"s": document.KindString,
	"n": document.KindNumber,
	"b": document.KindBoolean,
	"d": document.KindDate,
	"l": document.KindNull,
}

func (m *Model) openPrompt(kind promptKind, label, value string) tea.Cmd {
	m.prompt = kind
	m.input.Prompt = label
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.prompt = promptNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m Model) updatePrompt(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.prompt == promptAddKind {
		m.prompt = promptNone
		m.status = ""
		kind, ok := addKinds[msg.String()]
		if !ok {
			return m, nil
		}
		return m.add(kind)
	}

	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		return m, nil
	case tea.KeyEnter:
		value := m.input.Value()
		kind := m.prompt
		m.closePrompt()
		m.commit(kind, value)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.prompt == promptSearch {
		m.search.Search(m.input.Value())
		if m.search.Len() > 0 {
			m.showActive()
		}
	}
	return m, cmd
}

func (m *Model) commit(kind promptKind, value string) {
	switch kind {
	case promptSearch:
		if value == "" {
			m.search.Clear()
			return
		}
		if m.search.Query() != value {
			m.search.Search(value)
		}
		m.showActive()
	case promptRename:
		m.report(m.tree.RenameSelectedKey(value))
	case promptEdit:
		sel, _ := m.tree.Selection()
		m.report(m.tree.SetSelectedValue(parseValue(value, m.tree.Kind(sel))))
	}
}

// add creates a child under the selection. A fresh object key goes straight
// into a rename prompt once the node exists.
func (m Model) add(kind document.Kind) (Model, tea.Cmd) {
	container, _ := m.tree.Selection()
	if err := m.tree.AddToSelectedNode(kind); err != nil {
		m.report(err)
		return m, nil
	}
	if m.tree.IsAddingNode() {
		m.setStatus("adding %s...", kind)
		return m, nil
	}
	m.tree.ExpandPathTo(container)
	_ = m.tree.SetExpanded(container, true)
	if m.tree.Kind(container) != document.KindObject {
		return m, nil
	}
	sel, _ := m.tree.Selection()
	seg, ok := m.tree.Segment(sel)
	if !ok || seg.IsIndex() {
		return m, nil
	}
	cmd := m.openPrompt(promptRename, "key: ", seg.Key())
	return m, cmd
}

// parseValue reads edit input for a value of kind was. Strings stay
// strings, dates stay dates when the input is RFC 3339, and anything else
// is read as JSON with the raw text as fallback.
func parseValue(s string, was document.Kind) any {
	switch was {
	case document.KindString:
		return s
	case document.KindDate:
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	if v, err := document.DecodeJSON([]byte(s)); err == nil {
		return v
	}
	return s
}
