package tree

import (
	"fmt"
	"strconv"

	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// newKeyBase is the key used for children added to objects; collisions get
// a numeric suffix.
const newKeyBase = "new"

// Select makes id the single selected node.
func (m *Model) Select(id NodeID) error {
	n := m.node(id)
	if n == nil {
		return fmt.Errorf("select %s: %w", id, ErrInvalidSelection)
	}
	if m.selection == id {
		return nil
	}
	m.setSelection(id)
	m.notify()
	return nil
}

// setSelection moves the selected flag without notifying.
func (m *Model) setSelection(id NodeID) {
	if old := m.node(m.selection); old != nil {
		old.selected = false
	}
	m.selection = id
	if n := m.node(id); n != nil {
		n.selected = true
	} else {
		m.selection = NodeID{}
	}
}

// Selection returns the selected node, if any.
func (m *Model) Selection() (NodeID, bool) {
	if m.node(m.selection) == nil {
		return NodeID{}, false
	}
	return m.selection, true
}

// IsSelected reports whether id is the selected node.
func (m *Model) IsSelected(id NodeID) bool {
	n := m.node(id)
	return n != nil && n.selected
}

// ClearSelection deselects. It does not cancel a pending add.
func (m *Model) ClearSelection() {
	if _, ok := m.Selection(); !ok {
		return
	}
	m.setSelection(NodeID{})
	m.notify()
}

// IsAddingNode reports whether an add is waiting for its creation event.
func (m *Model) IsAddingNode() bool { return m.adding != nil }

// AddingTarget returns the container and kind of the pending add.
func (m *Model) AddingTarget() (NodeID, document.Kind, bool) {
	if m.adding == nil {
		return NodeID{}, document.KindNull, false
	}
	return m.adding.container, m.adding.kind, true
}

// AddToSelectedNode asks the document to create a child of kind under the
// selected container: appended to arrays, under a fresh key on objects. The
// Model stays in the adding state until the creation event arrives, at which
// point the new node is selected.
func (m *Model) AddToSelectedNode(kind document.Kind) error {
	if err := m.requireEdit("add"); err != nil {
		return err
	}
	if m.adding != nil {
		return fmt.Errorf("add while adding: %w", ErrInvalidOperation)
	}
	sel, ok := m.Selection()
	if !ok {
		return fmt.Errorf("add without selection: %w", ErrInvalidOperation)
	}
	n := m.node(sel)
	if !n.isContainer() {
		return fmt.Errorf("add under %s value: %w", n.kind, ErrInvalidOperation)
	}
	p, err := m.documentPath(sel)
	if err != nil {
		return err
	}

	value := document.ZeroValue(kind, m.doc.Now())
	pending := &pendingAdd{container: sel, kind: kind}
	// The pending state must exist before the mutation: a synchronous
	// document delivers the creation event from inside the call.
	m.adding = pending
	if n.kind == document.KindObject {
		pending.key = freshKey(n.elem)
		err = m.doc.Set(p.Append(modelpath.Key(pending.key)), value)
	} else {
		pending.index = n.elem.Size()
		err = m.doc.Insert(p, pending.index, value)
	}
	if err != nil {
		if m.adding == pending {
			m.adding = nil
		}
		return fmt.Errorf("add %s under %s: %w", kind, p, err)
	}
	if m.adding == pending {
		debug.Log("tree: adding %s under %s", kind, p)
		m.notify()
	}
	return nil
}

// freshKey returns the first of "new", "new1", "new2", ... absent from obj.
func freshKey(obj *document.Element) string {
	taken := make(map[string]bool, obj.Size())
	for _, k := range obj.Keys() {
		taken[k] = true
	}
	key := newKeyBase
	for i := 1; taken[key]; i++ {
		key = newKeyBase + strconv.Itoa(i)
	}
	return key
}

// CancelAdd leaves the adding state and reselects the container. A creation
// event arriving later still creates the node but does not select it.
func (m *Model) CancelAdd() {
	if m.adding == nil {
		return
	}
	container := m.adding.container
	m.adding = nil
	if m.node(container) != nil {
		m.setSelection(container)
	}
	m.notify()
}

// DeleteSelectedNode asks the document to remove the selected node. The
// root cannot be deleted and nothing can be deleted while adding.
func (m *Model) DeleteSelectedNode() error {
	if err := m.requireEdit("delete"); err != nil {
		return err
	}
	if m.adding != nil {
		return fmt.Errorf("delete while adding: %w", ErrInvalidOperation)
	}
	sel, ok := m.Selection()
	if !ok {
		return fmt.Errorf("delete without selection: %w", ErrInvalidOperation)
	}
	parent, ok := m.Parent(sel)
	if !ok {
		return fmt.Errorf("delete root: %w", ErrInvalidOperation)
	}
	return m.RemoveChild(parent, sel)
}

// RenameSelectedKey renames the selected object child. The node keeps its
// identity and position once the rename event arrives.
func (m *Model) RenameSelectedKey(newKey string) error {
	if err := m.requireEdit("rename"); err != nil {
		return err
	}
	if m.adding != nil {
		return fmt.Errorf("rename while adding: %w", ErrInvalidOperation)
	}
	sel, ok := m.Selection()
	if !ok {
		return fmt.Errorf("rename without selection: %w", ErrInvalidOperation)
	}
	parent, ok := m.Parent(sel)
	if !ok || m.Kind(parent) != document.KindObject {
		return fmt.Errorf("rename of a node outside an object: %w", ErrInvalidOperation)
	}
	if newKey == "" {
		return fmt.Errorf("rename to empty key: %w", ErrInvalidOperation)
	}
	p, err := m.documentPath(sel)
	if err != nil {
		return err
	}
	return m.doc.Rename(p, newKey)
}

// SetSelectedValue replaces the selected node's value in place.
func (m *Model) SetSelectedValue(v any) error {
	if err := m.requireEdit("edit"); err != nil {
		return err
	}
	if m.adding != nil {
		return fmt.Errorf("edit while adding: %w", ErrInvalidOperation)
	}
	sel, ok := m.Selection()
	if !ok {
		return fmt.Errorf("edit without selection: %w", ErrInvalidOperation)
	}
	p, err := m.documentPath(sel)
	if err != nil {
		return err
	}
	return m.doc.Replace(p, v)
}

// Expanded reports whether a container is expanded.
func (m *Model) Expanded(id NodeID) bool {
	n := m.node(id)
	return n != nil && n.expanded
}

// SetExpanded expands or collapses a container.
func (m *Model) SetExpanded(id NodeID, expanded bool) error {
	n := m.node(id)
	if n == nil || !n.isContainer() {
		return fmt.Errorf("expand %s: %w", id, ErrInvalidOperation)
	}
	if n.expanded == expanded {
		return nil
	}
	n.expanded = expanded
	m.notify()
	return nil
}

// ToggleExpanded flips the expansion of a container.
func (m *Model) ToggleExpanded(id NodeID) error {
	return m.SetExpanded(id, !m.Expanded(id))
}

// ExpandAll expands every container.
func (m *Model) ExpandAll() { m.setExpandedAll(true) }

// CollapseAll collapses every container.
func (m *Model) CollapseAll() { m.setExpandedAll(false) }

func (m *Model) setExpandedAll(expanded bool) {
	changed := false
	m.walk(m.root, func(id NodeID, n *node) bool {
		if n.isContainer() && n.expanded != expanded {
			n.expanded = expanded
			changed = true
		}
		return true
	})
	if changed {
		m.notify()
	}
}

// ExpandPathTo expands every ancestor of id so that it becomes visible.
func (m *Model) ExpandPathTo(id NodeID) {
	changed := false
	for cur, ok := m.Parent(id); ok; cur, ok = m.Parent(cur) {
		if n := m.node(cur); !n.expanded {
			n.expanded = true
			changed = true
		}
	}
	if changed {
		m.notify()
	}
}

// VisibleNodes returns the nodes reachable through expanded containers in
// depth-first order, root first.
func (m *Model) VisibleNodes() []NodeID {
	var out []NodeID
	m.walk(m.root, func(id NodeID, n *node) bool {
		out = append(out, id)
		return n.expanded
	})
	return out
}

// Walk visits id and its descendants depth-first in display order. fn
// returns false to skip a node's children.
func (m *Model) Walk(id NodeID, fn func(id NodeID) bool) {
	m.walk(id, func(id NodeID, _ *node) bool { return fn(id) })
}

func (m *Model) walk(id NodeID, fn func(id NodeID, n *node) bool) {
	n := m.node(id)
	if n == nil {
		return
	}
	if !fn(id, n) {
		return
	}
	for _, child := range m.node(id).children() {
		m.walk(child, fn)
	}
}
