package tree

import (
	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/metrics"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// maxChanges bounds the change log kept for ChangesSince.
const maxChanges = 256

type change struct {
	rev     uint64
	touched []NodeID
	full    bool
}

// onEvents applies one delivery. Events are applied in order against the
// tree as it stands; anything that does not fit (stale index, missing key,
// duplicate creation) is left for reconciliation, which compares touched
// containers with the document once no deliveries are queued.
func (m *Model) onEvents(events []document.Event) {
	defer metrics.Timer(metrics.TreePatch)()

	ancestry := m.ancestry(m.selection)
	touched := make(map[NodeID]struct{})
	var confirmed NodeID
	deep := false

	for _, ev := range events {
		target, ok := m.byElem[ev.Target.ID()]
		if !ok || m.node(target) == nil {
			if m.attached(ev.Target) {
				debug.Log("tree: %s targets an element the tree does not mirror", ev)
				deep = true
			}
			continue
		}
		touched[target] = struct{}{}
		if m.node(target).isContainer() {
			m.suspect[target] = struct{}{}
		}
		created := m.apply(target, ev)
		if !created.IsZero() && m.confirmsAdd(target, ev) {
			confirmed = created
		}
	}

	full := m.reconcileSettled(touched, deep)

	if !confirmed.IsZero() {
		container := m.adding.container
		m.adding = nil
		if m.node(confirmed) != nil {
			m.setSelection(confirmed)
		} else if m.node(container) != nil {
			m.setSelection(container)
		}
	} else if m.adding != nil && m.node(m.adding.container) == nil {
		debug.Log("tree: container of pending add was removed")
		m.adding = nil
	}

	if !m.selection.IsZero() && m.node(m.selection) == nil {
		next := NodeID{}
		for _, id := range ancestry {
			if m.node(id) != nil {
				next = id
				break
			}
		}
		m.setSelection(next)
	}

	m.record(touched, full)
	m.notify()
}

// ancestry returns id's ancestors, nearest first.
func (m *Model) ancestry(id NodeID) []NodeID {
	var out []NodeID
	for cur, ok := m.Parent(id); ok; cur, ok = m.Parent(cur) {
		out = append(out, cur)
	}
	return out
}

func (m *Model) confirmsAdd(target NodeID, ev document.Event) bool {
	a := m.adding
	if a == nil || a.container != target {
		return false
	}
	switch ev.Kind {
	case document.ValueSet:
		return m.node(target).kind == document.KindObject && ev.Key == a.key
	case document.ElementInserted:
		return ev.Index == a.index
	}
	return false
}

// apply patches target for one event. It returns the node created (or
// already mirroring the created element) for ValueSet and ElementInserted.
func (m *Model) apply(target NodeID, ev document.Event) NodeID {
	switch ev.Kind {
	case document.ValueSet:
		return m.applySet(target, ev)
	case document.ValueRemoved:
		m.applyRemove(target, ev)
	case document.KeyRenamed:
		m.applyRename(target, ev)
	case document.ValueReplaced:
		m.replaceContent(target)
	case document.ElementInserted:
		return m.applyInsert(target, ev)
	case document.ElementReordered:
		m.applyReorder(target, ev)
	}
	return NodeID{}
}

// mirrorOf returns the child of parent already mirroring elem. A creation
// event delivered after the tree was built from a later state finds its
// element already present.
func (m *Model) mirrorOf(elem *document.Element, parent NodeID) NodeID {
	if elem == nil {
		return NodeID{}
	}
	id, ok := m.byElem[elem.ID()]
	if !ok {
		return NodeID{}
	}
	if n := m.node(id); n != nil && n.parent == parent {
		return id
	}
	return NodeID{}
}

func (m *Model) applySet(target NodeID, ev document.Event) NodeID {
	if id := m.mirrorOf(ev.Value, target); !id.IsZero() {
		return id
	}
	n := m.node(target)
	switch n.kind {
	case document.KindObject:
		child := m.build(ev.Value, target, m.Depth(target)+1)
		n = m.node(target)
		if old, ok := n.byKey[ev.Key]; ok {
			m.destroy(old)
			n = m.node(target)
		} else {
			n.keys = append(n.keys, ev.Key)
		}
		n.byKey[ev.Key] = child
		return child
	case document.KindArray:
		if ev.Index < 0 || ev.Index >= len(n.items) {
			return NodeID{}
		}
		child := m.build(ev.Value, target, m.Depth(target)+1)
		n = m.node(target)
		m.destroy(n.items[ev.Index])
		n = m.node(target)
		n.items[ev.Index] = child
		return child
	}
	return NodeID{}
}

func (m *Model) applyRemove(target NodeID, ev document.Event) {
	n := m.node(target)
	switch n.kind {
	case document.KindObject:
		old, ok := n.byKey[ev.Key]
		if !ok {
			return
		}
		m.destroy(old)
		n = m.node(target)
		delete(n.byKey, ev.Key)
		for i, k := range n.keys {
			if k == ev.Key {
				n.keys = append(n.keys[:i], n.keys[i+1:]...)
				break
			}
		}
	case document.KindArray:
		if ev.Index < 0 || ev.Index >= len(n.items) {
			return
		}
		m.destroy(n.items[ev.Index])
		n = m.node(target)
		n.items = append(n.items[:ev.Index], n.items[ev.Index+1:]...)
	}
}

func (m *Model) applyRename(target NodeID, ev document.Event) {
	n := m.node(target)
	if n.kind != document.KindObject {
		return
	}
	child, ok := n.byKey[ev.OldKey]
	if !ok {
		return
	}
	if _, clash := n.byKey[ev.NewKey]; clash {
		return
	}
	for i, k := range n.keys {
		if k == ev.OldKey {
			n.keys[i] = ev.NewKey
			break
		}
	}
	delete(n.byKey, ev.OldKey)
	n.byKey[ev.NewKey] = child
}

func (m *Model) applyInsert(target NodeID, ev document.Event) NodeID {
	if id := m.mirrorOf(ev.Value, target); !id.IsZero() {
		return id
	}
	n := m.node(target)
	if n.kind != document.KindArray || ev.Index < 0 || ev.Index > len(n.items) {
		return NodeID{}
	}
	child := m.build(ev.Value, target, m.Depth(target)+1)
	n = m.node(target)
	n.items = append(n.items, NodeID{})
	copy(n.items[ev.Index+1:], n.items[ev.Index:])
	n.items[ev.Index] = child
	return child
}

func (m *Model) applyReorder(target NodeID, ev document.Event) {
	n := m.node(target)
	size := len(n.items)
	if n.kind != document.KindArray || ev.From < 0 || ev.From >= size || ev.To < 0 || ev.To >= size {
		return
	}
	item := n.items[ev.From]
	if ev.From < ev.To {
		copy(n.items[ev.From:ev.To], n.items[ev.From+1:ev.To+1])
	} else {
		copy(n.items[ev.To+1:ev.From+1], n.items[ev.To:ev.From])
	}
	n.items[ev.To] = item
}

// replaceContent discards the subtree under target and rebuilds it from the
// element's current content. UI state below target is lost.
func (m *Model) replaceContent(target NodeID) {
	m.destroyChildren(target)
	n := m.node(target)
	wasContainer := n.isContainer()
	n.kind = n.elem.Kind()
	depth := m.Depth(target)
	switch {
	case !n.isContainer():
		n.expanded = false
	case !wasContainer:
		n.expanded = depth < m.expandDepth
	}
	m.buildChildren(target, depth)
}

// reconcileSettled checks suspect containers against the document once no
// deliveries are queued, rebuilding the ones that diverged. It reports
// whether the whole tree was checked.
func (m *Model) reconcileSettled(touched map[NodeID]struct{}, deep bool) bool {
	if deep {
		m.deep = true
	}
	if p, ok := m.doc.(pendingSource); ok && p.Pending() > 0 {
		return false
	}
	if m.deep {
		m.deep = false
		clear(m.suspect)
		m.reconcileTree(m.root)
		return true
	}
	for id := range m.suspect {
		if m.node(id) != nil && m.reconcile(id) {
			touched[id] = struct{}{}
		}
	}
	clear(m.suspect)
	return false
}

// reconcile compares one node with its element and rebuilds it when the
// kind, child order or child identity differs. It reports whether it rebuilt.
func (m *Model) reconcile(id NodeID) bool {
	n := m.node(id)
	if n.kind == n.elem.Kind() && n.text == scalarText(n.elem) && m.childrenMatch(n) {
		return false
	}
	debug.Log("tree: %s diverged from document at %s, rebuilding", id, n.elem.Path())
	metrics.TreeRebuilds.Inc()
	m.rebuild(id)
	debug.Assert(m.childrenMatch(m.node(id)), "rebuilt container mirrors its element")
	return true
}

func scalarText(e *document.Element) string {
	if e.Kind().IsContainer() {
		return ""
	}
	return e.Text()
}

// reconcileTree reconciles id and everything below it, re-indexing every
// node by its element.
func (m *Model) reconcileTree(id NodeID) {
	m.reconcile(id)
	m.byElem[m.node(id).elem.ID()] = id
	for _, child := range m.node(id).children() {
		m.reconcileTree(child)
	}
}

func (m *Model) childrenMatch(n *node) bool {
	elem := n.elem
	switch n.kind {
	case document.KindObject:
		if len(n.keys) != elem.Size() {
			return false
		}
	case document.KindArray:
		if len(n.items) != elem.Size() {
			return false
		}
	default:
		return true
	}
	ok := true
	i := 0
	elem.ForEach(func(seg modelpath.Segment, child *document.Element) {
		if !ok {
			return
		}
		var id NodeID
		if n.kind == document.KindObject {
			if n.keys[i] != seg.Key() {
				ok = false
				return
			}
			id = n.byKey[seg.Key()]
		} else {
			id = n.items[i]
		}
		if c := m.node(id); c == nil || c.elem != child {
			ok = false
		}
		i++
	})
	return ok
}

// rebuild re-derives id's children from its element, reusing child nodes
// (with their state and subtrees) whose element is still present.
func (m *Model) rebuild(id NodeID) {
	n := m.node(id)
	reusable := make(map[document.ID]NodeID)
	var unused []NodeID
	for _, child := range n.children() {
		eid := m.node(child).elem.ID()
		if _, dup := reusable[eid]; dup {
			unused = append(unused, child)
			continue
		}
		reusable[eid] = child
	}

	wasContainer := n.isContainer()
	n.kind = n.elem.Kind()
	depth := m.Depth(id)
	var (
		keys   []string
		byKey  map[string]NodeID
		items  []NodeID
		reused []NodeID
	)
	if n.kind == document.KindObject {
		byKey = make(map[string]NodeID, n.elem.Size())
	}
	n.elem.ForEach(func(seg modelpath.Segment, child *document.Element) {
		cid, ok := reusable[child.ID()]
		if ok && m.node(cid).elem == child {
			delete(reusable, child.ID())
			reused = append(reused, cid)
		} else {
			cid = m.build(child, id, depth+1)
		}
		if seg.IsIndex() {
			items = append(items, cid)
		} else {
			keys = append(keys, seg.Key())
			byKey[seg.Key()] = cid
		}
	})
	for _, child := range reusable {
		unused = append(unused, child)
	}
	for _, child := range unused {
		m.destroy(child)
	}
	for _, cid := range reused {
		m.byElem[m.node(cid).elem.ID()] = cid
	}

	n = m.node(id)
	n.keys, n.byKey, n.items = keys, byKey, items
	n.refreshText()
	switch {
	case !n.isContainer():
		n.expanded = false
	case !wasContainer:
		n.expanded = depth < m.expandDepth
	}
}

func (m *Model) record(touched map[NodeID]struct{}, full bool) {
	m.revision++
	ids := make([]NodeID, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	m.changes = append(m.changes, change{rev: m.revision, touched: ids, full: full})
	if len(m.changes) > maxChanges {
		m.changes = append([]change(nil), m.changes[len(m.changes)-maxChanges:]...)
	}
}

// Revision counts the deliveries applied so far.
func (m *Model) Revision() uint64 { return m.revision }

// ChangesSince returns the nodes whose subtrees changed after revision rev.
// full is true when the change log no longer covers rev or a delivery
// forced a whole-tree check; callers then treat everything as changed.
// Returned handles may no longer be live.
func (m *Model) ChangesSince(rev uint64) (touched []NodeID, full bool) {
	if rev >= m.revision {
		return nil, false
	}
	if len(m.changes) == 0 || m.changes[0].rev > rev+1 {
		return nil, true
	}
	seen := make(map[NodeID]struct{})
	for _, c := range m.changes {
		if c.rev <= rev {
			continue
		}
		if c.full {
			return nil, true
		}
		for _, id := range c.touched {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			touched = append(touched, id)
		}
	}
	return touched, false
}
