package tree

import (
	"fmt"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// NodeID is a handle to a node in a Model's arena. A handle stays valid for
// as long as the node is part of the tree; once the node is destroyed the
// handle never resolves again, even if its slot is reused. The zero NodeID
// is never valid.
type NodeID struct {
	slot uint32
	gen  uint32
}

// IsZero reports whether id is the zero handle.
func (id NodeID) IsZero() bool { return id.gen == 0 }

func (id NodeID) String() string {
	if id.IsZero() {
		return "#none"
	}
	return fmt.Sprintf("#%d.%d", id.slot, id.gen)
}

// node is one arena slot. Containers own their children through handles;
// parent is a non-owning back-reference.
type node struct {
	gen  uint32
	live bool

	elem   *document.Element
	kind   document.Kind
	text   string // scalar text as of the last applied event
	parent NodeID

	// object containers
	keys  []string
	byKey map[string]NodeID
	// array containers
	items []NodeID

	selected bool
	expanded bool
}

func (n *node) isContainer() bool { return n.kind.IsContainer() }

// children returns the child handles in display order.
func (n *node) children() []NodeID {
	switch n.kind {
	case document.KindObject:
		out := make([]NodeID, len(n.keys))
		for i, k := range n.keys {
			out[i] = n.byKey[k]
		}
		return out
	case document.KindArray:
		out := make([]NodeID, len(n.items))
		copy(out, n.items)
		return out
	}
	return nil
}

// segmentOf returns the key or index under which child is stored.
func (n *node) segmentOf(child NodeID) (modelpath.Segment, bool) {
	switch n.kind {
	case document.KindObject:
		for _, k := range n.keys {
			if n.byKey[k] == child {
				return modelpath.Key(k), true
			}
		}
	case document.KindArray:
		for i, id := range n.items {
			if id == child {
				return modelpath.Index(i), true
			}
		}
	}
	return modelpath.Segment{}, false
}

// node returns the live slot for id, or nil.
func (m *Model) node(id NodeID) *node {
	if id.IsZero() || int(id.slot) >= len(m.nodes) {
		return nil
	}
	n := &m.nodes[id.slot]
	if !n.live || n.gen != id.gen {
		return nil
	}
	return n
}

// alloc reserves a slot and returns its handle.
func (m *Model) alloc() NodeID {
	var slot uint32
	if k := len(m.free); k > 0 {
		slot = m.free[k-1]
		m.free = m.free[:k-1]
	} else {
		m.nodes = append(m.nodes, node{})
		slot = uint32(len(m.nodes) - 1)
	}
	n := &m.nodes[slot]
	n.gen++
	n.live = true
	return NodeID{slot: slot, gen: n.gen}
}

// build mirrors elem and its subtree under parent.
func (m *Model) build(elem *document.Element, parent NodeID, depth int) NodeID {
	id := m.alloc()
	kind := elem.Kind()
	m.nodes[id.slot] = node{
		gen:      id.gen,
		live:     true,
		elem:     elem,
		kind:     kind,
		parent:   parent,
		expanded: kind.IsContainer() && depth < m.expandDepth,
	}
	m.byElem[elem.ID()] = id
	m.buildChildren(id, depth)
	return id
}

// buildChildren populates a container from its element's current children.
func (m *Model) buildChildren(id NodeID, depth int) {
	n := m.node(id)
	elem := n.elem
	switch n.kind {
	case document.KindObject:
		keys := make([]string, 0, elem.Size())
		byKey := make(map[string]NodeID, elem.Size())
		elem.ForEach(func(seg modelpath.Segment, child *document.Element) {
			keys = append(keys, seg.Key())
			byKey[seg.Key()] = m.build(child, id, depth+1)
		})
		// m.nodes may have grown; re-fetch before writing.
		n = m.node(id)
		n.keys, n.byKey, n.items = keys, byKey, nil
	case document.KindArray:
		items := make([]NodeID, 0, elem.Size())
		elem.ForEach(func(_ modelpath.Segment, child *document.Element) {
			items = append(items, m.build(child, id, depth+1))
		})
		n = m.node(id)
		n.keys, n.byKey, n.items = nil, nil, items
	default:
		n.keys, n.byKey, n.items = nil, nil, nil
	}
	n.refreshText()
}

// refreshText snapshots the element's text for a scalar node.
func (n *node) refreshText() {
	if n.isContainer() {
		n.text = ""
		return
	}
	n.text = n.elem.Text()
}

// destroy releases id and its whole subtree.
func (m *Model) destroy(id NodeID) {
	n := m.node(id)
	if n == nil {
		return
	}
	for _, child := range n.children() {
		m.destroy(child)
	}
	n = m.node(id)
	if cur, ok := m.byElem[n.elem.ID()]; ok && cur == id {
		delete(m.byElem, n.elem.ID())
	}
	gen := n.gen
	m.nodes[id.slot] = node{gen: gen + 1}
	m.free = append(m.free, id.slot)
}

// destroyChildren releases every child of a container.
func (m *Model) destroyChildren(id NodeID) {
	n := m.node(id)
	for _, child := range n.children() {
		m.destroy(child)
	}
	n = m.node(id)
	n.keys, n.byKey, n.items = nil, nil, nil
}
