// Package tree mirrors a document as a tree of nodes carrying UI state
// (selection, expansion) and keeps it in step with the document's structural
// events.
//
// The Model never mutates the document directly through its own nodes.
// Commands such as DeleteSelectedNode issue document mutations, and the
// resulting events, whenever they arrive, are what change the tree. This
// keeps the tree correct when acknowledgements are delayed or reordered
// against local state.
//
// A Model is single-threaded: construct it, issue commands and deliver
// document events on one goroutine. Events and Stream may be consumed from
// any goroutine.
package tree

import (
	"fmt"
	"time"

	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/metrics"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// Document is the document surface a Model observes and mutates.
// *document.Document satisfies it.
type Document interface {
	Root() *document.Element
	Subscribe(fn func([]document.Event)) (unsubscribe func())
	Set(p modelpath.Path, v any) error
	Remove(p modelpath.Path) error
	Rename(p modelpath.Path, newKey string) error
	Replace(p modelpath.Path, v any) error
	Insert(p modelpath.Path, index int, v any) error
	Now() time.Time
}

// pendingSource is implemented by documents that can report queued
// deliveries. Reconciliation waits until nothing is queued.
type pendingSource interface {
	Pending() int
}

// Mode gates structural commands.
type Mode int

const (
	// ModeEdit allows add, delete, rename and value edits.
	ModeEdit Mode = iota
	// ModeView allows selection, expansion and search only.
	ModeView
)

func (m Mode) String() string {
	if m == ModeView {
		return "view"
	}
	return "edit"
}

// ParseMode parses "view" or "edit".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "view":
		return ModeView, nil
	case "edit", "":
		return ModeEdit, nil
	}
	return ModeEdit, fmt.Errorf("unknown mode %q", s)
}

// DefaultExpandDepth is the number of levels expanded when nodes are built.
const DefaultExpandDepth = 1

// Option configures a Model.
type Option func(*Model)

// WithExpandDepth sets how many levels start expanded. 0 collapses
// everything, including the root.
func WithExpandDepth(depth int) Option {
	return func(m *Model) {
		if depth >= 0 {
			m.expandDepth = depth
		}
	}
}

// WithMode sets the initial mode.
func WithMode(mode Mode) Option {
	return func(m *Model) { m.mode = mode }
}

// pendingAdd is the Adding state: a new child was requested under
// container and its creation event has not arrived yet.
type pendingAdd struct {
	container NodeID
	key       string // object containers
	index     int    // array containers
	kind      document.Kind
}

// Model is the view-model tree over a Document.
type Model struct {
	doc         Document
	unsubscribe func()

	nodes  []node
	free   []uint32
	byElem map[document.ID]NodeID
	root   NodeID

	selection NodeID
	adding    *pendingAdd
	mode      Mode

	expandDepth int

	// suspect holds containers whose events could not be applied cleanly;
	// they are compared against the document once no deliveries are queued.
	suspect map[NodeID]struct{}
	// deep requests a whole-tree reconciliation.
	deep bool

	subs      []*Subscription
	notifying bool
	renotify  bool

	revision uint64
	changes  []change
}

// New builds a Model mirroring doc and subscribes to its events.
func New(doc Document, opts ...Option) *Model {
	m := &Model{
		doc:         doc,
		byElem:      make(map[document.ID]NodeID),
		expandDepth: DefaultExpandDepth,
		suspect:     make(map[NodeID]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	stop := metrics.Timer(metrics.TreeBuild)
	m.root = m.build(doc.Root(), NodeID{}, 0)
	stop()
	m.unsubscribe = doc.Subscribe(m.onEvents)
	debug.Log("tree: built %d nodes", len(m.byElem))
	return m
}

// Close detaches the Model from its document. Subscriptions stay registered
// but receive nothing further.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Root returns the root node.
func (m *Model) Root() NodeID { return m.root }

// Contains reports whether id refers to a node currently in the tree.
func (m *Model) Contains(id NodeID) bool { return m.node(id) != nil }

// Len returns the number of nodes in the tree.
func (m *Model) Len() int { return len(m.nodes) - len(m.free) }

// Kind returns the value kind of id.
func (m *Model) Kind(id NodeID) document.Kind {
	if n := m.node(id); n != nil {
		return n.kind
	}
	return document.KindNull
}

// Element returns the document element id mirrors, or nil.
func (m *Model) Element(id NodeID) *document.Element {
	if n := m.node(id); n != nil {
		return n.elem
	}
	return nil
}

// Text returns the display text of a value node; containers return "".
func (m *Model) Text(id NodeID) string {
	n := m.node(id)
	if n == nil || n.isContainer() {
		return ""
	}
	return n.text
}

// Parent returns the parent of id. The root has none.
func (m *Model) Parent(id NodeID) (NodeID, bool) {
	n := m.node(id)
	if n == nil || n.parent.IsZero() {
		return NodeID{}, false
	}
	return n.parent, true
}

// Size returns the number of children of a container, 0 otherwise.
func (m *Model) Size(id NodeID) int {
	n := m.node(id)
	if n == nil {
		return 0
	}
	switch n.kind {
	case document.KindObject:
		return len(n.keys)
	case document.KindArray:
		return len(n.items)
	}
	return 0
}

// Children returns the children of id in display order.
func (m *Model) Children(id NodeID) []NodeID {
	if n := m.node(id); n != nil {
		return n.children()
	}
	return nil
}

// ForEach calls fn for each child of id in display order with the segment
// it is stored under.
func (m *Model) ForEach(id NodeID, fn func(seg modelpath.Segment, child NodeID)) {
	n := m.node(id)
	if n == nil {
		return
	}
	kind, keys := n.kind, append([]string(nil), n.keys...)
	for i, child := range n.children() {
		if kind == document.KindObject {
			fn(modelpath.Key(keys[i]), child)
		} else {
			fn(modelpath.Index(i), child)
		}
	}
}

// Segment returns the key or index id is stored under in its parent.
func (m *Model) Segment(id NodeID) (modelpath.Segment, bool) {
	n := m.node(id)
	if n == nil {
		return modelpath.Segment{}, false
	}
	parent := m.node(n.parent)
	if parent == nil {
		return modelpath.Segment{}, false
	}
	return parent.segmentOf(id)
}

// Path returns the path of id from the root, as the tree currently sees it.
func (m *Model) Path(id NodeID) modelpath.Path {
	var rev []modelpath.Segment
	for cur := id; ; {
		n := m.node(cur)
		if n == nil || n.parent.IsZero() {
			break
		}
		seg, ok := m.node(n.parent).segmentOf(cur)
		if !ok {
			break
		}
		rev = append(rev, seg)
		cur = n.parent
	}
	p := make(modelpath.Path, len(rev))
	for i, seg := range rev {
		p[len(rev)-1-i] = seg
	}
	return p
}

// Depth returns the number of ancestors of id.
func (m *Model) Depth(id NodeID) int {
	depth := 0
	for n := m.node(id); n != nil && !n.parent.IsZero(); n = m.node(n.parent) {
		depth++
	}
	return depth
}

// NodeAtPath resolves p against the tree. It fails with ErrPathResolution
// when a key is absent, an index is out of range, or a segment meets a value
// node or the wrong container kind.
func (m *Model) NodeAtPath(p modelpath.Path) (NodeID, error) {
	cur := m.root
	for i, seg := range p {
		n := m.node(cur)
		var (
			next NodeID
			ok   bool
		)
		switch {
		case n.kind == document.KindObject && !seg.IsIndex():
			next, ok = n.byKey[seg.Key()]
		case n.kind == document.KindArray && seg.IsIndex():
			if idx := seg.Index(); idx >= 0 && idx < len(n.items) {
				next, ok = n.items[idx], true
			}
		}
		if !ok {
			return NodeID{}, fmt.Errorf("%s at %s: %w", p, p[:i+1], ErrPathResolution)
		}
		cur = next
	}
	return cur, nil
}

// Mode returns the current mode.
func (m *Model) Mode() Mode { return m.mode }

// SetMode switches mode. Switching is refused while a node is being added.
func (m *Model) SetMode(mode Mode) error {
	if m.adding != nil {
		return fmt.Errorf("switch to %s while adding: %w", mode, ErrInvalidOperation)
	}
	if m.mode == mode {
		return nil
	}
	m.mode = mode
	m.notify()
	return nil
}

func (m *Model) requireEdit(op string) error {
	if m.mode != ModeEdit {
		return fmt.Errorf("%s in %s mode: %w", op, m.mode, ErrInvalidOperation)
	}
	return nil
}

// documentPath returns the document's current path for id's element. It
// differs from Path while events are still in flight.
func (m *Model) documentPath(id NodeID) (modelpath.Path, error) {
	n := m.node(id)
	if n == nil {
		return nil, fmt.Errorf("node %s: %w", id, ErrPathResolution)
	}
	if !m.attached(n.elem) {
		return nil, fmt.Errorf("node %s is no longer in the document: %w", id, ErrPathResolution)
	}
	return n.elem.Path(), nil
}

// attached reports whether elem is still reachable from the document root.
func (m *Model) attached(elem *document.Element) bool {
	root := m.doc.Root()
	for cur := elem; cur != nil; cur = cur.Parent() {
		if cur == root {
			return true
		}
	}
	return false
}

// RemoveChild asks the document to remove child from parent. The node
// disappears when the removal event arrives.
func (m *Model) RemoveChild(parent, child NodeID) error {
	if err := m.requireEdit("remove"); err != nil {
		return err
	}
	n := m.node(child)
	if n == nil || m.node(parent) == nil || n.parent != parent {
		return fmt.Errorf("%s is not a child of %s: %w", child, parent, ErrInvalidOperation)
	}
	p, err := m.documentPath(child)
	if err != nil {
		return err
	}
	debug.Log("tree: remove %s", p)
	return m.doc.Remove(p)
}
