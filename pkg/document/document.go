package document

import (
	"fmt"
	"time"

	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// EventKind names a structural change.
type EventKind int

const (
	// ValueSet: a key/index now maps to a new or replaced element.
	ValueSet EventKind = iota + 1
	// ValueRemoved: a key/index was removed; later array indices shift down.
	ValueRemoved
	// KeyRenamed: an object child moved from OldKey to NewKey in place.
	KeyRenamed
	// ValueReplaced: the target's entire content was reset.
	ValueReplaced
	// ElementInserted: an array element was inserted; later indices shift up.
	ElementInserted
	// ElementReordered: an array element moved From -> To.
	ElementReordered
)

func (k EventKind) String() string {
	switch k {
	case ValueSet:
		return "value_set"
	case ValueRemoved:
		return "value_removed"
	case KeyRenamed:
		return "key_renamed"
	case ValueReplaced:
		return "value_replaced"
	case ElementInserted:
		return "element_inserted"
	case ElementReordered:
		return "element_reordered"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event describes one structural change on Target. For ValueReplaced the
// target may be a scalar whose value changed.
type Event struct {
	Kind   EventKind
	Target *Element

	Key   string // ValueSet/ValueRemoved on objects
	Index int    // ValueSet/ValueRemoved/ElementInserted on arrays

	OldKey string // KeyRenamed
	NewKey string

	From int // ElementReordered
	To   int

	Value *Element // ValueSet/ElementInserted
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%d", e.Kind, e.Target.ID())
}

type subscriber struct {
	fn       func([]Event)
	disposed bool
}

// Document owns an element tree and broadcasts its structural events.
// A Document is not safe for concurrent use; all mutation and delivery
// happen on the goroutine that owns it.
type Document struct {
	root   *Element
	nextID ID

	subs []*subscriber

	batchDepth int
	batch      []Event

	deferred   bool
	queue      [][]Event
	delivering bool
	outbox     [][]Event

	now func() time.Time
}

// New builds a document from a Go value (see Object for ordered objects).
func New(v any) (*Document, error) {
	d := &Document{now: time.Now}
	root, err := d.build(v, nil)
	if err != nil {
		return nil, err
	}
	d.root = root
	return d, nil
}

// MustNew is New for literals known to be valid.
func MustNew(v any) *Document {
	d, err := New(v)
	if err != nil {
		panic(err)
	}
	return d
}

// Root returns the root element.
func (d *Document) Root() *Element { return d.root }

// Now returns the document clock, used for new date values.
func (d *Document) Now() time.Time { return d.now() }

// SetClock overrides the clock used for new date values.
func (d *Document) SetClock(now func() time.Time) { d.now = now }

// Lookup resolves a path to an element.
func (d *Document) Lookup(p modelpath.Path) (*Element, error) {
	cur := d.root
	for i, seg := range p {
		next, err := cur.Child(seg)
		if err != nil {
			return nil, fmt.Errorf("%s at %s: %w", p, p[:i+1], err)
		}
		cur = next
	}
	return cur, nil
}

// Subscribe registers fn for every delivery. Each delivery is the slice of
// events produced by one mutation or one Batch. The returned function
// disposes the subscription; no delivery reaches fn afterwards, including
// the remainder of a delivery in progress.
func (d *Document) Subscribe(fn func([]Event)) (unsubscribe func()) {
	s := &subscriber{fn: fn}
	d.subs = append(d.subs, s)
	return func() {
		if s.disposed {
			return
		}
		s.disposed = true
		for i, cur := range d.subs {
			if cur == s {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				break
			}
		}
	}
}

// SetDeferred switches deferred delivery on or off. While deferred, events
// queue until Flush, which models a remote store acknowledging mutations
// later than the call that requested them.
func (d *Document) SetDeferred(deferred bool) {
	d.deferred = deferred
}

// Pending returns the number of queued deliveries.
func (d *Document) Pending() int { return len(d.queue) }

// Flush delivers all queued deliveries in order. Pending reports the
// deliveries still queued while a subscriber runs.
func (d *Document) Flush() {
	for len(d.queue) > 0 {
		events := d.queue[0]
		d.queue = d.queue[1:]
		d.dispatch(events)
	}
}

// FlushOne delivers the oldest queued delivery. It reports whether there
// was one.
func (d *Document) FlushOne() bool {
	if len(d.queue) == 0 {
		return false
	}
	events := d.queue[0]
	d.queue = d.queue[1:]
	d.dispatch(events)
	return true
}

// Batch runs fn and delivers every event it produced as a single delivery.
// Mutations made before an error returned by fn stay applied.
func (d *Document) Batch(fn func() error) error {
	d.batchDepth++
	err := fn()
	d.batchDepth--
	if d.batchDepth == 0 && len(d.batch) > 0 {
		events := d.batch
		d.batch = nil
		d.deliver(events)
	}
	return err
}

func (d *Document) emit(ev Event) {
	if d.batchDepth > 0 {
		d.batch = append(d.batch, ev)
		return
	}
	d.deliver([]Event{ev})
}

func (d *Document) deliver(events []Event) {
	if d.deferred {
		d.queue = append(d.queue, events)
		return
	}
	d.dispatch(events)
}

// dispatch hands events to subscribers. Mutations made by a subscriber while
// a delivery is running are delivered after it finishes, keeping order.
func (d *Document) dispatch(events []Event) {
	d.outbox = append(d.outbox, events)
	if d.delivering {
		return
	}
	d.delivering = true
	defer func() { d.delivering = false }()
	for len(d.outbox) > 0 {
		next := d.outbox[0]
		d.outbox = d.outbox[1:]
		subs := append([]*subscriber(nil), d.subs...)
		for _, s := range subs {
			if s.disposed {
				continue
			}
			s.fn(next)
		}
	}
}

// parentOf resolves the container holding the last segment of p.
func (d *Document) parentOf(p modelpath.Path) (*Element, modelpath.Segment, error) {
	seg, ok := p.Last()
	if !ok {
		return nil, seg, ErrRootPath
	}
	parent, err := d.Lookup(p.Parent())
	if err != nil {
		return nil, seg, err
	}
	if !parent.kind.IsContainer() {
		return nil, seg, fmt.Errorf("%s: %w", p.Parent(), ErrNotContainer)
	}
	if (parent.kind == KindArray) != seg.IsIndex() {
		return nil, seg, fmt.Errorf("%s: %w", p, ErrSegmentMismatch)
	}
	return parent, seg, nil
}

// Set stores v at p. On objects the key is created or replaced in place; on
// arrays the index must already exist (use Insert to grow an array).
func (d *Document) Set(p modelpath.Path, v any) error {
	parent, seg, err := d.parentOf(p)
	if err != nil {
		return err
	}
	child, err := d.build(v, parent)
	if err != nil {
		return err
	}

	ev := Event{Kind: ValueSet, Target: parent, Value: child}
	if parent.kind == KindObject {
		key := seg.Key()
		child.key = key
		if old, ok := parent.fields[key]; ok {
			old.parent = nil
		} else {
			parent.keys = append(parent.keys, key)
		}
		parent.fields[key] = child
		ev.Key = key
	} else {
		i := seg.Index()
		if i < 0 || i >= len(parent.items) {
			return fmt.Errorf("%s: %w", p, ErrIndexRange)
		}
		parent.items[i].parent = nil
		parent.items[i] = child
		ev.Index = i
	}
	d.emit(ev)
	return nil
}

// Remove deletes the element at p.
func (d *Document) Remove(p modelpath.Path) error {
	parent, seg, err := d.parentOf(p)
	if err != nil {
		return err
	}

	ev := Event{Kind: ValueRemoved, Target: parent}
	if parent.kind == KindObject {
		key := seg.Key()
		old, ok := parent.fields[key]
		if !ok {
			return fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		old.parent = nil
		delete(parent.fields, key)
		parent.keys = removeString(parent.keys, key)
		ev.Key = key
	} else {
		i := seg.Index()
		if i < 0 || i >= len(parent.items) {
			return fmt.Errorf("%s: %w", p, ErrIndexRange)
		}
		parent.items[i].parent = nil
		parent.items = append(parent.items[:i], parent.items[i+1:]...)
		ev.Index = i
	}
	d.emit(ev)
	return nil
}

// Rename moves the object child at p to newKey, keeping its position and
// identity. Renaming onto the same key is a no-op.
func (d *Document) Rename(p modelpath.Path, newKey string) error {
	parent, seg, err := d.parentOf(p)
	if err != nil {
		return err
	}
	if parent.kind != KindObject {
		return fmt.Errorf("%s: %w", p, ErrSegmentMismatch)
	}
	oldKey := seg.Key()
	child, ok := parent.fields[oldKey]
	if !ok {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if oldKey == newKey {
		return nil
	}
	if _, exists := parent.fields[newKey]; exists {
		return fmt.Errorf("%q: %w", newKey, ErrDuplicateKey)
	}

	for i, k := range parent.keys {
		if k == oldKey {
			parent.keys[i] = newKey
			break
		}
	}
	delete(parent.fields, oldKey)
	parent.fields[newKey] = child
	child.key = newKey
	d.emit(Event{Kind: KeyRenamed, Target: parent, OldKey: oldKey, NewKey: newKey})
	return nil
}

// Replace resets the content of the element at p to v, keeping the
// element's identity. The kind may change.
func (d *Document) Replace(p modelpath.Path, v any) error {
	target, err := d.Lookup(p)
	if err != nil {
		return err
	}
	fresh, err := d.build(v, nil)
	if err != nil {
		return err
	}
	target.forEachChild(func(c *Element) { c.parent = nil })

	target.kind = fresh.kind
	target.keys, target.fields, target.items = fresh.keys, fresh.fields, fresh.items
	target.str, target.num, target.flag, target.date = fresh.str, fresh.num, fresh.flag, fresh.date
	target.forEachChild(func(c *Element) { c.parent = target })

	d.emit(Event{Kind: ValueReplaced, Target: target})
	return nil
}

// Insert places v at index in the array at p. index may equal the array
// length to append.
func (d *Document) Insert(p modelpath.Path, index int, v any) error {
	arr, err := d.Lookup(p)
	if err != nil {
		return err
	}
	if arr.kind != KindArray {
		return fmt.Errorf("%s: %w", p, ErrSegmentMismatch)
	}
	if index < 0 || index > len(arr.items) {
		return fmt.Errorf("%s[%d]: %w", p, index, ErrIndexRange)
	}
	child, err := d.build(v, arr)
	if err != nil {
		return err
	}
	arr.items = append(arr.items, nil)
	copy(arr.items[index+1:], arr.items[index:])
	arr.items[index] = child
	d.emit(Event{Kind: ElementInserted, Target: arr, Index: index, Value: child})
	return nil
}

// Append inserts v at the end of the array at p.
func (d *Document) Append(p modelpath.Path, v any) error {
	arr, err := d.Lookup(p)
	if err != nil {
		return err
	}
	return d.Insert(p, arr.Size(), v)
}

// Move relocates the array element at from so that it ends up at to.
func (d *Document) Move(p modelpath.Path, from, to int) error {
	arr, err := d.Lookup(p)
	if err != nil {
		return err
	}
	if arr.kind != KindArray {
		return fmt.Errorf("%s: %w", p, ErrSegmentMismatch)
	}
	n := len(arr.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%s move %d->%d: %w", p, from, to, ErrIndexRange)
	}
	if from == to {
		return nil
	}
	moveItem(arr.items, from, to)
	d.emit(Event{Kind: ElementReordered, Target: arr, From: from, To: to})
	return nil
}

func (e *Element) forEachChild(fn func(*Element)) {
	for _, k := range e.keys {
		fn(e.fields[k])
	}
	for _, item := range e.items {
		fn(item)
	}
}

// build converts a Go value into a fresh element subtree under parent.
func (d *Document) build(v any, parent *Element) (*Element, error) {
	d.nextID++
	e := &Element{id: d.nextID, parent: parent}

	switch val := v.(type) {
	case nil:
		e.kind = KindNull
	case *Element:
		return d.build(val.Interface(), parent)
	case Object:
		e.kind = KindObject
		e.fields = make(map[string]*Element, len(val))
		for _, f := range val {
			child, err := d.build(f.Value, e)
			if err != nil {
				return nil, err
			}
			child.key = f.Key
			if _, dup := e.fields[f.Key]; !dup {
				e.keys = append(e.keys, f.Key)
			}
			e.fields[f.Key] = child
		}
	case map[string]any:
		return d.build(sortedFields(val), parent)
	case []any:
		e.kind = KindArray
		e.items = make([]*Element, 0, len(val))
		for _, item := range val {
			child, err := d.build(item, e)
			if err != nil {
				return nil, err
			}
			e.items = append(e.items, child)
		}
	case string:
		e.kind, e.str = KindString, val
	case bool:
		e.kind, e.flag = KindBoolean, val
	case time.Time:
		e.kind, e.date = KindDate, val
	case float64:
		e.kind, e.num = KindNumber, val
	case float32:
		e.kind, e.num = KindNumber, float64(val)
	case int:
		e.kind, e.num = KindNumber, float64(val)
	case int64:
		e.kind, e.num = KindNumber, float64(val)
	case int32:
		e.kind, e.num = KindNumber, float64(val)
	case uint:
		e.kind, e.num = KindNumber, float64(val)
	case uint64:
		e.kind, e.num = KindNumber, float64(val)
	default:
		return nil, fmt.Errorf("%T: %w", v, ErrUnsupportedValue)
	}
	return e, nil
}

func removeString(list []string, s string) []string {
	for i, cur := range list {
		if cur == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// moveItem moves list[from] to position to, shifting the elements between.
func moveItem[T any](list []T, from, to int) {
	item := list[from]
	if from < to {
		copy(list[from:to], list[from+1:to+1])
	} else {
		copy(list[to+1:from+1], list[to:from])
	}
	list[to] = item
}
