// Package document is an in-memory document engine: a tree of typed elements
// that can be mutated through a small API, each mutation announcing itself to
// subscribers as a structural event.
//
// It stands in for a collaborative store. Subscribers never see an element
// tree in a half-applied state: events are delivered after the mutation that
// produced them is complete, in emission order.
package document

import (
	"sort"
	"strconv"
	"time"

	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// Kind is the type tag of an element.
type Kind int

const (
	KindNull Kind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindBoolean
	KindDate
)

// Kinds lists every kind, containers first.
var Kinds = []Kind{KindObject, KindArray, KindString, KindNumber, KindBoolean, KindDate, KindNull}

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindNull:
		return "null"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind maps a kind name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, true
		}
	}
	return KindNull, false
}

// IsContainer reports whether elements of this kind have children.
func (k Kind) IsContainer() bool {
	return k == KindObject || k == KindArray
}

// ID identifies an element for the lifetime of its document.
type ID uint64

// Field is one entry of an ordered object value.
type Field struct {
	Key   string
	Value any
}

// Object is an object value whose key order is significant. Decoders produce
// it so that documents keep the order of their source file.
type Object []Field

// Element is a node of the document tree. Elements are owned by their
// Document; callers hold pointers but never mutate them directly.
type Element struct {
	id     ID
	kind   Kind
	parent *Element
	key    string // key under an object parent

	keys   []string
	fields map[string]*Element
	items  []*Element

	str  string
	num  float64
	flag bool
	date time.Time
}

// ID returns the element's stable identifier.
func (e *Element) ID() ID { return e.id }

// Kind returns the element's type tag.
func (e *Element) Kind() Kind { return e.kind }

// Parent returns the containing element, or nil for the root and for
// detached elements.
func (e *Element) Parent() *Element { return e.parent }

// Size returns the number of children of a container, 0 for scalars.
func (e *Element) Size() int {
	switch e.kind {
	case KindObject:
		return len(e.keys)
	case KindArray:
		return len(e.items)
	}
	return 0
}

// Keys returns a copy of the object's keys in document order.
func (e *Element) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Get returns the child stored under key.
func (e *Element) Get(key string) (*Element, bool) {
	if e.kind != KindObject {
		return nil, false
	}
	child, ok := e.fields[key]
	return child, ok
}

// At returns the array element at index i.
func (e *Element) At(i int) (*Element, bool) {
	if e.kind != KindArray || i < 0 || i >= len(e.items) {
		return nil, false
	}
	return e.items[i], true
}

// Child resolves a single path segment.
func (e *Element) Child(seg modelpath.Segment) (*Element, error) {
	switch e.kind {
	case KindObject:
		if seg.IsIndex() {
			return nil, ErrSegmentMismatch
		}
		if child, ok := e.fields[seg.Key()]; ok {
			return child, nil
		}
		return nil, ErrNotFound
	case KindArray:
		if !seg.IsIndex() {
			return nil, ErrSegmentMismatch
		}
		if child, ok := e.At(seg.Index()); ok {
			return child, nil
		}
		return nil, ErrIndexRange
	default:
		return nil, ErrNotContainer
	}
}

// ForEach calls fn for every child in document order.
func (e *Element) ForEach(fn func(seg modelpath.Segment, child *Element)) {
	switch e.kind {
	case KindObject:
		for _, k := range e.keys {
			fn(modelpath.Key(k), e.fields[k])
		}
	case KindArray:
		for i, child := range e.items {
			fn(modelpath.Index(i), child)
		}
	}
}

// RelativeSegment returns the segment addressing e inside its parent.
func (e *Element) RelativeSegment() (modelpath.Segment, bool) {
	p := e.parent
	if p == nil {
		return modelpath.Segment{}, false
	}
	if p.kind == KindObject {
		return modelpath.Key(e.key), true
	}
	for i, item := range p.items {
		if item == e {
			return modelpath.Index(i), true
		}
	}
	return modelpath.Segment{}, false
}

// Path returns the element's path from the document root.
func (e *Element) Path() modelpath.Path {
	var rev []modelpath.Segment
	for cur := e; cur.parent != nil; cur = cur.parent {
		seg, ok := cur.RelativeSegment()
		if !ok {
			break
		}
		rev = append(rev, seg)
	}
	p := make(modelpath.Path, len(rev))
	for i, seg := range rev {
		p[len(rev)-1-i] = seg
	}
	return p
}

// StringValue returns the value of a string element.
func (e *Element) StringValue() string { return e.str }

// NumberValue returns the value of a number element.
func (e *Element) NumberValue() float64 { return e.num }

// BoolValue returns the value of a boolean element.
func (e *Element) BoolValue() bool { return e.flag }

// DateValue returns the value of a date element.
func (e *Element) DateValue() time.Time { return e.date }

// Text returns the rendered form of a scalar, the same text presenters
// display and search matches against. Containers render as "".
func (e *Element) Text() string {
	switch e.kind {
	case KindString:
		return e.str
	case KindNumber:
		return strconv.FormatFloat(e.num, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(e.flag)
	case KindDate:
		return e.date.Format(time.RFC3339)
	case KindNull:
		return "null"
	}
	return ""
}

// Interface returns the element as a plain Go value: Object for objects
// (key order kept), []any for arrays, and string, float64, bool, time.Time
// or nil for scalars.
func (e *Element) Interface() any {
	switch e.kind {
	case KindObject:
		obj := make(Object, 0, len(e.keys))
		for _, k := range e.keys {
			obj = append(obj, Field{Key: k, Value: e.fields[k].Interface()})
		}
		return obj
	case KindArray:
		arr := make([]any, len(e.items))
		for i, item := range e.items {
			arr[i] = item.Interface()
		}
		return arr
	case KindString:
		return e.str
	case KindNumber:
		return e.num
	case KindBoolean:
		return e.flag
	case KindDate:
		return e.date
	}
	return nil
}

// sameScalar reports whether two scalar elements hold equal values.
func sameScalar(a, b *Element) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindString:
		return a.str == b.str
	case KindNumber:
		return a.num == b.num
	case KindBoolean:
		return a.flag == b.flag
	case KindDate:
		return a.date.Equal(b.date)
	case KindNull:
		return true
	}
	return false
}

// ZeroValue returns the initial value for a newly created element of kind k.
func ZeroValue(k Kind, now time.Time) any {
	switch k {
	case KindObject:
		return Object{}
	case KindArray:
		return []any{}
	case KindString:
		return ""
	case KindNumber:
		return float64(0)
	case KindBoolean:
		return false
	case KindDate:
		return now
	}
	return nil
}

// sortedFields turns an unordered map into an Object with sorted keys so
// documents built from Go maps are deterministic.
func sortedFields(m map[string]any) Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := make(Object, len(keys))
	for i, k := range keys {
		obj[i] = Field{Key: k, Value: m[k]}
	}
	return obj
}
