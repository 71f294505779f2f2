package document

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// OpKind names a mutation carried by an Op.
type OpKind string

const (
	OpSet     OpKind = "set"
	OpRemove  OpKind = "remove"
	OpRename  OpKind = "rename"
	OpReplace OpKind = "replace"
	OpInsert  OpKind = "insert"
	OpMove    OpKind = "move"
)

// Op is a serializable mutation request. Remote peers and the file watcher
// produce ops; the goroutine that owns the Document applies them.
type Op struct {
	ID     ulid.ULID `json:"id"`
	Kind   OpKind    `json:"op"`
	Path   string    `json:"path"`
	NewKey string    `json:"new_key,omitempty"`
	Index  int       `json:"index,omitempty"`
	From   int       `json:"from,omitempty"`
	To     int       `json:"to,omitempty"`
	Value  any       `json:"value,omitempty"`
}

// NewOp returns an op stamped with a fresh request ID.
func NewOp(kind OpKind, p modelpath.Path) Op {
	return Op{ID: ulid.Make(), Kind: kind, Path: p.String()}
}

func (o Op) String() string {
	return fmt.Sprintf("%s %s (%s)", o.Kind, o.Path, o.ID)
}

// MarshalJSON encodes an op with Value in document form (ordered objects,
// tagged dates).
func (o Op) MarshalJSON() ([]byte, error) {
	w := struct {
		ID     string          `json:"id"`
		Kind   OpKind          `json:"op"`
		Path   string          `json:"path"`
		NewKey string          `json:"new_key,omitempty"`
		Index  int             `json:"index,omitempty"`
		From   int             `json:"from,omitempty"`
		To     int             `json:"to,omitempty"`
		Value  json.RawMessage `json:"value,omitempty"`
	}{ID: o.ID.String(), Kind: o.Kind, Path: o.Path, NewKey: o.NewKey, Index: o.Index, From: o.From, To: o.To}
	if o.Kind == OpSet || o.Kind == OpReplace || o.Kind == OpInsert {
		raw, err := EncodeValue(o.Value)
		if err != nil {
			return nil, err
		}
		w.Value = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes an op, keeping object key order inside Value.
func (o *Op) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     string          `json:"id"`
		Kind   OpKind          `json:"op"`
		Path   string          `json:"path"`
		NewKey string          `json:"new_key"`
		Index  int             `json:"index"`
		From   int             `json:"from"`
		To     int             `json:"to"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Op{Kind: raw.Kind, Path: raw.Path, NewKey: raw.NewKey, Index: raw.Index, From: raw.From, To: raw.To}
	if raw.ID != "" {
		id, err := ulid.Parse(raw.ID)
		if err != nil {
			return fmt.Errorf("op id %q: %w", raw.ID, err)
		}
		o.ID = id
	}
	if len(raw.Value) > 0 {
		v, err := DecodeJSON(raw.Value)
		if err != nil {
			return fmt.Errorf("op %s value: %w", o.ID, err)
		}
		o.Value = v
	}
	return nil
}

// Apply executes a single op.
func (d *Document) Apply(op Op) error {
	p, err := modelpath.Parse(op.Path)
	if err != nil {
		return fmt.Errorf("op %s: %w", op.ID, err)
	}
	switch op.Kind {
	case OpSet:
		return d.Set(p, op.Value)
	case OpRemove:
		return d.Remove(p)
	case OpRename:
		return d.Rename(p, op.NewKey)
	case OpReplace:
		return d.Replace(p, op.Value)
	case OpInsert:
		return d.Insert(p, op.Index, op.Value)
	case OpMove:
		return d.Move(p, op.From, op.To)
	}
	return fmt.Errorf("%q: %w", op.Kind, ErrUnknownOp)
}

// ApplyAll executes ops in order as one Batch. It stops at the first
// failing op; ops before it stay applied and are delivered.
func (d *Document) ApplyAll(ops []Op) error {
	return d.Batch(func() error {
		for i, op := range ops {
			if err := d.Apply(op); err != nil {
				return fmt.Errorf("op %d of %d: %w", i+1, len(ops), err)
			}
		}
		return nil
	})
}
