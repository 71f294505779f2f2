package tree

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

var propertyValues = []any{
	1.5,
	"s",
	true,
	nil,
	document.Object{{Key: "k", Value: 1}, {Key: "m", Value: []any{"u"}}},
	[]any{1, document.Object{{Key: "n", Value: nil}}},
	document.Object{},
	[]any{},
}

var propertyKeys = []string{"a", "b", "c", "new"}

// elements lists every element of the document in depth-first order.
func elements(root *document.Element) []*document.Element {
	out := []*document.Element{root}
	root.ForEach(func(_ modelpath.Segment, child *document.Element) {
		out = append(out, elements(child)...)
	})
	return out
}

// mutate applies one random mutation; failures (duplicate keys, bad
// indices) are part of the exercise and ignored.
func mutate(t *rapid.T, d *document.Document) {
	all := elements(d.Root())
	target := rapid.SampledFrom(all).Draw(t, "target")
	p := target.Path()
	value := rapid.SampledFrom(propertyValues).Draw(t, "value")
	key := rapid.SampledFrom(propertyKeys).Draw(t, "key")

	switch rapid.IntRange(0, 5).Draw(t, "op") {
	case 0:
		_ = d.Remove(p)
	case 1:
		if target.Kind() == document.KindObject {
			_ = d.Set(p.Append(modelpath.Key(key)), value)
		} else if target.Kind() == document.KindArray && target.Size() > 0 {
			_ = d.Set(p.Append(modelpath.Index(rapid.IntRange(0, target.Size()-1).Draw(t, "index"))), value)
		}
	case 2:
		if target.Kind() == document.KindArray {
			_ = d.Insert(p, rapid.IntRange(0, target.Size()).Draw(t, "at"), value)
		}
	case 3:
		_ = d.Rename(p, key)
	case 4:
		_ = d.Replace(p, value)
	case 5:
		if target.Kind() == document.KindArray && target.Size() > 1 {
			from := rapid.IntRange(0, target.Size()-1).Draw(t, "from")
			to := rapid.IntRange(0, target.Size()-1).Draw(t, "to")
			_ = d.Move(p, from, to)
		}
	}
}

func TestTreeConvergesUnderDelayedEvents(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := document.MustNew(document.Object{
			{Key: "a", Value: []any{1, "two", document.Object{{Key: "b", Value: true}}}},
			{Key: "c", Value: document.Object{{Key: "d", Value: nil}}},
		})
		m := New(d, WithExpandDepth(2))

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 9).Draw(t, "action") {
			case 0:
				d.SetDeferred(!rapid.Bool().Draw(t, "sync"))
			case 1:
				d.FlushOne()
			case 2:
				visible := m.VisibleNodes()
				_ = m.Select(rapid.SampledFrom(visible).Draw(t, "select"))
			case 3:
				_ = m.DeleteSelectedNode()
			case 4:
				kinds := document.Kinds
				_ = m.AddToSelectedNode(rapid.SampledFrom(kinds).Draw(t, "kind"))
			default:
				mutate(t, d)
			}
			if sel, ok := m.Selection(); ok && !m.Contains(sel) {
				t.Fatalf("selection %s is not part of the tree", sel)
			}
		}

		d.Flush()
		if err := mirrors(m, m.Root(), d.Root()); err != nil {
			t.Fatalf("tree diverged: %v", err)
		}
		if m.Len() != len(elements(d.Root())) {
			t.Fatalf("expected %d nodes, got %d", len(elements(d.Root())), m.Len())
		}
		if m.IsAddingNode() {
			if container, _, _ := m.AddingTarget(); !m.Contains(container) {
				t.Fatal("pending add refers to a removed container")
			}
		}
	})
}
