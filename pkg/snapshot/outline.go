// Package snapshot flattens the expanded part of a tree into labelled rows
// and renders them as a static SVG or PNG picture.
package snapshot

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
	"github.com/vanderheijden86/modeltree/pkg/tree"
)

// Row is one visible node.
type Row struct {
	Depth     int // relative to the outline's start
	Parent    int // row index of the parent, -1 for the first row
	Kind      document.Kind
	Label     string
	Collapsed bool // a non-empty container that is not expanded
}

// Outline lists the expanded part of the subtree at path depth-first.
func Outline(m *tree.Model, at modelpath.Path) ([]Row, error) {
	start, err := m.NodeAtPath(at)
	if err != nil {
		return nil, err
	}
	var rows []Row
	var walk func(id tree.NodeID, depth, parent int)
	walk = func(id tree.NodeID, depth, parent int) {
		kind := m.Kind(id)
		expanded := m.Expanded(id)
		rows = append(rows, Row{
			Depth:     depth,
			Parent:    parent,
			Kind:      kind,
			Label:     Label(m, id),
			Collapsed: kind.IsContainer() && !expanded && m.Size(id) > 0,
		})
		if !kind.IsContainer() || !expanded {
			return
		}
		self := len(rows) - 1
		for _, child := range m.Children(id) {
			walk(child, depth+1, self)
		}
	}
	walk(start, 0, -1)
	return rows, nil
}

// Label renders a node as `key: value`. Containers show their size as {n}
// or [n] and strings are quoted.
func Label(m *tree.Model, id tree.NodeID) string {
	var b strings.Builder
	if seg, ok := m.Segment(id); ok {
		b.WriteString(seg.String())
		b.WriteString(": ")
	}
	switch m.Kind(id) {
	case document.KindObject:
		fmt.Fprintf(&b, "{%d}", m.Size(id))
	case document.KindArray:
		fmt.Fprintf(&b, "[%d]", m.Size(id))
	case document.KindString:
		fmt.Fprintf(&b, "%q", m.Text(id))
	default:
		b.WriteString(m.Text(id))
	}
	return b.String()
}
