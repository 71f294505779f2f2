// Package testutil provides document fixture generators for tests and
// benchmarks. All generators produce deterministic output for a given seed.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// GeneratorConfig controls document generation.
type GeneratorConfig struct {
	Seed      int64     // Random seed for determinism (0 = use current time)
	MaxDepth  int       // Deepest container nesting (default: 4)
	MaxFanout int       // Most children per container (default: 6)
	KeyPrefix string    // Prefix for generated object keys (default: "k")
	BaseTime  time.Time // Base for date values (default: fixed time)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42,
		MaxDepth:  4,
		MaxFanout: 6,
		KeyPrefix: "k",
		BaseTime:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Generator creates random documents and mutations.
type Generator struct {
	cfg  GeneratorConfig
	rng  *rand.Rand
	keys int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MaxFanout <= 0 {
		cfg.MaxFanout = def.MaxFanout
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = def.BaseTime
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var words = []string{"alpha", "beta", "gamma", "delta", "Port", "host", "true", "null", "42", "naïve", "日本", "multi\nline"}

// Document returns an object with about size elements below the root.
func (g *Generator) Document(size int) document.Object {
	budget := size
	var root document.Object
	for budget > 0 {
		root = append(root, document.Field{Key: g.key(), Value: g.value(1, &budget)})
	}
	return root
}

func (g *Generator) key() string {
	g.keys++
	return fmt.Sprintf("%s%d", g.cfg.KeyPrefix, g.keys)
}

// value spends at least one unit of budget.
func (g *Generator) value(depth int, budget *int) any {
	*budget--
	if depth < g.cfg.MaxDepth && *budget > 2 {
		switch g.rng.Intn(4) {
		case 0:
			return g.object(depth, budget)
		case 1:
			return g.array(depth, budget)
		}
	}
	return g.Scalar()
}

func (g *Generator) object(depth int, budget *int) document.Object {
	n := g.rng.Intn(g.cfg.MaxFanout + 1)
	obj := document.Object{}
	for i := 0; i < n && *budget > 0; i++ {
		obj = append(obj, document.Field{Key: g.key(), Value: g.value(depth+1, budget)})
	}
	return obj
}

func (g *Generator) array(depth int, budget *int) []any {
	n := g.rng.Intn(g.cfg.MaxFanout + 1)
	arr := []any{}
	for i := 0; i < n && *budget > 0; i++ {
		arr = append(arr, g.value(depth+1, budget))
	}
	return arr
}

// Scalar returns a random non-container value.
func (g *Generator) Scalar() any {
	switch g.rng.Intn(6) {
	case 0:
		return float64(g.rng.Intn(1000))
	case 1:
		return g.rng.Intn(2) == 0
	case 2:
		return nil
	case 3:
		return g.cfg.BaseTime.Add(time.Duration(g.rng.Intn(1000)) * time.Hour)
	}
	return words[g.rng.Intn(len(words))]
}

// Mutation returns a random op that applies cleanly to the document rooted
// at root: add, remove, replace, rename or move.
func (g *Generator) Mutation(root *document.Element) document.Op {
	var elems []*document.Element
	var walk func(e *document.Element)
	walk = func(e *document.Element) {
		elems = append(elems, e)
		e.ForEach(func(_ modelpath.Segment, child *document.Element) { walk(child) })
	}
	walk(root)

	for {
		e := elems[g.rng.Intn(len(elems))]
		p := e.Path()
		switch g.rng.Intn(5) {
		case 0: // add
			switch e.Kind() {
			case document.KindObject:
				op := document.NewOp(document.OpSet, p.Append(modelpath.Key(g.key())))
				op.Value = g.Scalar()
				return op
			case document.KindArray:
				op := document.NewOp(document.OpInsert, p)
				op.Index = g.rng.Intn(e.Size() + 1)
				op.Value = g.Scalar()
				return op
			}
		case 1:
			if e.Parent() != nil {
				return document.NewOp(document.OpRemove, p)
			}
		case 2:
			if e.Parent() != nil {
				op := document.NewOp(document.OpReplace, p)
				budget := 4
				op.Value = g.value(g.cfg.MaxDepth-1, &budget)
				return op
			}
		case 3:
			if parent := e.Parent(); parent != nil && parent.Kind() == document.KindObject {
				op := document.NewOp(document.OpRename, p)
				op.NewKey = g.key()
				return op
			}
		case 4:
			if e.Kind() == document.KindArray && e.Size() > 1 {
				op := document.NewOp(document.OpMove, p)
				op.From = g.rng.Intn(e.Size())
				op.To = g.rng.Intn(e.Size())
				return op
			}
		}
	}
}

// Count returns the number of elements in v, including v itself.
func Count(v any) int {
	switch val := v.(type) {
	case document.Object:
		n := 1
		for _, f := range val {
			n += Count(f.Value)
		}
		return n
	case []any:
		n := 1
		for _, item := range val {
			n += Count(item)
		}
		return n
	}
	return 1
}

// QuickDocument returns a default-seeded document of about size elements.
func QuickDocument(size int) document.Object {
	return NewDefault().Document(size)
}
