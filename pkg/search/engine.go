// Package search finds query matches in the values of a tree.Model and keeps
// the result sequence valid while the tree changes underneath it.
//
// Results are ordered depth-first in the tree's own child order, the same
// order a presenter lists nodes in. After a structural change only the
// subtrees the change touched are re-scanned and spliced back in place.
package search

import (
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/highlight"
	"github.com/vanderheijden86/modeltree/pkg/metrics"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
	"github.com/vanderheijden86/modeltree/pkg/tree"
)

// Result is one occurrence of the query in a value node. Start and End are
// rune offsets into the node's rendered text.
type Result struct {
	Node       tree.NodeID
	Kind       MatchKind
	Start, End int
}

// key identifies a result across repairs.
type key struct {
	node  tree.NodeID
	kind  MatchKind
	start int
}

func (r Result) key() key { return key{r.Node, r.Kind, r.Start} }

// Option configures an Engine.
type Option func(*Engine)

// WithCaseSensitive makes the default matchers respect case.
func WithCaseSensitive(on bool) Option {
	return func(e *Engine) { e.caseSensitive = on }
}

// WithReveal makes navigation expand the active result's ancestors and
// select it in the model.
func WithReveal(on bool) Option {
	return func(e *Engine) { e.reveal = on }
}

// Engine holds the current query, its results and the active cursor.
type Engine struct {
	model *tree.Model
	sub   *tree.Subscription

	matchers      map[document.Kind]Matcher
	caseSensitive bool
	reveal        bool

	query   string
	results []Result
	active  int // -1 when none
	rev     uint64
}

// New creates an Engine over m. It follows m's changes until Close.
func New(m *tree.Model, opts ...Option) *Engine {
	e := &Engine{model: m, active: -1, rev: m.Revision()}
	for _, opt := range opts {
		opt(e)
	}
	e.matchers = defaultMatchers(e.caseSensitive)
	e.sub = m.Subscribe(e.sync)
	return e
}

// Close stops following the model.
func (e *Engine) Close() {
	e.sub.Dispose()
}

// Register installs the matcher used for values of kind. A nil matcher
// excludes the kind from searches. The current query is re-run.
func (e *Engine) Register(kind document.Kind, m Matcher) {
	if m == nil {
		delete(e.matchers, kind)
	} else {
		e.matchers[kind] = m
	}
	if e.query != "" {
		e.Search(e.query)
	}
}

// Search replaces the result sequence with the matches for query and makes
// the first one active. An empty query clears.
func (e *Engine) Search(query string) {
	e.query = query
	e.rev = e.model.Revision()
	e.rerun()
	if len(e.results) > 0 {
		e.setActive(0)
	}
}

// Clear drops the query and its results.
func (e *Engine) Clear() { e.Search("") }

// Query returns the current query.
func (e *Engine) Query() string { return e.query }

// Results returns the current results in depth-first order.
func (e *Engine) Results() []Result {
	e.sync()
	return append([]Result(nil), e.results...)
}

// Len returns the number of results.
func (e *Engine) Len() int {
	e.sync()
	return len(e.results)
}

// Active returns the active result.
func (e *Engine) Active() (Result, bool) {
	e.sync()
	if e.active < 0 {
		return Result{}, false
	}
	return e.results[e.active], true
}

// ActiveIndex returns the position of the active result, or -1.
func (e *Engine) ActiveIndex() int {
	e.sync()
	return e.active
}

// Next activates the following result, wrapping to the first.
func (e *Engine) Next() {
	e.sync()
	if len(e.results) == 0 {
		return
	}
	e.setActive((e.active + 1) % len(e.results))
}

// Previous activates the preceding result, wrapping to the last.
func (e *Engine) Previous() {
	e.sync()
	if len(e.results) == 0 {
		return
	}
	i := e.active - 1
	if i < 0 {
		i = len(e.results) - 1
	}
	e.setActive(i)
}

func (e *Engine) setActive(i int) {
	e.active = i
	if !e.reveal || i < 0 {
		return
	}
	node := e.results[i].Node
	e.model.ExpandPathTo(node)
	_ = e.model.Select(node)
}

// ResultsFor returns the results on one node, in text order.
func (e *Engine) ResultsFor(node tree.NodeID) []Result {
	e.sync()
	var out []Result
	for _, r := range e.results {
		if r.Node == node {
			out = append(out, r)
		}
	}
	return out
}

// Ranges returns the highlight ranges for one node, flagging the active one.
func (e *Engine) Ranges(node tree.NodeID) []highlight.Range {
	e.sync()
	var out []highlight.Range
	for i, r := range e.results {
		if r.Node == node {
			out = append(out, highlight.Range{Start: r.Start, End: r.End, Active: i == e.active})
		}
	}
	return out
}

// Path returns the current path of a result's node.
func (e *Engine) Path(r Result) modelpath.Path {
	return e.model.Path(r.Node)
}

// rerun scans the whole tree.
func (e *Engine) rerun() {
	defer metrics.Timer(metrics.SearchFull)()
	e.results = nil
	e.active = -1
	if e.query == "" {
		return
	}
	e.results = e.scan(e.model.Root(), nil)
}

// scan appends the matches in the subtree at root, depth-first.
func (e *Engine) scan(root tree.NodeID, out []Result) []Result {
	e.model.Walk(root, func(id tree.NodeID) bool {
		kind := e.model.Kind(id)
		if kind.IsContainer() {
			return true
		}
		matcher, ok := e.matchers[kind]
		mk, known := MatchKindOf(kind)
		if !ok || !known {
			return false
		}
		for _, sp := range matcher.Match(e.model.Text(id), e.query) {
			out = append(out, Result{Node: id, Kind: mk, Start: sp.Start, End: sp.End})
		}
		return false
	})
	return out
}
