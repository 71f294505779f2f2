package search

import (
	"sort"

	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/metrics"
	"github.com/vanderheijden86/modeltree/pkg/tree"
)

// sync brings the results up to date with the model's revision.
func (e *Engine) sync() {
	rev := e.model.Revision()
	if rev == e.rev {
		return
	}
	touched, full := e.model.ChangesSince(e.rev)
	e.rev = rev
	if e.query == "" {
		return
	}

	old, oldActive := e.results, e.active
	if full {
		e.rerun()
	} else {
		e.repair(touched)
	}
	e.active = nextSurvivor(old, oldActive, e.results)
}

// repair re-scans the highest touched subtrees and splices their results
// back into the sequence.
func (e *Engine) repair(touched []tree.NodeID) {
	defer metrics.Timer(metrics.SearchRepair)()

	roots := e.highestLive(touched)
	inRoots := func(id tree.NodeID) bool {
		for cur, ok := id, true; ok; cur, ok = e.model.Parent(cur) {
			if _, hit := roots[cur]; hit {
				return true
			}
		}
		return false
	}

	kept := e.results[:0:0]
	for _, r := range e.results {
		if e.model.Contains(r.Node) && !inRoots(r.Node) {
			kept = append(kept, r)
		}
	}

	pos := newPositions(e.model)
	ordered := make([]tree.NodeID, 0, len(roots))
	for id := range roots {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return compare(pos.of(ordered[i]), pos.of(ordered[j])) < 0
	})
	for _, root := range ordered {
		fresh := e.scan(root, nil)
		if len(fresh) == 0 {
			continue
		}
		rootPos := pos.of(root)
		at := sort.Search(len(kept), func(i int) bool {
			return compare(pos.of(kept[i].Node), rootPos) > 0
		})
		kept = append(kept[:at], append(fresh, kept[at:]...)...)
	}
	e.results = kept

	if err := e.check(pos); err != "" {
		debug.Log("search: inconsistent results after repair (%s), rescanning", err)
		metrics.SearchFallbacks.Inc()
		e.rerun()
	}
}

// highestLive reduces touched to its live members that have no live touched
// ancestor.
func (e *Engine) highestLive(touched []tree.NodeID) map[tree.NodeID]struct{} {
	live := make(map[tree.NodeID]struct{}, len(touched))
	for _, id := range touched {
		if e.model.Contains(id) {
			live[id] = struct{}{}
		}
	}
	roots := make(map[tree.NodeID]struct{}, len(live))
	for id := range live {
		covered := false
		for cur, ok := e.model.Parent(id); ok; cur, ok = e.model.Parent(cur) {
			if _, hit := live[cur]; hit {
				covered = true
				break
			}
		}
		if !covered {
			roots[id] = struct{}{}
		}
	}
	return roots
}

// check verifies that every result is live and the sequence is strictly
// ordered. It returns a description of the first violation.
func (e *Engine) check(pos *positions) string {
	for i, r := range e.results {
		if !e.model.Contains(r.Node) {
			return "dead node " + r.Node.String()
		}
		if i == 0 {
			continue
		}
		prev := e.results[i-1]
		c := compare(pos.of(prev.Node), pos.of(r.Node))
		if c > 0 || (c == 0 && prev.Start >= r.Start) {
			return "order at " + r.Node.String()
		}
	}
	return ""
}

// nextSurvivor picks the new active index: the old active result if it is
// still present, else the first later old result that is, else the first
// result. -1 when there are no results.
func nextSurvivor(old []Result, oldActive int, now []Result) int {
	if len(now) == 0 {
		return -1
	}
	if oldActive < 0 || oldActive >= len(old) {
		return 0
	}
	index := make(map[key]int, len(now))
	for i, r := range now {
		index[r.key()] = i
	}
	for j := oldActive; j < len(old); j++ {
		if i, ok := index[old[j].key()]; ok {
			return i
		}
	}
	return 0
}

// positions caches each node's child-index vector from the root; comparing
// two vectors lexicographically gives depth-first order.
type positions struct {
	model *tree.Model
	cache map[tree.NodeID][]int
}

func newPositions(m *tree.Model) *positions {
	return &positions{model: m, cache: make(map[tree.NodeID][]int)}
}

func (p *positions) of(id tree.NodeID) []int {
	if v, ok := p.cache[id]; ok {
		return v
	}
	parent, ok := p.model.Parent(id)
	if !ok {
		p.cache[id] = nil
		return nil
	}
	base := p.of(parent)
	idx := -1
	for i, child := range p.model.Children(parent) {
		if child == id {
			idx = i
			break
		}
	}
	v := make([]int, len(base)+1)
	copy(v, base)
	v[len(base)] = idx
	p.cache[id] = v
	return v
}

// compare orders position vectors depth-first: an ancestor precedes its
// descendants.
func compare(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
