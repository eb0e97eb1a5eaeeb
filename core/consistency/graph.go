package consistency

import (
	"sort"

	"github.com/artpar/modelkit/core/schema"
)

// DetectCycles finds cycles among owning (belongs_to) relationships whose
// targets are in the set. Self references are not cycles.
//
// The search is an iterative depth-first walk over models in sorted order.
// A back-edge to a model still on the stack is recorded as (from, to) and
// not followed, so A <-> B yields the single pair (B, A).
func DetectCycles(set schema.Set) []Cycle {
	type node struct {
		name  string
		edges []string
	}
	nodes := make(map[string]*node)
	var keys []string
	for _, s := range set {
		if _, dup := nodes[s.Key()]; dup {
			continue
		}
		nodes[s.Key()] = &node{name: s.Name()}
		keys = append(keys, s.Key())
	}
	for _, s := range set {
		n := nodes[s.Key()]
		for _, rel := range s.Relationships() {
			if !rel.Type.IsOwning() {
				continue
			}
			target, ok := set.Lookup(rel.Model)
			if !ok || target.Key() == s.Key() {
				continue
			}
			n.edges = append(n.edges, target.Key())
		}
		sort.Strings(n.edges)
		n.edges = dedupe(n.edges)
	}
	sort.Strings(keys)

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(keys))

	type frame struct {
		key  string
		next int
	}
	var cycles []Cycle
	for _, root := range keys {
		if state[root] != unvisited {
			continue
		}
		stack := []frame{{key: root}}
		state[root] = onStack
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := nodes[top.key].edges
			if top.next >= len(edges) {
				state[top.key] = done
				stack = stack[:len(stack)-1]
				continue
			}
			to := edges[top.next]
			top.next++
			switch state[to] {
			case onStack:
				cycles = append(cycles, Cycle{From: nodes[top.key].name, To: nodes[to].name})
			case unvisited:
				state[to] = onStack
				stack = append(stack, frame{key: to})
			}
		}
	}
	return cycles
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
