// Package sched turns filtered candidate sets into conflict-free staged
// plans: graph-colored stages for two-qubit (CR) calibration and box-staged
// plans for single-qubit calibration. All scheduling is a pure, deterministic
// function of its inputs.
package sched

import (
	"github.com/me/qcal/pkg/model"
)

// conflictGraph is an undirected graph whose vertices are candidate CR pairs.
// Two vertices are adjacent when the operations cannot run in the same stage.
type conflictGraph struct {
	pairs []model.CRPair
	adj   [][]int
}

// buildConflictGraph adds an edge between two pairs when they share a qubit
// or when their endpoints map to a common channel. channels may be nil, in
// which case only shared-qubit conflicts apply.
func buildConflictGraph(pairs []model.CRPair, channels map[model.QubitID][]string) *conflictGraph {
	g := &conflictGraph{
		pairs: pairs,
		adj:   make([][]int, len(pairs)),
	}

	chans := make([]map[string]bool, len(pairs))
	if channels != nil {
		for i, p := range pairs {
			set := make(map[string]bool)
			for _, id := range channels[p.Control] {
				set[id] = true
			}
			for _, id := range channels[p.Target] {
				set[id] = true
			}
			chans[i] = set
		}
	}

	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[i].SharesQubit(pairs[j]) || sharesChannel(chans[i], chans[j]) {
				g.adj[i] = append(g.adj[i], j)
				g.adj[j] = append(g.adj[j], i)
			}
		}
	}

	return g
}

func sharesChannel(a, b map[string]bool) bool {
	if a == nil || b == nil {
		return false
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	for id := range a {
		if b[id] {
			return true
		}
	}
	return false
}

// degree returns the number of neighbors of vertex v.
func (g *conflictGraph) degree(v int) int {
	return len(g.adj[v])
}
