package sched

// colorDSATUR greedily colors the conflict graph using the saturation-degree
// heuristic: the next vertex is the uncolored one with the most distinctly
// colored neighbors, ties broken by higher degree, then by lexicographically
// smaller pair key. The order is fully deterministic, so identical inputs
// always produce identical colorings.
//
// Returns color classes indexed by color; each class lists vertex indices in
// assignment order.
func colorDSATUR(g *conflictGraph) [][]int {
	n := len(g.pairs)
	if n == 0 {
		return nil
	}

	color := make([]int, n)
	for i := range color {
		color[i] = -1
	}
	// saturation[v] tracks the set of colors used by v's neighbors.
	saturation := make([]map[int]bool, n)
	for i := range saturation {
		saturation[i] = make(map[int]bool)
	}

	maxColor := -1
	for assigned := 0; assigned < n; assigned++ {
		v := pickNext(g, color, saturation)

		c := lowestFreeColor(g, v, color)
		color[v] = c
		if c > maxColor {
			maxColor = c
		}
		for _, w := range g.adj[v] {
			saturation[w][c] = true
		}
	}

	// Classes list vertices in increasing vertex-index order; callers impose
	// their own stable ordering on stage contents.
	classes := make([][]int, maxColor+1)
	for v := 0; v < n; v++ {
		classes[color[v]] = append(classes[color[v]], v)
	}
	return classes
}

// pickNext selects the uncolored vertex with maximum saturation, breaking
// ties by degree (descending) and then pair key (ascending).
func pickNext(g *conflictGraph, color []int, saturation []map[int]bool) int {
	best := -1
	for v := range g.pairs {
		if color[v] != -1 {
			continue
		}
		if best == -1 {
			best = v
			continue
		}
		sv, sb := len(saturation[v]), len(saturation[best])
		switch {
		case sv > sb:
			best = v
		case sv == sb:
			dv, db := g.degree(v), g.degree(best)
			if dv > db || (dv == db && g.pairs[v].Key() < g.pairs[best].Key()) {
				best = v
			}
		}
	}
	return best
}

// lowestFreeColor returns the smallest color not used by any neighbor of v.
func lowestFreeColor(g *conflictGraph, v int, color []int) int {
	used := make(map[int]bool, len(g.adj[v]))
	for _, w := range g.adj[v] {
		if color[w] != -1 {
			used[color[w]] = true
		}
	}
	for c := 0; ; c++ {
		if !used[c] {
			return c
		}
	}
}
