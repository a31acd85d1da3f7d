package dag

import (
	"slices"
)

// CountCrossings returns the total number of edge crossings between every
// pair of consecutive rows. Columns are the node positions within each row,
// so the count measures how tangled the lane layout is on screen.
//
// It runs in O(R × E log V) time where R is the number of rows, E is edges
// per row pair and V is nodes per row.
func CountCrossings(g *Graph) int {
	total := 0
	for r := 0; r+1 < g.RowCount(); r++ {
		total += CountRowCrossings(g, r)
	}
	return total
}

// CountRowCrossings counts edge crossings between row and row+1 using a
// Fenwick tree (binary indexed tree). Edges that skip rows, such as the
// synthetic edge of a collapsed fragment, are ignored.
//
// Two edges (u1,v1) and (u2,v2) cross if and only if:
//
//	col(u1) < col(u2) AND col(v1) > col(v2)
//
// This is the number of inversions in the sequence of target columns when
// edges are sorted by source column.
func CountRowCrossings(g *Graph, row int) int {
	if row < 0 || row+1 >= g.RowCount() {
		return 0
	}
	upper, lower := g.rows[row], g.rows[row+1]
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}

	type edge struct{ upper, lower int }
	edges := make([]edge, 0, len(upper)*2)
	for i, id := range upper {
		for _, e := range g.nodes[id].Down {
			to := &g.nodes[e.To]
			if to.Row != row+1 {
				continue
			}
			edges = append(edges, edge{i, slices.Index(lower, e.To)})
		}
	}
	if len(edges) < 2 {
		return 0
	}

	slices.SortFunc(edges, func(a, b edge) int {
		if a.upper != b.upper {
			return a.upper - b.upper
		}
		return a.lower - b.lower
	})

	fenwick := make([]int, len(lower)+1)
	crossings, total := 0, 0
	for _, e := range edges {
		// Edges seen so far with target <= e.lower.
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		crossings += total - lessOrEqual

		total++
		for idx := e.lower + 1; idx < len(fenwick); idx += idx & (-idx) {
			fenwick[idx]++
		}
	}
	return crossings
}

// MaxWidth returns the number of nodes in the widest row.
func MaxWidth(g *Graph) int {
	w := 0
	for _, r := range g.rows {
		w = max(w, len(r))
	}
	return w
}
