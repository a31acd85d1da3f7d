package fragment

import "github.com/matzehuels/lanegraph/pkg/dag"

// Predicate reports whether a node must stay visible regardless of its
// degree. A nil Predicate flags nothing.
type Predicate func(g *dag.Graph, n *dag.Node) bool

// ByHashes flags the commits whose hash is in set. EDGE placeholders that
// stand in for such a commit are not flagged.
func ByHashes(set map[string]bool) Predicate {
	return func(_ *dag.Graph, n *dag.Node) bool {
		return n.Type != dag.NodeEdge && set[n.Hash]
	}
}

// Any flags a node when at least one of preds does. Nil entries are skipped.
func Any(preds ...Predicate) Predicate {
	return func(g *dag.Graph, n *dag.Node) bool {
		for _, p := range preds {
			if p != nil && p(g, n) {
				return true
			}
		}
		return false
	}
}
