// Package fragment collapses and expands linear runs of a commit graph.
//
// # Fragments
//
// A fragment is a chain of nodes joined by single edges: every interior node
// has exactly one up-edge and one down-edge, both ordinary. The two nodes
// that bound the chain stay visible when the fragment is collapsed and are
// joined by one synthetic HIDE_FRAGMENT edge.
//
//	  t            t
//	  |            :
//	  c0   hide    :
//	  c1  ----->   :
//	  c2           c3
//	  c3
//
// A node can never be interior when it is unconcealable: it has no up-edges,
// no down-edges, or the caller's [Predicate] flags it, typically because a
// branch or tag points at it. END_COMMIT nodes are never boundaries either;
// a chain stops at the node above them, so extending the graph never touches
// a collapsed fragment.
//
// # Row Deltas
//
// [Manager.SetVisible] rewrites the rows strictly between the two boundaries
// and returns the [delta.Replace] describing the change. Rows left holding
// only interior nodes are removed; rows with unrelated nodes survive.
// Expanding a fragment right after collapsing it returns the complementary
// Replace and restores the graph exactly.
//
// The visible rows depend only on which fragments are collapsed, not on the
// order they were collapsed or expanded in: an expanded node goes back into
// the row it was built in (see [dag.Node] Origin and Slot), next to whatever
// part of that row is still visible. Fragments sharing rows can therefore be
// expanded in any order.
//
// [Manager.HideAll] and [Manager.ShowAll] compose the edits of each fragment with
// [delta.Replace.Then] into one Replace.
//
// # Usage
//
//	m := fragment.NewManager(g, fragment.ByHashes(tips))
//	if f, ok := m.RelateFragment(seed); ok {
//	    r, err := m.SetVisible(f, m.IsHidden(f))
//	    ...
//	}
//
// [delta.Replace]: github.com/matzehuels/lanegraph/pkg/delta.Replace
package fragment
