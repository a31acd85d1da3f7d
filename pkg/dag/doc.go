// Package dag lays out a commit history as a row-indexed directed acyclic
// graph suitable for incremental rendering.
//
// # Overview
//
// A version-control log arrives as an ordered stream of commits, newest
// first, each carrying its parent hashes. [Build] consumes that stream in a
// single pass and produces a [Graph]: one row per commit, plus the placeholder
// nodes needed so every edge connects consecutive rows. The stream order is
// never re-sorted.
//
//	g, b := dag.Build([]dag.Commit{
//	    {Hash: "c2", Parents: []string{"c1"}},
//	    {Hash: "c1", Parents: []string{"c0"}},
//	}, dag.Options{})
//	// g has rows c2, c1 and a trailing END_COMMIT row for c0.
//	r := b.Append([]dag.Commit{{Hash: "c0"}})
//	// r describes which rows changed: here the END_COMMIT row became c0.
//
// # Node Types
//
//   - [NodeCommit]: a loaded commit at its own row
//   - [NodeEdge]: a placeholder for a parent that is still awaited, carried
//     through every row between the child and the parent
//   - [NodeEndCommit]: a parent outside the loaded range, placed in one
//     trailing row after the last commit
//
// # Lanes
//
// Every node and edge carries a lane id used for color continuity. A commit
// inherits the lane of the earliest reference that awaited it; other
// references converging on the same commit become additional up-edges and
// keep their own lanes. The first parent of a commit continues the commit's
// lane and every further parent opens a fresh one. Lane ids come from a
// counter owned by the [Builder]; [Options.FirstLane] pins its start.
//
// # Arena
//
// Nodes live in an arena indexed by [NodeID]. An [Edge] is a plain value
// (From, To, Type, Lane) listed on both endpoints, so there are no pointer
// cycles. Rows are ordered slices of NodeIDs; the position in the row is the
// node's column. Each node also keeps its build position (Origin, Slot), and
// the visible rows always follow it: a row is the still-visible part of one
// built row, and rows appear in the order they were built.
//
// # Incremental Updates
//
// [Builder.Append] resumes from the pending references left by the previous
// call, keeps every assigned row index and lane, and returns a
// [delta.Replace] describing the rows it rewrote. [Graph.ReplaceRows] is the
// single row-rewriting primitive used by the fragment package to collapse
// and expand linear runs of history.
//
// # Concurrency
//
// Graph and Builder are not safe for concurrent use. Callers must serialize
// every Append, fragment toggle and read that may overlap one.
//
// # Related Packages
//
// The [fragment] subpackage collapses and expands linear runs of nodes.
//
// [fragment]: github.com/matzehuels/lanegraph/pkg/dag/fragment
// [delta.Replace]: github.com/matzehuels/lanegraph/pkg/delta.Replace
package dag
