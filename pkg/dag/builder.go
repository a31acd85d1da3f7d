package dag

import (
	"context"
	"time"

	"github.com/matzehuels/lanegraph/pkg/delta"
	"github.com/matzehuels/lanegraph/pkg/observability"
)

// Options configures a [Builder].
type Options struct {
	// FirstLane is the first lane id handed out. Tests pin it to get
	// deterministic output; lanes are otherwise opaque.
	FirstLane int
}

// pendingRef is a parent link whose target commit has not been reached yet.
type pendingRef struct {
	hash   string // awaited commit
	lane   int
	origin NodeID // node the next edge starts from
	seq    int    // creation order, lower arrived first
}

// Builder turns an ordered commit stream into a [Graph] and keeps the state
// needed to extend it with further pages.
//
// Builder is not safe for concurrent use.
type Builder struct {
	g        *Graph
	pending  []pendingRef // column order
	nextLane int
	nextSeq  int

	commits  int    // commits laid out so far
	endStart NodeID // first END_COMMIT node, NoNode when unsealed
}

// NewBuilder returns a builder over an empty graph.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		g:        New(),
		nextLane: opts.FirstLane,
		endStart: NoNode,
	}
}

// Build builds a graph from commits in the given order. The returned builder
// can extend the graph with [Builder.Append].
func Build(commits []Commit, opts Options) (*Graph, *Builder) {
	b := NewBuilder(opts)
	b.Append(commits)
	return b.g, b
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *Graph { return b.g }

// Commits returns the number of commits laid out so far.
func (b *Builder) Commits() int { return b.commits }

// PendingCount returns the number of parent references still awaiting their
// commit.
func (b *Builder) PendingCount() int { return len(b.pending) }

// NextLane returns the lane id the next allocation will hand out.
func (b *Builder) NextLane() int { return b.nextLane }

// Append processes commits after everything built so far. Previously assigned
// row indices and lanes are kept; only the trailing END_COMMIT row is rebuilt.
// The returned Replace covers that row plus every new row.
//
// New rows are placed after the current last row, so Append may be called
// while fragments are collapsed.
//
// Append runs in O(C + P + W) per commit row where C is the commit count, P
// the parent count and W the number of pending references.
func (b *Builder) Append(commits []Commit) delta.Replace {
	if len(commits) == 0 {
		return delta.Empty
	}
	start := time.Now()
	ctx := context.Background()
	oldRows := b.g.RowCount()
	observability.Graph().OnAppendStart(ctx, oldRows, len(commits))

	b.unseal()
	from := b.g.RowCount()
	for _, c := range commits {
		b.appendCommit(c)
	}
	b.seal()

	r := delta.NewReplace(from, oldRows, b.g.RowCount()-from)
	observability.Graph().OnAppendComplete(ctx, len(commits), b.g.RowCount(), len(b.pending), time.Since(start))
	return r
}

func (b *Builder) allocLane() int {
	l := b.nextLane
	b.nextLane++
	return l
}

func (b *Builder) appendCommit(c Commit) {
	row := len(b.g.rows)

	// Every reference awaiting c resolves here. The leftmost one fixes the
	// column, the earliest one owns the lane.
	col, owner := -1, -1
	for i, p := range b.pending {
		if p.hash != c.Hash {
			continue
		}
		if col < 0 {
			col = i
		}
		if owner < 0 || p.seq < b.pending[owner].seq {
			owner = i
		}
	}

	var lane int
	if owner >= 0 {
		lane = b.pending[owner].lane
	} else {
		lane = b.allocLane()
	}
	id := b.g.addNode(c.Hash, NodeCommit, lane, row)
	if owner >= 0 {
		o := b.pending[owner]
		b.g.addEdge(Edge{From: o.origin, To: id, Type: EdgeUsual, Lane: o.lane})
	}

	parents := b.parentRefs(c, id, lane)
	rowNodes := make([]NodeID, 0, len(b.pending)+1)
	next := make([]pendingRef, 0, len(b.pending)+len(parents))
	for i, p := range b.pending {
		if p.hash == c.Hash {
			if i != owner {
				b.g.addEdge(Edge{From: p.origin, To: id, Type: EdgeUsual, Lane: p.lane})
			}
			if i == col {
				rowNodes = append(rowNodes, id)
				next = append(next, parents...)
			}
			continue
		}
		// Still waiting: carry the reference through this row.
		e := b.g.addNode(p.hash, NodeEdge, p.lane, row)
		b.g.addEdge(Edge{From: p.origin, To: e, Type: EdgeUsual, Lane: p.lane})
		rowNodes = append(rowNodes, e)
		p.origin = e
		next = append(next, p)
	}
	if col < 0 {
		rowNodes = append(rowNodes, id)
		next = append(next, parents...)
	}

	b.g.appendRow(rowNodes)
	b.pending = next
	b.commits++
}

// parentRefs creates one reference per distinct parent of c. The first parent
// continues the commit's lane, every other parent opens a fresh one.
func (b *Builder) parentRefs(c Commit, id NodeID, lane int) []pendingRef {
	refs := make([]pendingRef, 0, len(c.Parents))
	seen := make(map[string]bool, len(c.Parents))
	for _, ph := range c.Parents {
		if seen[ph] {
			continue
		}
		seen[ph] = true
		l := lane
		if len(refs) > 0 {
			l = b.allocLane()
		}
		refs = append(refs, pendingRef{hash: ph, lane: l, origin: id, seq: b.nextSeq})
		b.nextSeq++
	}
	return refs
}

// seal terminates every pending reference in an END_COMMIT row after the last
// commit row. References to the same hash converge on one node owned by the
// earliest of them.
func (b *Builder) seal() {
	if len(b.pending) == 0 {
		return
	}
	row := len(b.g.rows)
	b.endStart = NodeID(len(b.g.nodes))

	order := make([]string, 0, len(b.pending))
	owners := make(map[string]int, len(b.pending))
	for i, p := range b.pending {
		j, ok := owners[p.hash]
		if !ok {
			order = append(order, p.hash)
			owners[p.hash] = i
			continue
		}
		if p.seq < b.pending[j].seq {
			owners[p.hash] = i
		}
	}

	rowNodes := make([]NodeID, 0, len(order))
	ends := make(map[string]NodeID, len(order))
	for _, h := range order {
		o := b.pending[owners[h]]
		id := b.g.addNode(h, NodeEndCommit, o.lane, row)
		b.g.addEdge(Edge{From: o.origin, To: id, Type: EdgeUsual, Lane: o.lane})
		ends[h] = id
		rowNodes = append(rowNodes, id)
	}
	for i, p := range b.pending {
		if owners[p.hash] == i {
			continue
		}
		b.g.addEdge(Edge{From: p.origin, To: ends[p.hash], Type: EdgeUsual, Lane: p.lane})
	}
	b.g.appendRow(rowNodes)
}

// unseal removes the END_COMMIT row added by seal. That row is always the
// last one because END_COMMIT nodes have no down edges and no fragment can
// hide them. The pending references still point at their last real node, so
// building can resume.
func (b *Builder) unseal() {
	if b.endStart == NoNode {
		return
	}
	for _, p := range b.pending {
		down := b.g.nodes[p.origin].Down
		kept := down[:0]
		for _, e := range down {
			if e.To < b.endStart {
				kept = append(kept, e)
			}
		}
		b.g.nodes[p.origin].Down = kept
	}
	b.g.truncate(b.endStart)
	b.g.dropLastRow()
	b.endStart = NoNode
}
