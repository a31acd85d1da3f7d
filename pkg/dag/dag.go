package dag

import (
	"errors"
	"fmt"
	"slices"

	"github.com/matzehuels/lanegraph/pkg/delta"
)

var (
	// ErrInvalidNodeID is returned when a NodeID does not index the arena.
	ErrInvalidNodeID = errors.New("node ID out of range")

	// ErrHiddenNode is returned when an operation needs a node that is
	// currently removed from its row by a collapsed fragment.
	ErrHiddenNode = errors.New("node is hidden")

	// ErrUnknownEdge is returned by [Graph.ReplaceDownEdge] and
	// [Graph.ReplaceUpEdge] when the edge to replace is not attached.
	ErrUnknownEdge = errors.New("unknown edge")

	// ErrRowMismatch is returned by [Graph.Validate] when a node's Row field
	// disagrees with the row that lists it.
	ErrRowMismatch = errors.New("node row index mismatch")

	// ErrEdgeDirection is returned by [Graph.Validate] when an edge does not
	// point from an earlier row to a later one.
	ErrEdgeDirection = errors.New("edge must point to a later row")

	// ErrEdgeNotMirrored is returned by [Graph.Validate] when an edge is
	// listed on only one of its endpoints.
	ErrEdgeNotMirrored = errors.New("edge not mirrored on both endpoints")

	// ErrRowOrder is returned by [Graph.Validate] when rows or the nodes of a
	// row are out of build order.
	ErrRowOrder = errors.New("rows out of build order")
)

// NodeID indexes a node in the graph arena. IDs are stable for the lifetime
// of the node and are never reused while it exists.
type NodeID int

// NoNode is the NodeID sentinel for "no node".
const NoNode NodeID = -1

// NodeType classifies a node.
type NodeType int

const (
	// NodeCommit is a loaded commit placed at its own row.
	NodeCommit NodeType = iota
	// NodeEdge stands in for a commit that is still awaited: some of its
	// children were placed but the commit itself was not reached yet.
	NodeEdge
	// NodeEndCommit is a parent that lies outside the loaded range.
	NodeEndCommit
)

func (t NodeType) String() string {
	switch t {
	case NodeCommit:
		return "COMMIT"
	case NodeEdge:
		return "EDGE"
	case NodeEndCommit:
		return "END_COMMIT"
	default:
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
}

// EdgeType classifies an edge.
type EdgeType int

const (
	// EdgeUsual is a parent link produced by the builder.
	EdgeUsual EdgeType = iota
	// EdgeHideFragment replaces a collapsed fragment and joins its two
	// boundary nodes directly.
	EdgeHideFragment
)

func (t EdgeType) String() string {
	switch t {
	case EdgeUsual:
		return "USUAL"
	case EdgeHideFragment:
		return "HIDE_FRAGMENT"
	default:
		return fmt.Sprintf("EdgeType(%d)", int(t))
	}
}

// Commit is one record of the input stream: a hash and its ordered parents.
type Commit struct {
	Hash    string   `json:"hash"`
	Parents []string `json:"parents,omitempty"`
}

// Edge is a directed link from an earlier-row node to a later-row node. The
// same value is listed in From's Down edges and To's Up edges.
type Edge struct {
	From NodeID
	To   NodeID
	Type EdgeType
	Lane int // color continuity only, never identity
}

// Node is a vertex of the graph. Row is -1 while the node is hidden inside a
// collapsed fragment.
//
// Origin and Slot record where the builder placed the node: Origin counts
// built rows, Slot is the column in that row. They never change, so a row
// that lost nodes to collapsed fragments can always be completed again.
//
// Nodes returned by [Graph.Node] point into the arena and must be treated as
// read-only by callers outside this module.
type Node struct {
	ID     NodeID
	Hash   string
	Type   NodeType
	Lane   int
	Row    int
	Origin int
	Slot   int
	Up     []Edge // edges from earlier rows, first one is the lane owner
	Down   []Edge // edges to later rows, in parent order
}

// Visible reports whether the node currently sits in a row.
func (n *Node) Visible() bool { return n.Row >= 0 }

// Graph is a row-indexed commit graph stored as an arena of nodes.
//
// The zero value is not usable; graphs are created by [NewBuilder] or [New].
// Graph is not safe for concurrent use: builders and fragment managers mutate
// it in place, and callers must serialize access.
type Graph struct {
	nodes   []Node
	rows    [][]NodeID
	commits map[string]NodeID // hash -> COMMIT node
	built   int               // rows ever appended, the next Origin
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{commits: make(map[string]NodeID)}
}

// RowCount returns the number of rows.
func (g *Graph) RowCount() int { return len(g.rows) }

// Row returns the node IDs of row i in column order. The slice is a view into
// the graph and must not be modified. It panics if i is out of range.
func (g *Graph) Row(i int) []NodeID { return g.rows[i] }

// Rows returns a copy of the row table.
func (g *Graph) Rows() [][]NodeID {
	out := make([][]NodeID, len(g.rows))
	for i, r := range g.rows {
		out[i] = slices.Clone(r)
	}
	return out
}

// NodeCount returns the number of nodes in the arena, hidden ones included.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// VisibleNodeCount returns the number of nodes placed in rows.
func (g *Graph) VisibleNodeCount() int {
	n := 0
	for _, r := range g.rows {
		n += len(r)
	}
	return n
}

// EdgeCount returns the number of edges leaving visible nodes.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, r := range g.rows {
		for _, id := range r {
			n += len(g.nodes[id].Down)
		}
	}
	return n
}

// Node returns the node with the given ID, or nil if the ID is out of range.
func (g *Graph) Node(id NodeID) *Node {
	if !g.Has(id) {
		return nil
	}
	return &g.nodes[id]
}

// Has reports whether id indexes the arena.
func (g *Graph) Has(id NodeID) bool { return id >= 0 && int(id) < len(g.nodes) }

// Visible reports whether id names a node currently placed in a row.
func (g *Graph) Visible(id NodeID) bool { return g.Has(id) && g.nodes[id].Visible() }

// NodeAt returns the node at the given row and column.
func (g *Graph) NodeAt(row, col int) (*Node, bool) {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= len(g.rows[row]) {
		return nil, false
	}
	return &g.nodes[g.rows[row][col]], true
}

// Column returns the column of a visible node, or -1.
func (g *Graph) Column(id NodeID) int {
	n := g.Node(id)
	if n == nil || !n.Visible() {
		return -1
	}
	return slices.Index(g.rows[n.Row], id)
}

// CommitNode returns the COMMIT node for hash.
func (g *Graph) CommitNode(hash string) (*Node, bool) {
	id, ok := g.commits[hash]
	if !ok {
		return nil, false
	}
	return &g.nodes[id], true
}

// CommitRow returns the row of the commit with the given hash, or -1 when the
// commit is not loaded or currently hidden.
func (g *Graph) CommitRow(hash string) int {
	n, ok := g.CommitNode(hash)
	if !ok {
		return -1
	}
	return n.Row
}

// RowCommit returns the COMMIT node of row i, if the row holds one.
func (g *Graph) RowCommit(i int) (*Node, bool) {
	if i < 0 || i >= len(g.rows) {
		return nil, false
	}
	for _, id := range g.rows[i] {
		if g.nodes[id].Type == NodeCommit {
			return &g.nodes[id], true
		}
	}
	return nil, false
}

// =============================================================================
// Low-level mutation
// =============================================================================

// addNode appends a node to the arena without placing it in a row.
func (g *Graph) addNode(hash string, typ NodeType, lane, row int) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Hash: hash, Type: typ, Lane: lane, Row: row})
	if typ == NodeCommit {
		if _, dup := g.commits[hash]; !dup {
			g.commits[hash] = id
		}
	}
	return id
}

// appendRow places row after the last row and stamps its build position.
func (g *Graph) appendRow(row []NodeID) {
	for col, id := range row {
		g.nodes[id].Origin = g.built
		g.nodes[id].Slot = col
	}
	g.rows = append(g.rows, row)
	g.built++
}

// dropLastRow removes the last row, which must be the last one built.
func (g *Graph) dropLastRow() {
	g.rows = g.rows[:len(g.rows)-1]
	g.built--
}

// Before reports whether a sat before b in the unfolded layout: in an
// earlier row, or further left in the same row.
func (g *Graph) Before(a, b NodeID) bool {
	na, nb := &g.nodes[a], &g.nodes[b]
	if na.Origin != nb.Origin {
		return na.Origin < nb.Origin
	}
	return na.Slot < nb.Slot
}

// addEdge links two nodes and mirrors the edge on both endpoints.
func (g *Graph) addEdge(e Edge) {
	g.nodes[e.From].Down = append(g.nodes[e.From].Down, e)
	g.nodes[e.To].Up = append(g.nodes[e.To].Up, e)
}

// truncate drops every node with an ID at or above from. The caller must have
// detached their edges.
func (g *Graph) truncate(from NodeID) {
	for i := int(from); i < len(g.nodes); i++ {
		n := &g.nodes[i]
		if n.Type == NodeCommit && g.commits[n.Hash] == n.ID {
			delete(g.commits, n.Hash)
		}
	}
	g.nodes = g.nodes[:from]
}

// ReplaceDownEdge swaps old for repl in the Down list of node, keeping its
// list position.
func (g *Graph) ReplaceDownEdge(node NodeID, old, repl Edge) error {
	return g.replaceEdge(node, old, repl, true)
}

// ReplaceUpEdge swaps old for repl in the Up list of node, keeping its list
// position.
func (g *Graph) ReplaceUpEdge(node NodeID, old, repl Edge) error {
	return g.replaceEdge(node, old, repl, false)
}

func (g *Graph) replaceEdge(node NodeID, old, repl Edge, down bool) error {
	if !g.Has(node) {
		return ErrInvalidNodeID
	}
	list := g.nodes[node].Up
	if down {
		list = g.nodes[node].Down
	}
	i := slices.Index(list, old)
	if i < 0 {
		return fmt.Errorf("%w: %d -> %d", ErrUnknownEdge, old.From, old.To)
	}
	list[i] = repl
	return nil
}

// ReplaceRows replaces rows [r.From, r.To) with fresh and renumbers every
// node from r.From on. Nodes that were in the replaced range but are absent
// from fresh become hidden (Row -1). This is the only way rows change after
// building, so the returned graph always matches [delta.Apply] of the old row
// table.
func (g *Graph) ReplaceRows(r delta.Replace, fresh [][]NodeID) error {
	for _, row := range fresh {
		for _, id := range row {
			if !g.Has(id) {
				return fmt.Errorf("%w: %d", ErrInvalidNodeID, id)
			}
		}
	}
	next, err := delta.Apply(g.rows, r, fresh)
	if err != nil {
		return err
	}
	for _, row := range g.rows[r.From:r.To] {
		for _, id := range row {
			g.nodes[id].Row = -1
		}
	}
	g.rows = next

	// Rows before From keep their index; only the tail moves.
	end := len(g.rows)
	if r.Shift() == 0 {
		end = r.From + r.AddElementsCount
	}
	for i := r.From; i < end; i++ {
		for _, id := range g.rows[i] {
			g.nodes[id].Row = i
		}
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks arena consistency and returns nil if the graph is sound:
//
//  1. Every node listed in row i has Row == i, and every visible node is listed
//  2. Every edge of a visible node points from an earlier row to a later one
//  3. Every edge appears in both the Down list of From and the Up list of To
//  4. The nodes of a row were built in the same row, in column order, and
//     rows follow build order
//
// Validate runs in O(N+E).
func (g *Graph) Validate() error {
	listed := make([]bool, len(g.nodes))
	origin := -1
	for i, row := range g.rows {
		for j, id := range row {
			if !g.Has(id) {
				return fmt.Errorf("%w: %d in row %d", ErrInvalidNodeID, id, i)
			}
			if g.nodes[id].Row != i {
				return fmt.Errorf("%w: node %d listed in row %d has row %d", ErrRowMismatch, id, i, g.nodes[id].Row)
			}
			listed[id] = true
			if j > 0 && (g.nodes[id].Origin != g.nodes[row[0]].Origin || !g.Before(row[j-1], id)) {
				return fmt.Errorf("%w: node %d in row %d", ErrRowOrder, id, i)
			}
		}
		if len(row) > 0 {
			if g.nodes[row[0]].Origin <= origin {
				return fmt.Errorf("%w: row %d", ErrRowOrder, i)
			}
			origin = g.nodes[row[0]].Origin
		}
	}
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.Visible() && !listed[i] {
			return fmt.Errorf("%w: node %d claims row %d but is not listed", ErrRowMismatch, i, n.Row)
		}
		if !n.Visible() {
			continue
		}
		for _, e := range n.Down {
			if e.From != n.ID || !g.Has(e.To) {
				return fmt.Errorf("%w: %d -> %d", ErrEdgeNotMirrored, e.From, e.To)
			}
			to := &g.nodes[e.To]
			if to.Visible() && to.Row <= n.Row {
				return fmt.Errorf("%w: %d (row %d) -> %d (row %d)", ErrEdgeDirection, e.From, n.Row, e.To, to.Row)
			}
			if !slices.Contains(to.Up, e) {
				return fmt.Errorf("%w: %d -> %d", ErrEdgeNotMirrored, e.From, e.To)
			}
		}
		for _, e := range n.Up {
			if e.To != n.ID || !g.Has(e.From) || !slices.Contains(g.nodes[e.From].Down, e) {
				return fmt.Errorf("%w: %d -> %d", ErrEdgeNotMirrored, e.From, e.To)
			}
		}
	}
	return nil
}
