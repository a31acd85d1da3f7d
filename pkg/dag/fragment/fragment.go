package fragment

import (
	"context"
	"slices"
	"time"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/delta"
	"github.com/matzehuels/lanegraph/pkg/errors"
	"github.com/matzehuels/lanegraph/pkg/observability"
)

// Fragment is a chain of interior nodes between two boundary nodes. Interior
// is listed top to bottom and is never empty for a fragment returned by
// [Manager.RelateFragment].
type Fragment struct {
	Start    dag.NodeID
	End      dag.NodeID
	Interior []dag.NodeID
}

// Len returns the number of interior nodes.
func (f Fragment) Len() int { return len(f.Interior) }

type key struct {
	start, first dag.NodeID
}

func (f Fragment) key() key { return key{f.Start, f.Interior[0]} }

type hiddenFragment struct {
	frag Fragment
	down dag.Edge // start -> first interior
	up   dag.Edge // last interior -> end
	hide dag.Edge
}

// Manager collapses and expands fragments of one graph and remembers what it
// hid. It shares the graph with the builder that extends it.
//
// Manager is not safe for concurrent use.
type Manager struct {
	g      *dag.Graph
	pred   Predicate
	hidden map[key]*hiddenFragment
	byEdge map[dag.Edge]key
	order  []key // hide order
}

// NewManager returns a manager for g. pred may be nil.
func NewManager(g *dag.Graph, pred Predicate) *Manager {
	return &Manager{
		g:      g,
		pred:   pred,
		hidden: make(map[key]*hiddenFragment),
		byEdge: make(map[dag.Edge]key),
	}
}

// Graph returns the managed graph.
func (m *Manager) Graph() *dag.Graph { return m.g }

// Unconcealable reports whether the node must stay visible: it has no
// up-edges, no down-edges, or the predicate flags it.
func (m *Manager) Unconcealable(id dag.NodeID) bool {
	n := m.g.Node(id)
	if n == nil {
		return false
	}
	return m.unconcealable(n)
}

func (m *Manager) unconcealable(n *dag.Node) bool {
	return len(n.Up) == 0 || len(n.Down) == 0 || (m.pred != nil && m.pred(m.g, n))
}

// interior reports whether n may sit inside a fragment.
func (m *Manager) interior(n *dag.Node) bool {
	if !n.Visible() || m.unconcealable(n) || len(n.Up) != 1 || len(n.Down) != 1 {
		return false
	}
	if n.Up[0].Type != dag.EdgeUsual || n.Down[0].Type != dag.EdgeUsual {
		return false
	}
	return m.g.Node(n.Down[0].To).Type != dag.NodeEndCommit
}

// RelateFragment returns the fragment associated with seed:
//
//   - an interior-eligible seed yields the maximal chain around it
//   - an unconcealable seed yields none
//   - a seed whose down-edge replaces a collapsed fragment yields that fragment
//   - any other seed yields the first chain starting at one of its down-edges
//
// Unknown and hidden seeds yield none.
func (m *Manager) RelateFragment(seed dag.NodeID) (Fragment, bool) {
	n := m.g.Node(seed)
	if n == nil || !n.Visible() {
		return Fragment{}, false
	}
	if m.interior(n) {
		top := n
		for {
			e := top.Up[0]
			above := m.g.Node(e.From)
			if !m.interior(above) {
				return m.walkDown(above.ID, e), true
			}
			top = above
		}
	}
	if m.unconcealable(n) {
		return Fragment{}, false
	}
	for _, e := range n.Down {
		if e.Type == dag.EdgeHideFragment {
			if k, ok := m.byEdge[e]; ok {
				return m.hidden[k].frag, true
			}
			continue
		}
		if m.interior(m.g.Node(e.To)) {
			return m.walkDown(seed, e), true
		}
	}
	return Fragment{}, false
}

// walkDown collects the chain that starts with edge e leaving start. The node
// e points to must be interior-eligible.
func (m *Manager) walkDown(start dag.NodeID, e dag.Edge) Fragment {
	f := Fragment{Start: start}
	cur := m.g.Node(e.To)
	for m.interior(cur) {
		f.Interior = append(f.Interior, cur.ID)
		cur = m.g.Node(cur.Down[0].To)
	}
	f.End = cur.ID
	return f
}

// Fragments returns every visible fragment in row order of its start node.
func (m *Manager) Fragments() []Fragment {
	var out []Fragment
	for i := 0; i < m.g.RowCount(); i++ {
		for _, id := range m.g.Row(i) {
			n := m.g.Node(id)
			if m.interior(n) {
				continue
			}
			for _, e := range n.Down {
				if e.Type == dag.EdgeUsual && m.interior(m.g.Node(e.To)) {
					out = append(out, m.walkDown(id, e))
				}
			}
		}
	}
	return out
}

// IsHidden reports whether f is currently collapsed.
func (m *Manager) IsHidden(f Fragment) bool {
	if len(f.Interior) == 0 {
		return false
	}
	_, ok := m.hidden[f.key()]
	return ok
}

// Hidden returns the collapsed fragments in the order they were hidden.
func (m *Manager) Hidden() []Fragment {
	out := make([]Fragment, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.hidden[k].frag)
	}
	return out
}

// HiddenLen returns the number of collapsed fragments.
func (m *Manager) HiddenLen() int { return len(m.order) }

// SetVisible expands (visible true) or collapses f and returns the rows it
// rewrote. Toggling a fragment to the state it is already in returns
// [delta.Empty]. A fragment that does not describe a chain of the graph fails
// with PRECONDITION_FAILED.
func (m *Manager) SetVisible(f Fragment, visible bool) (delta.Replace, error) {
	action := "hide"
	if visible {
		action = "show"
	}
	start := time.Now()
	var (
		r   delta.Replace
		err error
	)
	if visible {
		r, err = m.show(f)
	} else {
		r, err = m.hide(f)
	}
	ctx := context.Background()
	if err != nil {
		observability.Fragment().OnToggleError(ctx, action, err)
		return delta.Empty, err
	}
	if !r.IsEmpty() {
		observability.Fragment().OnToggle(ctx, action, r.Removed(), r.AddElementsCount, time.Since(start))
	}
	return r, nil
}

// HideAll collapses every visible fragment and returns one Replace covering
// every row it rewrote.
func (m *Manager) HideAll() (delta.Replace, error) {
	start := time.Now()
	r := delta.Empty
	for _, f := range m.Fragments() {
		next, err := m.hide(f)
		if err != nil {
			return delta.Empty, err
		}
		r = r.Then(next)
	}
	m.reportAll("hide-all", r, start)
	return r, nil
}

// ShowAll expands every collapsed fragment, latest first, and returns one
// Replace covering every row it rewrote.
func (m *Manager) ShowAll() (delta.Replace, error) {
	start := time.Now()
	r := delta.Empty
	for len(m.order) > 0 {
		h := m.hidden[m.order[len(m.order)-1]]
		next, err := m.show(h.frag)
		if err != nil {
			return delta.Empty, err
		}
		r = r.Then(next)
	}
	m.reportAll("show-all", r, start)
	return r, nil
}

func (m *Manager) reportAll(action string, r delta.Replace, start time.Time) {
	if r.IsEmpty() {
		return
	}
	observability.Fragment().OnToggle(context.Background(), action, r.Removed(), r.AddElementsCount, time.Since(start))
}

// check verifies that f describes a visible chain of the graph and returns
// the two boundary edges.
func (m *Manager) check(f Fragment) (down, up dag.Edge, err error) {
	if len(f.Interior) == 0 {
		return down, up, errors.Precondition("fragment %d..%d has no interior nodes", f.Start, f.End)
	}
	for _, id := range append([]dag.NodeID{f.Start, f.End}, f.Interior...) {
		n := m.g.Node(id)
		if n == nil {
			return down, up, errors.Precondition("node %d does not belong to the graph", id)
		}
		if !n.Visible() {
			return down, up, errors.Precondition("node %d is not visible", id)
		}
	}
	s := m.g.Node(f.Start)
	i := slices.IndexFunc(s.Down, func(e dag.Edge) bool {
		return e.To == f.Interior[0] && e.Type == dag.EdgeUsual
	})
	if i < 0 {
		return down, up, errors.Precondition("node %d has no edge to %d", f.Start, f.Interior[0])
	}
	down = s.Down[i]
	for j, id := range f.Interior {
		n := m.g.Node(id)
		if !m.interior(n) {
			return down, up, errors.Precondition("node %d cannot be hidden", id)
		}
		next := f.End
		if j+1 < len(f.Interior) {
			next = f.Interior[j+1]
		}
		if n.Down[0].To != next {
			return down, up, errors.Precondition("node %d is not followed by %d", id, next)
		}
	}
	up = m.g.Node(f.Interior[len(f.Interior)-1]).Down[0]
	return down, up, nil
}

func (m *Manager) hide(f Fragment) (delta.Replace, error) {
	if m.IsHidden(f) {
		return delta.Empty, nil
	}
	down, up, err := m.check(f)
	if err != nil {
		return delta.Empty, err
	}

	from := m.g.Node(f.Start).Row + 1
	to := m.g.Node(f.End).Row
	inFragment := make(map[dag.NodeID]bool, len(f.Interior))
	for _, id := range f.Interior {
		inFragment[id] = true
	}

	h := &hiddenFragment{
		frag: Fragment{Start: f.Start, End: f.End, Interior: slices.Clone(f.Interior)},
		down: down,
		up:   up,
		hide: dag.Edge{From: f.Start, To: f.End, Type: dag.EdgeHideFragment, Lane: down.Lane},
	}
	removed := 0
	fresh := make([][]dag.NodeID, 0, to-from)
	for r := from; r < to; r++ {
		row := m.g.Row(r)
		kept := make([]dag.NodeID, 0, len(row))
		for _, id := range row {
			if inFragment[id] {
				removed++
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) > 0 {
			fresh = append(fresh, kept)
		}
	}
	if removed != len(f.Interior) {
		return delta.Empty, errors.Precondition("fragment %d..%d has interior nodes outside its rows", f.Start, f.End)
	}

	r := delta.NewReplace(from, to, len(fresh))
	if err := m.g.ReplaceRows(r, fresh); err != nil {
		return delta.Empty, errors.Wrap(errors.ErrCodeInternal, err, "hide fragment %d..%d", f.Start, f.End)
	}
	if err := m.swapEdges(h, h.down, h.hide, h.up, h.hide); err != nil {
		return delta.Empty, err
	}

	k := h.frag.key()
	m.hidden[k] = h
	m.byEdge[h.hide] = k
	m.order = append(m.order, k)
	return r, nil
}

func (m *Manager) show(f Fragment) (delta.Replace, error) {
	if len(f.Interior) == 0 {
		return delta.Empty, errors.Precondition("fragment %d..%d has no interior nodes", f.Start, f.End)
	}
	k := f.key()
	h, ok := m.hidden[k]
	if !ok {
		return delta.Empty, nil
	}
	if !m.g.Visible(h.frag.Start) || !m.g.Visible(h.frag.End) {
		return delta.Empty, errors.Precondition("boundaries of fragment %d..%d are not visible", f.Start, f.End)
	}

	lo := m.g.Node(h.frag.Start).Row + 1
	hi := m.g.Node(h.frag.End).Row
	seg := make([][]dag.NodeID, 0, hi-lo+len(h.frag.Interior))
	for i := lo; i < hi; i++ {
		seg = append(seg, slices.Clone(m.g.Row(i)))
	}

	// Rows stay in build order, so every interior node either rejoins the
	// visible rest of the row it was built in or brings that row back.
	i := 0
	for _, id := range h.frag.Interior {
		origin := m.g.Node(id).Origin
		for i < len(seg) && m.g.Node(seg[i][0]).Origin < origin {
			i++
		}
		if i == len(seg) || m.g.Node(seg[i][0]).Origin != origin {
			seg = slices.Insert(seg, i, []dag.NodeID{id})
			continue
		}
		col := slices.IndexFunc(seg[i], func(o dag.NodeID) bool { return m.g.Before(id, o) })
		if col < 0 {
			col = len(seg[i])
		}
		seg[i] = slices.Insert(seg[i], col, id)
	}

	r := delta.NewReplace(lo, hi, len(seg))
	if err := m.g.ReplaceRows(r, seg); err != nil {
		return delta.Empty, errors.Wrap(errors.ErrCodeInternal, err, "show fragment %d..%d", f.Start, f.End)
	}
	if err := m.swapEdges(h, h.hide, h.down, h.hide, h.up); err != nil {
		return delta.Empty, err
	}

	delete(m.hidden, k)
	delete(m.byEdge, h.hide)
	m.order = slices.DeleteFunc(m.order, func(o key) bool { return o == k })
	return r, nil
}

// swapEdges replaces one down-edge of the start node and one up-edge of the
// end node in place.
func (m *Manager) swapEdges(h *hiddenFragment, oldDown, down, oldUp, up dag.Edge) error {
	if err := m.g.ReplaceDownEdge(h.frag.Start, oldDown, down); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "fragment %d..%d", h.frag.Start, h.frag.End)
	}
	if err := m.g.ReplaceUpEdge(h.frag.End, oldUp, up); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "fragment %d..%d", h.frag.Start, h.frag.End)
	}
	return nil
}
