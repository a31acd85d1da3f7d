package session

import (
	"context"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/details"
	"github.com/matzehuels/lanegraph/pkg/errors"
)

// NodeView is a node as seen in a snapshot.
type NodeView struct {
	ID     dag.NodeID `json:"id"`
	Hash   string     `json:"hash"`
	Type   string     `json:"type"`
	Lane   int        `json:"lane"`
	Folded bool       `json:"folded,omitempty"` // joined to a collapsed fragment below
	Down   []EdgeView `json:"down,omitempty"`
}

// EdgeView is a down edge as seen in a snapshot.
type EdgeView struct {
	To   dag.NodeID `json:"to"`
	Type string     `json:"type"`
	Lane int        `json:"lane"`
}

// RowView is one row of a snapshot.
type RowView struct {
	Index   int              `json:"index"`
	Offset  int              `json:"offset"`
	Height  int              `json:"height"`
	Nodes   []NodeView       `json:"nodes"`
	Commit  string           `json:"commit,omitempty"`
	Refs    []string         `json:"refs,omitempty"`
	Details *details.Details `json:"details,omitempty"`
}

// Snapshot returns rows [from, to). to is clamped to the row count. When the
// session has a details cache, commit metadata is filled in; failing to load
// it is logged and leaves Details nil.
func (s *Session) Snapshot(ctx context.Context, from, to int) ([]RowView, error) {
	rows, hashes, err := s.views(from, to)
	if err != nil || s.opts.Details == nil || len(hashes) == 0 {
		return rows, err
	}

	found, err := s.opts.Details.GetMany(ctx, hashes)
	if err != nil {
		s.opts.Logger.Warn("loading commit details failed", "id", s.ID, "err", err)
		return rows, nil
	}
	for i := range rows {
		if d, ok := found[rows[i].Commit]; ok {
			rows[i].Details = &d
		}
	}
	return rows, nil
}

// Prefetch warms the details cache for rows [from, to) and one window of
// rows on either side, clamped to the graph. It returns how many commits had
// to be loaded and does nothing without a details cache.
func (s *Session) Prefetch(ctx context.Context, from, to int) (int, error) {
	if s.opts.Details == nil || to <= from {
		return 0, nil
	}
	margin := to - from
	var hashes []string
	s.Do(func(g *dag.Graph) {
		for i := max(from-margin, 0); i < min(to+margin, g.RowCount()); i++ {
			if n, ok := g.RowCommit(i); ok {
				hashes = append(hashes, n.Hash)
			}
		}
	})
	return s.opts.Details.Prefetch(ctx, hashes)
}

// views copies the requested rows under the session lock.
func (s *Session) views(from, to int) ([]RowView, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	to = min(to, s.g.RowCount())
	if err := errors.ValidateRange(from, to, s.g.RowCount()); err != nil {
		return nil, nil, err
	}
	rows := make([]RowView, 0, to-from)
	var hashes []string
	for i := from; i < to; i++ {
		rv := RowView{Index: i, Offset: s.offsets.Get(i), Height: s.rowHeight(i)}
		for _, id := range s.g.Row(i) {
			n := s.g.Node(id)
			nv := NodeView{ID: n.ID, Hash: n.Hash, Type: n.Type.String(), Lane: n.Lane}
			for _, e := range n.Down {
				nv.Down = append(nv.Down, EdgeView{To: e.To, Type: e.Type.String(), Lane: e.Lane})
				if e.Type == dag.EdgeHideFragment {
					nv.Folded = true
				}
			}
			rv.Nodes = append(rv.Nodes, nv)
			if n.Type == dag.NodeCommit && rv.Commit == "" {
				rv.Commit = n.Hash
				rv.Refs = s.refs[n.Hash]
				hashes = append(hashes, n.Hash)
			}
		}
		rows = append(rows, rv)
	}
	return rows, hashes, nil
}
