package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/lanegraph/pkg/dag"
)

type graph struct {
	Rows   []row `json:"rows"`
	Hidden int   `json:"hidden"`
}

type row struct {
	Nodes []node `json:"nodes"`
}

type node struct {
	ID   dag.NodeID `json:"id"`
	Hash string     `json:"hash"`
	Type string     `json:"type"`
	Lane int        `json:"lane"`
	Down []edge     `json:"down,omitempty"`
}

type edge struct {
	To   dag.NodeID `json:"to"`
	Type string     `json:"type"`
	Lane int        `json:"lane"`
}

// WriteGraph encodes the visible rows of g as JSON and writes them to w.
func WriteGraph(g *dag.Graph, w io.Writer) error {
	out := graph{
		Rows:   make([]row, g.RowCount()),
		Hidden: g.NodeCount() - g.VisibleNodeCount(),
	}
	for i := range out.Rows {
		ids := g.Row(i)
		nodes := make([]node, len(ids))
		for j, id := range ids {
			n := g.Node(id)
			nd := node{ID: n.ID, Hash: n.Hash, Type: n.Type.String(), Lane: n.Lane}
			for _, e := range n.Down {
				nd.Down = append(nd.Down, edge{To: e.To, Type: e.Type.String(), Lane: e.Lane})
			}
			nodes[j] = nd
		}
		out.Rows[i] = row{Nodes: nodes}
	}
	return encode(w, out)
}

// WriteCommits encodes commits and refs in the commit file format.
func WriteCommits(f *CommitFile, w io.Writer) error {
	return encode(w, f)
}

// ExportCommits writes f to a commit file at path.
func ExportCommits(f *CommitFile, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCommits(f, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
