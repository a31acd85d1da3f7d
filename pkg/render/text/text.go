// Package text renders commit graph rows as terminal lines.
//
// Every row becomes one line with one glyph per node in column order:
//
//	*  commit
//	|  edge node, a commit further down is still awaited
//	o  END_COMMIT, a parent outside the loaded range
//
// A node joined to a collapsed fragment is followed by "~". Glyphs are
// colored by lane through a [render.Palette].
package text

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/render"
)

// Glyphs used for nodes.
const (
	GlyphCommit = "*"
	GlyphEdge   = "|"
	GlyphEnd    = "o"
	GlyphHidden = "~"
)

const shortHash = 7

// Options configures text rendering.
type Options struct {
	// Color enables lane colors.
	Color bool
	// Palette maps lanes to colors. Nil uses the default palette.
	Palette render.Palette
	// Refs maps commit hashes to ref names appended to the label.
	Refs map[string][]string
	// Describe returns extra label text for a commit, such as its subject.
	// Empty results are skipped.
	Describe func(hash string) string
}

// Renderer draws rows of one graph. Styles are built once per palette entry.
type Renderer struct {
	g      *dag.Graph
	opts   Options
	styles []lipgloss.Style
	label  lipgloss.Style
}

// New returns a renderer for g.
func New(g *dag.Graph, opts Options) *Renderer {
	if opts.Palette == nil {
		opts.Palette = render.PaletteByName(render.DefaultPalette)
	}
	r := &Renderer{g: g, opts: opts}
	if opts.Color {
		r.styles = make([]lipgloss.Style, len(opts.Palette))
		for i, c := range opts.Palette {
			r.styles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
		r.label = lipgloss.NewStyle().Bold(true)
	}
	return r
}

// Row renders row i. It panics if i is out of range.
func (r *Renderer) Row(i int) string {
	var b strings.Builder
	ids := r.g.Row(i)
	for j, id := range ids {
		n := r.g.Node(id)
		b.WriteString(r.paint(glyph(n), n.Lane))
		switch {
		case joinsHidden(n):
			b.WriteString(r.paint(GlyphHidden, n.Lane))
		case j < len(ids)-1:
			b.WriteByte(' ')
		}
	}
	if label := r.rowLabel(i); label != "" {
		b.WriteString("  ")
		b.WriteString(label)
	}
	return strings.TrimRight(b.String(), " ")
}

// Write renders rows [from, to) to w, one per line. The range is clamped to
// the graph.
func (r *Renderer) Write(w io.Writer, from, to int) error {
	from = max(from, 0)
	to = min(to, r.g.RowCount())
	for i := from; i < to; i++ {
		if _, err := fmt.Fprintln(w, r.Row(i)); err != nil {
			return err
		}
	}
	return nil
}

// Render renders every row of g.
func Render(g *dag.Graph, opts Options) string {
	var b strings.Builder
	_ = New(g, opts).Write(&b, 0, g.RowCount())
	return b.String()
}

func (r *Renderer) rowLabel(i int) string {
	n, ok := r.g.RowCommit(i)
	if !ok {
		return ""
	}
	parts := []string{short(n.Hash)}
	if refs := r.opts.Refs[n.Hash]; len(refs) > 0 {
		parts = append(parts, "("+strings.Join(refs, ", ")+")")
	}
	if r.opts.Describe != nil {
		if d := r.opts.Describe(n.Hash); d != "" {
			parts = append(parts, d)
		}
	}
	label := strings.Join(parts, " ")
	if r.opts.Color {
		return r.label.Render(label)
	}
	return label
}

func (r *Renderer) paint(s string, lane int) string {
	if !r.opts.Color || len(r.styles) == 0 {
		return s
	}
	i := lane % len(r.styles)
	if i < 0 {
		i += len(r.styles)
	}
	return r.styles[i].Render(s)
}

func glyph(n *dag.Node) string {
	switch n.Type {
	case dag.NodeEdge:
		return GlyphEdge
	case dag.NodeEndCommit:
		return GlyphEnd
	default:
		return GlyphCommit
	}
}

func joinsHidden(n *dag.Node) bool {
	for _, e := range n.Down {
		if e.Type == dag.EdgeHideFragment {
			return true
		}
	}
	for _, e := range n.Up {
		if e.Type == dag.EdgeHideFragment {
			return true
		}
	}
	return false
}

func short(hash string) string {
	if len(hash) > shortHash {
		return hash[:shortHash]
	}
	return hash
}
