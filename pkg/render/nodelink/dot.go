package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/render"
)

// ShortHash is the number of hash characters shown in labels.
const ShortHash = 7

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds row and lane numbers to commit labels.
	Detailed bool
	// Palette colors nodes and edges by lane. Nil uses the default palette.
	Palette render.Palette
	// Refs maps commit hashes to ref names shown next to the commit.
	Refs map[string][]string
}

// ToDOT converts the visible rows of g to Graphviz DOT format. Each row
// becomes one rank with its nodes chained in column order, so Graphviz keeps
// the lane layout computed by the builder.
//
// Commits are filled circles, edge nodes are points, END_COMMIT nodes are
// dashed circles and collapsed fragments are dashed edges.
func ToDOT(g *dag.Graph, opts Options) string {
	if opts.Palette == nil {
		opts.Palette = render.PaletteByName(render.DefaultPalette)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, width=0.25, fixedsize=true, label=\"\", fontsize=10];\n")
	buf.WriteString("  edge [arrowhead=none, penwidth=2];\n")
	buf.WriteString("  ranksep=0.3;\n")
	buf.WriteString("  nodesep=0.4;\n")
	buf.WriteString("\n")

	for i := range g.RowCount() {
		row := g.Row(i)
		ids := make([]string, len(row))
		for j, id := range row {
			ids[j] = nodeName(id)
		}
		fmt.Fprintf(&buf, "  { rank=same; %s; }\n", strings.Join(ids, "; "))
		for _, id := range row {
			n := g.Node(id)
			fmt.Fprintf(&buf, "  %s [%s];\n", nodeName(id), strings.Join(nodeAttrs(n, opts), ", "))
		}
		for j := 1; j < len(ids); j++ {
			fmt.Fprintf(&buf, "  %s -> %s [style=invis];\n", ids[j-1], ids[j])
		}
	}

	buf.WriteString("\n")
	for i := range g.RowCount() {
		for _, id := range g.Row(i) {
			for _, e := range g.Node(id).Down {
				attrs := []string{fmt.Sprintf("color=%q", opts.Palette.Color(e.Lane))}
				if e.Type == dag.EdgeHideFragment {
					attrs = append(attrs, "style=dashed")
				}
				fmt.Fprintf(&buf, "  %s -> %s [%s];\n", nodeName(e.From), nodeName(e.To), strings.Join(attrs, ", "))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeName(id dag.NodeID) string { return "n" + strconv.Itoa(int(id)) }

func nodeAttrs(n *dag.Node, opts Options) []string {
	color := opts.Palette.Color(n.Lane)
	switch n.Type {
	case dag.NodeEdge:
		return []string{"shape=point", "width=0.05", fmt.Sprintf("color=%q", color)}
	case dag.NodeEndCommit:
		return []string{"style=dashed", fmt.Sprintf("color=%q", color), fmt.Sprintf("xlabel=%q", short(n.Hash))}
	}
	return []string{
		fmt.Sprintf("fillcolor=%q", color),
		fmt.Sprintf("color=%q", color),
		fmt.Sprintf("xlabel=%q", fmtLabel(n, opts)),
		fmt.Sprintf("tooltip=%q", n.Hash),
	}
}

func fmtLabel(n *dag.Node, opts Options) string {
	label := short(n.Hash)
	if refs := opts.Refs[n.Hash]; len(refs) > 0 {
		label += " (" + strings.Join(refs, ", ") + ")"
	}
	if opts.Detailed {
		label += fmt.Sprintf("\nrow: %d lane: %d", n.Row, n.Lane)
	}
	return label
}

func short(hash string) string {
	if len(hash) > ShortHash {
		return hash[:ShortHash]
	}
	return hash
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
func RenderPDF(dot string) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
func RenderPNG(dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(svg, scale)
}
