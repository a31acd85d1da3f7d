// Package render provides output formats for laid-out commit graphs.
//
// # Overview
//
// The layout itself lives in [dag]; this package and its subpackages only
// draw it:
//
//   - Lane palettes shared by every renderer ([Palette])
//   - Generic format conversion (SVG to PDF/PNG)
//   - Terminal rows (in [text] subpackage)
//   - Node-link diagrams (in [nodelink] subpackage)
//
// # Lane Colors
//
// Lanes are opaque integers handed out by the builder. A [Palette] maps them
// to colors by cycling, so the same lane keeps its color across pages and
// fragment toggles:
//
//	p := render.PaletteByName("muted")
//	color := p.Color(node.Lane)
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	svg, err := nodelink.RenderSVG(nodelink.ToDOT(g, nodelink.Options{}))
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
//
// [dag]: github.com/matzehuels/lanegraph/pkg/dag
// [text]: github.com/matzehuels/lanegraph/pkg/render/text
// [nodelink]: github.com/matzehuels/lanegraph/pkg/render/nodelink
package render
