// Package nodelink renders commit graphs as Graphviz node-link diagrams.
//
// # Usage
//
// Convert a graph to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Refs: refs})
//	svg, err := nodelink.RenderSVG(dot)
//
// For PDF or PNG output, use the render functions:
//
//	pdf, err := nodelink.RenderPDF(dot)
//	png, err := nodelink.RenderPNG(dot, 2.0)  // 2x scale
//
// # Layout
//
// Graphviz does not compute the layout. Every row of the graph becomes one
// rank and its nodes are chained with invisible edges in column order, so the
// picture keeps the lanes assigned by the builder. Only edges between visible
// nodes are drawn; a collapsed fragment appears as one dashed edge.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
