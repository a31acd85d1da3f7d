// Package pkg provides the core libraries for lanegraph commit graph layout.
//
// # Overview
//
// Lanegraph turns a commit history into a grid: one row per commit, one
// column per line of development that crosses the row, and a lane id per
// line so renderers can color it consistently. History is read in pages,
// linear runs of commits can be folded into a single edge, and every change
// is described by a row-range edit that derived structures apply instead of
// recomputing everything.
//
// # Architecture
//
// The typical data flow:
//
//	Repository / commit file
//	         ↓
//	    [source] package (paginated commits, newest first)
//	         ↓
//	    [dag] package (Builder assigns rows and lanes)
//	         ↓
//	    [dag/fragment] package (fold and unfold linear runs)
//	         ↓
//	    [delta] package (Replace edits for row caches and offsets)
//	         ↓
//	    [render] package (text, DOT, SVG, PDF, PNG)
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/lanegraph/pkg/dag"
//	    "github.com/matzehuels/lanegraph/pkg/dag/fragment"
//	    "github.com/matzehuels/lanegraph/pkg/render/text"
//	)
//
//	g, b := dag.Build(commits, dag.Options{})
//	frags := fragment.NewManager(g, nil)
//	r, _ := frags.HideAll()      // Replace covering the folded rows
//	fmt.Print(text.Render(g, text.Options{}))
//
//	r = b.Append(nextPage)       // Replace covering the new rows
//
// # Main Packages
//
// ## Layout
//
// [dag] - Arena graph of COMMIT, EDGE and END_COMMIT nodes arranged in rows,
// and the Builder that lays commits out incrementally.
//
// [dag/fragment] - Detection of linear runs and their collapse into one
// HIDE_FRAGMENT edge.
//
// [delta] - Replace edits, the compressed checkpoint list and eager row
// caches that follow them.
//
// ## Data
//
// [source] - Paginated commit streams. [source/gitrepo] reads git
// repositories through go-git.
//
// [details] - Commit metadata (author, subject) cached per hash.
//
// [cache] - Key-value backends: file, Redis and a no-op cache.
//
// [io] - JSON commit files and graph export.
//
// ## Interaction
//
// [session] - A graph with its builder, fragment manager and listeners,
// serialized behind one lock.
//
// ## Visualization
//
// [render/text] - Terminal rows with lane colors.
//
// [render/nodelink] - Graphviz diagrams that keep the computed lanes.
//
// [render] - Palettes and format conversion (SVG to PDF/PNG).
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/dag/...                # Specific package
//	go test -run Example                 # Examples only
//	go test -tags integration ./pkg/...  # Include Redis integration tests
package pkg
