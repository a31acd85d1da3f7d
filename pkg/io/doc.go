// Package io reads commit lists and writes laid-out graphs as JSON.
//
// # Commit Format
//
// A commit file lists commits newest first, children before parents, with
// an optional map of refs:
//
//	{
//	  "commits": [
//	    {"hash": "c3", "parents": ["c2"]},
//	    {"hash": "c2", "parents": ["c1"]},
//	    {"hash": "c1"}
//	  ],
//	  "refs": {"c3": ["main"]}
//	}
//
// Hashes are opaque strings. Parents not listed in the file end up as
// END_COMMIT nodes in the built graph. Use [ImportCommits] to read a file or
// [ReadCommits] to read from any io.Reader; [WriteCommits] writes the same
// format.
//
// # Graph Format
//
// [WriteGraph] exports the visible rows of a graph, one entry per row in
// column order, with each node's down edges:
//
//	{
//	  "rows": [
//	    {"nodes": [{"id": 0, "hash": "c3", "type": "COMMIT", "lane": 0,
//	                "down": [{"to": 1, "type": "USUAL", "lane": 0}]}]}
//	  ],
//	  "hidden": 0
//	}
//
// Node IDs are stable for the lifetime of the graph, so exports taken before
// and after a fragment toggle can be compared node by node. "hidden" counts
// nodes removed from their rows by collapsed fragments.
package io
