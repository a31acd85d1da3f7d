// Package delta describes localized edits to row-indexed sequences and keeps
// derived per-row structures in sync with them.
//
// # Overview
//
// The commit graph is a sequence of rows. Loading another page of commits or
// collapsing a fragment rewrites one contiguous range of that sequence and
// leaves everything else untouched apart from a shift in row index. A
// [Replace] captures such an edit as the triple (From, To, AddElementsCount):
// the half-open range [From, To) of the old sequence is replaced by
// AddElementsCount rows of the new one.
//
// Structures derived from the rows (pixel offsets, cached labels, print
// cells) consume a Replace instead of rebuilding. They re-derive only
// [Replace.DirtyRange] and shift everything after To by [Replace.Shift].
//
// # Derived Structures
//
// [RowCache] stores one derived value per row and re-derives the dirty range
// eagerly. [CompressedList] stores only every step-th value and regenerates
// the values in between on demand from the preceding checkpoint through a
// [Generator]. It suits cumulative values such as the y offset of each row,
// where value i follows from value i-1.
//
// # Correctness Contract
//
// For any edit, [Apply] of the old sequence, the Replace, and the fresh rows
// must equal the new sequence. Every producer of a Replace in this module is
// tested against that contract.
package delta
