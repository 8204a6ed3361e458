// Package arena implements a bump-allocated, fixed-page linked array list
// used to back the IR's block and instruction storage without putting
// per-node allocations on the general-purpose heap one at a time.
package arena

// pageSize is the number of items held by a single page of a LAList node.
// Chosen to keep individual allocations well under a typical OS page while
// amortizing the allocation count for functions with a modest number of
// blocks/instructions.
const pageSize = 64
