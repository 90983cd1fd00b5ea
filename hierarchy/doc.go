// Package hierarchy implements the tree of groups and arrays persisted
// as flat keys in a lattice backend.
//
// A group is a directory-like node; an array is a leaf holding chunked
// n-dimensional data. Each node owns exactly one metadata key, and an
// array additionally owns one key per written chunk. The hierarchy is
// never cached: every open and listing reads the backend, so the key
// set and the logical tree cannot drift apart.
//
// # Key scopes
//
// A node's keys all live under its path prefix, so a group delete is a
// single delete-by-prefix call covering every descendant group, array
// and chunk. See the internal keys package for the exact layout.
//
// # Creation contract
//
// Creating a node does not create its ancestors. Callers building
// nested paths create each ancestor group explicitly; the engine only
// guarantees that a single path never holds two nodes at once.
//
// # Moves
//
// Move is copy-then-delete. No backend is assumed to offer an atomic
// rename, so a reader racing a move can observe both the old and new
// scopes populated. Callers needing atomicity must serialize externally.
package hierarchy
