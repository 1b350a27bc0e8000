// Package btree implements an in-memory B+Tree: a balanced, ordered map
// keyed by any jungledb.Ordered type, with a cursor that supports exact,
// nearest-bound, and ranged traversal. It backs the default in-memory
// Backend and every secondary InMemoryIndex.
package btree

import "github.com/sharedcode/jungledb"

// ComparerFunc mirrors jungledb.ComparerFunc; re-exported here so callers
// that only import btree don't need a second import for the common case.
type ComparerFunc[TK jungledb.Ordered] = jungledb.ComparerFunc[TK]
