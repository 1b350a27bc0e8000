// Package jungledb defines the core leaf types shared across the engine:
// identifiers, key ordering, key ranges, error codes, and the configuration
// and backend interfaces that the store, index and btree packages build on.
//
// JungleDB is an embeddable, transactional key-value store organized into
// named object stores with optional secondary indices. Concrete engine
// behavior (object stores, transactions, combined transactions) lives in
// the store subpackage; the B+Tree and in-memory index live in their own
// subpackages. This package never imports any of them, so that those
// packages can freely import this one for shared types without creating
// an import cycle.
package jungledb
