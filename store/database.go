package store

import (
	"context"
	"sync"

	"github.com/sharedcode/jungledb"
)

// Database owns a set of named object stores and the backend each
// persistent one uses, and mints transactions against them (spec §6.3).
type Database struct {
	name string
	opts jungledb.DatabaseOptions
	be   jungledb.Backend

	mu     sync.RWMutex
	stores map[string]*ObjectStore
}

// Open creates a Database. backend is used for every store created with
// ObjectStoreOptions.Persistent set; in-memory stores get their own private
// memoryBackend regardless of backend.
func Open(name string, opts jungledb.DatabaseOptions, backend jungledb.Backend) *Database {
	return &Database{
		name:   name,
		opts:   opts,
		be:     backend,
		stores: map[string]*ObjectStore{},
	}
}

// Name returns the database's name.
func (db *Database) Name() string {
	return db.name
}

// CreateObjectStore declares a new named object store. It is an error to
// create a store under a name already in use.
func (db *Database) CreateObjectStore(opts jungledb.ObjectStoreOptions) (*ObjectStore, error) {
	opts = opts.Normalize()
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.stores[opts.Name]; exists {
		return nil, jungledb.NewError(jungledb.InvalidArguments, nil, opts.Name)
	}
	if db.opts.MaxStores > 0 && len(db.stores) >= db.opts.MaxStores {
		return nil, jungledb.NewError(jungledb.InvalidArguments, nil, "MaxStores exceeded")
	}

	var backend jungledb.Backend
	if opts.Persistent && db.be != nil {
		backend = db.be
	} else {
		backend = newMemoryBackend(opts.BTreeOrder, opts.Comparer)
	}
	if opts.EnableLRUCache {
		backend = newCachedBackend(backend)
	}

	os := newObjectStore(opts, backend, opts.BTreeOrder)
	db.stores[opts.Name] = os
	return os, nil
}

// objectStore looks up a previously created object store by name.
func (db *Database) objectStore(name string) (*ObjectStore, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	os, ok := db.stores[name]
	if !ok {
		return nil, jungledb.NewError(jungledb.InvalidArguments, nil, name)
	}
	return os, nil
}

// ObjectStoreNames returns the names of every object store created on this
// database.
func (db *Database) ObjectStoreNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.stores))
	for name := range db.stores {
		names = append(names, name)
	}
	return names
}

// Transaction opens a new root transaction against this database.
func (db *Database) Transaction() *Transaction {
	return newTransaction(db, nil)
}

// CommitCombined atomically commits two or more root transactions, which
// may belong to different Databases, as a single unit across every object
// store they touch (spec §6.3). On success every member's State is
// Committed. If the members fail NewCombinedTransaction's checks, an
// InvalidArguments error is returned and their States are unchanged; on a
// conflict every member's State is Conflicted and none of their writes take
// effect.
func CommitCombined(ctx context.Context, txs ...*Transaction) error {
	ct, err := NewCombinedTransaction(txs...)
	if err != nil {
		return err
	}
	return ct.Commit(ctx)
}

// Destroy drops every object store, making the database unusable.
func (db *Database) Destroy() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.stores = map[string]*ObjectStore{}
}

// Close is a no-op for the in-memory backend; it exists so Database
// satisfies the lifecycle shape callers expect from a persistent-backed
// database, where it would flush and release file handles.
func (db *Database) Close() error {
	return nil
}
