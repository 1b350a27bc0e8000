package store

import (
	"context"

	"github.com/sharedcode/jungledb"
)

// TxState is a transaction's lifecycle state (spec §4.4).
type TxState int

const (
	// Open accepts reads and writes.
	Open TxState = iota
	// Nested marks a transaction that has an open child (BeginNested),
	// which temporarily suspends writes on the parent until the child
	// closes.
	Nested
	// Committed is terminal: the transaction's writes are durable (or, for
	// a nested transaction, merged into its parent).
	Committed
	// Aborted is terminal: the transaction's writes were discarded.
	Aborted
	// Conflicted is terminal: Commit found a sibling transaction had
	// already committed against the same object store state.
	Conflicted
)

// Transaction is a snapshot-isolated unit of work across one or more
// object stores of a single Database. Reads see the transaction's own
// uncommitted writes layered on top of the object store's state as of the
// moment the transaction first touched it; writes from other transactions
// committed afterward are invisible until this transaction starts over.
type Transaction struct {
	db       *Database
	parent   *Transaction
	state    TxState
	overlays map[string]*overlay
	watchdog *jungledb.Watchdog
	children map[*Transaction]bool
}

func newTransaction(db *Database, parent *Transaction) *Transaction {
	return &Transaction{
		db:       db,
		parent:   parent,
		state:    Open,
		overlays: map[string]*overlay{},
	}
}

// State returns the transaction's current lifecycle state.
func (tx *Transaction) State() TxState {
	return tx.state
}

// root returns the top-most ancestor of this transaction: itself if it has
// no parent. Object store dependents are always tracked against the root,
// since only a root transaction independently commits against a store's
// state chain (spec §4.5); a nested transaction's commit always merges
// into its parent instead.
func (tx *Transaction) root() *Transaction {
	r := tx
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (tx *Transaction) requireOpen() error {
	if tx.state != Open {
		return jungledb.NewError(jungledb.IllegalState, nil, "transaction is not open")
	}
	return nil
}

// overlayFor returns (creating if necessary) this transaction's overlay for
// the named object store: cloned from the parent transaction's overlay if
// an ancestor already touched that store, or freshly forked from the
// object store's state chain (attributing the new dependency to this
// transaction's root) otherwise.
func (tx *Transaction) overlayFor(os *ObjectStore) *overlay {
	if ov, ok := tx.overlays[os.name]; ok {
		return ov
	}
	var ov *overlay
	if tx.parent != nil {
		if pov, ok := tx.parent.overlays[os.name]; ok {
			ov = pov.clone()
		}
	}
	if ov == nil {
		ov = os.beginOverlay(tx.root())
	}
	tx.overlays[os.name] = ov
	return ov
}

func (tx *Transaction) store(name string) (*ObjectStore, error) {
	return tx.db.objectStore(name)
}

// releaseFromStores removes tx from openDependents on every object store it
// holds an overlay for, attempting a flush on each afterward in case this
// was the last thing holding that store's chain back. Safe to call even for
// stores tryCommit already released tx from (releaseDependent's delete is a
// no-op if tx isn't registered).
func (tx *Transaction) releaseFromStores() {
	for name, ov := range tx.overlays {
		if os, err := tx.store(name); err == nil {
			os.releaseDependent(tx, ov.parentStateID)
		}
	}
}

// touchesPersistentStore reports whether any object store this transaction
// has forked an overlay against was created with Persistent set.
func (tx *Transaction) touchesPersistentStore() bool {
	for name := range tx.overlays {
		if os, err := tx.store(name); err == nil && os.opts.Persistent {
			return true
		}
	}
	return false
}

// Get returns the value stored under key in the named object store, as
// seen by this transaction.
func (tx *Transaction) Get(ctx context.Context, storeName string, key any) (any, bool, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return nil, false, err
	}
	ov := tx.overlayFor(os)
	return os.get(ctx, ov, key)
}

// Put writes key/value into the named object store, visible immediately to
// this transaction's own subsequent reads.
func (tx *Transaction) Put(ctx context.Context, storeName string, key, value any) error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	os, err := tx.store(storeName)
	if err != nil {
		return err
	}
	ov := tx.overlayFor(os)
	for name, tix := range ov.indexTx {
		if err := tix.Put(key, value); err != nil {
			return err
		}
		_ = name
	}
	ov.puts[key] = value
	delete(ov.removed, key)
	return nil
}

// Remove deletes key from the named object store, visible immediately to
// this transaction's own subsequent reads.
func (tx *Transaction) Remove(ctx context.Context, storeName string, key any) error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	os, err := tx.store(storeName)
	if err != nil {
		return err
	}
	ov := tx.overlayFor(os)
	if v, found, err := os.get(ctx, ov, key); err == nil && found {
		for _, tix := range ov.indexTx {
			tix.Remove(key, v)
		}
	}
	delete(ov.puts, key)
	ov.removed[key] = true
	return nil
}

// Truncate empties the named object store, visible immediately to this
// transaction's own subsequent reads.
func (tx *Transaction) Truncate(ctx context.Context, storeName string) error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	os, err := tx.store(storeName)
	if err != nil {
		return err
	}
	ov := tx.overlayFor(os)
	ov.truncated = true
	ov.puts = map[any]any{}
	ov.removed = map[any]bool{}
	for _, tix := range ov.indexTx {
		tix.Truncate()
	}
	return nil
}

// Keys returns every key in r within the named object store, as seen by
// this transaction, in ascending order.
func (tx *Transaction) Keys(ctx context.Context, storeName string, r *jungledb.KeyRange) ([]any, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return nil, err
	}
	return os.keys(ctx, tx.overlayFor(os), r)
}

// Values returns every value in r within the named object store, as seen
// by this transaction, in ascending key order.
func (tx *Transaction) Values(ctx context.Context, storeName string, r *jungledb.KeyRange) ([]any, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return nil, err
	}
	return os.values(ctx, tx.overlayFor(os), r)
}

// Count returns the number of keys in r within the named object store, as
// seen by this transaction.
func (tx *Transaction) Count(ctx context.Context, storeName string, r *jungledb.KeyRange) (int64, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return 0, err
	}
	return os.count(ctx, tx.overlayFor(os), r)
}

// MinKey and MaxKey report the smallest/largest key in r within the named
// object store, as seen by this transaction.
func (tx *Transaction) MinKey(ctx context.Context, storeName string, r *jungledb.KeyRange) (any, bool, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return nil, false, err
	}
	return os.minKey(ctx, tx.overlayFor(os), r)
}

func (tx *Transaction) MaxKey(ctx context.Context, storeName string, r *jungledb.KeyRange) (any, bool, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return nil, false, err
	}
	return os.maxKey(ctx, tx.overlayFor(os), r)
}

// MinValue and MaxValue report the value bound to the smallest/largest key
// in r within the named object store, as seen by this transaction.
func (tx *Transaction) MinValue(ctx context.Context, storeName string, r *jungledb.KeyRange) (any, bool, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return nil, false, err
	}
	return os.minValue(ctx, tx.overlayFor(os), r)
}

func (tx *Transaction) MaxValue(ctx context.Context, storeName string, r *jungledb.KeyRange) (any, bool, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return nil, false, err
	}
	return os.maxValue(ctx, tx.overlayFor(os), r)
}

// KeyStream and ValueStream invoke cb for every entry of r within the
// named object store, as seen by this transaction, in the requested
// direction, stopping at the first callback returning false.
func (tx *Transaction) KeyStream(ctx context.Context, storeName string, cb func(key any) bool, ascending bool, r *jungledb.KeyRange) error {
	os, err := tx.store(storeName)
	if err != nil {
		return err
	}
	return os.keyStream(ctx, tx.overlayFor(os), cb, ascending, r)
}

func (tx *Transaction) ValueStream(ctx context.Context, storeName string, cb func(key, value any) bool, ascending bool, r *jungledb.KeyRange) error {
	os, err := tx.store(storeName)
	if err != nil {
		return err
	}
	return os.valueStream(ctx, tx.overlayFor(os), cb, ascending, r)
}

// Index returns this transaction's snapshot-isolated view of the named
// secondary index on storeName.
func (tx *Transaction) Index(storeName, indexName string) (*indexView, error) {
	os, err := tx.store(storeName)
	if err != nil {
		return nil, err
	}
	ov := tx.overlayFor(os)
	tix, ok := ov.indexTx[indexName]
	if !ok {
		return nil, jungledb.NewError(jungledb.InvalidArguments, nil, indexName)
	}
	return &indexView{tix: tix}, nil
}

// BeginNested opens a sub-transaction whose commit merges into this
// transaction's overlays instead of touching any ObjectStore, transitioning
// this transaction to Nested until the child closes (spec §4.4).
func (tx *Transaction) BeginNested() (*Transaction, error) {
	if tx.state != Open && tx.state != Nested {
		return nil, jungledb.NewError(jungledb.IllegalState, nil, "transaction is not open")
	}
	child := newTransaction(tx.db, tx)
	if tx.children == nil {
		tx.children = map[*Transaction]bool{}
	}
	tx.children[child] = true
	tx.state = Nested
	return child, nil
}

// Commit finalizes the transaction. A nested transaction merges its
// overlays into its parent's and, once its parent has no more open
// children, restores the parent to Open; a root transaction validates and
// applies its overlays to every touched ObjectStore under a commit
// watchdog.
func (tx *Transaction) Commit(ctx context.Context) error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	if tx.parent != nil {
		for name, ov := range tx.overlays {
			tx.parent.overlays[name] = ov
		}
		tx.state = Committed
		delete(tx.parent.children, tx)
		if len(tx.parent.children) == 0 && tx.parent.state == Nested {
			tx.parent.state = Open
		}
		return nil
	}

	wd := jungledb.StartWatchdog(tx.db.opts.Watchdog.Threshold, "transaction commit")
	defer wd.Stop()

	for name, ov := range tx.overlays {
		os, err := tx.store(name)
		if err != nil {
			tx.state = Conflicted
			tx.releaseFromStores()
			return err
		}
		if ov.parentStateID != os.currentVersion() {
			tx.state = Conflicted
			tx.releaseFromStores()
			return jungledb.NewError(jungledb.ConflictFailure, nil, name)
		}
	}
	for name, ov := range tx.overlays {
		os, err := tx.store(name)
		if err != nil {
			tx.state = Conflicted
			tx.releaseFromStores()
			return err
		}
		if err := os.tryCommit(ctx, tx, ov); err != nil {
			tx.state = Conflicted
			tx.releaseFromStores()
			return err
		}
	}
	tx.state = Committed
	return nil
}

// Rollback discards the transaction's overlays without touching any
// ObjectStore (or, for a nested transaction, its parent's overlays),
// releasing this transaction as an open dependent of whatever stores it
// touched so a stalled flush downstream can proceed.
func (tx *Transaction) Rollback() {
	if tx.state != Open && tx.state != Nested {
		return
	}
	if tx.parent == nil {
		// A nested transaction shares its TransactionIndex with its parent
		// (see overlay.clone), so only a root discards pending index writes.
		for _, ov := range tx.overlays {
			for _, tix := range ov.indexTx {
				tix.Abort()
			}
		}
		tx.releaseFromStores()
	} else {
		delete(tx.parent.children, tx)
		if len(tx.parent.children) == 0 && tx.parent.state == Nested {
			tx.parent.state = Open
		}
	}
	tx.state = Aborted
}

// indexView is the read-only handle a caller uses to query a secondary
// index through a transaction's overlay.
type indexView struct {
	tix interface {
		PrimaryKeys(any) []any
		Range(jungledb.KeyRange, func(indexedKey, primaryKey any) bool)
	}
}

// PrimaryKeys returns the primary keys currently bound to indexedKey.
func (v *indexView) PrimaryKeys(indexedKey any) []any {
	return v.tix.PrimaryKeys(indexedKey)
}

// Range invokes cb for every binding in r visible to this transaction: the
// parent index's bindings first, in ascending indexed-key order, then this
// transaction's own additions, which are not sorted.
func (v *indexView) Range(r jungledb.KeyRange, cb func(indexedKey, primaryKey any) bool) {
	v.tix.Range(r, cb)
}
