package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sharedcode/jungledb"
	"github.com/sharedcode/jungledb/index"
)

// overlay captures one transaction's uncommitted mutations against a single
// object store: a snapshot-isolated delta on top of whatever state the
// store was in when the transaction first touched it (spec §4.4/§4.5).
//
// Index updates are applied directly to the store's live secondary indices
// at commit time rather than deferred through the state stack below: an
// index is derived metadata reconstructible from the primary data, so
// nothing about durability depends on delaying it, and doing so keeps the
// chain-walk in get/range below concerned with exactly one thing (primary
// key/value visibility).
type overlay struct {
	puts         map[any]any
	removed      map[any]bool
	truncated    bool
	parentStateID int64
	indexTx      map[string]*index.TransactionIndex
}

func newOverlay(parentStateID int64) *overlay {
	return &overlay{
		puts:          map[any]any{},
		removed:       map[any]bool{},
		parentStateID: parentStateID,
		indexTx:       map[string]*index.TransactionIndex{},
	}
}

// clone forks a nested transaction's overlay from its parent transaction's
// overlay. indexTx is intentionally shared rather than deep-copied: nested
// index isolation (a child's index writes invisible to the parent until the
// child commits) would need a TransactionIndex that can itself wrap another
// TransactionIndex, which is more machinery than the one level of index
// staleness this already accepts (see the type-level comment) justifies. A
// nested transaction that writes through an index and then aborts leaves
// that write applied to the shared TransactionIndex; only the primary
// key/value overlay is correctly isolated per nesting level.
func (o *overlay) clone() *overlay {
	c := &overlay{
		puts:          make(map[any]any, len(o.puts)),
		removed:       make(map[any]bool, len(o.removed)),
		truncated:     o.truncated,
		parentStateID: o.parentStateID,
		indexTx:       o.indexTx,
	}
	for k, v := range o.puts {
		c.puts[k] = v
	}
	for k, v := range o.removed {
		c.removed[k] = v
	}
	return c
}

// state is one entry of an object store's LIFO commit chain (spec §4.5): an
// immutable overlay produced by a committed root transaction. States form
// a singly linked chain via parentID, terminating at backendStateID once a
// state's ancestors have all been flushed.
type state struct {
	id       int64
	ov       *overlay
	parentID int64
}

// backendStateID is the sentinel parent id meaning "the backend itself",
// i.e. no pending committed-but-unflushed state remains below this point.
const backendStateID int64 = 0

// ObjectStore is a named primary B+Tree-backed collection with optional
// secondary indices, committed through a state stack with first-committer-
// wins conflict detection and dependent-gated flush (spec §4.5).
//
// Flush is gated on openDependents rather than on a per-state dependent
// set: a root transaction registers itself the moment it first forks an
// overlay against this store and stays registered until it closes, so a
// long-lived reader holds back flush of whatever gets committed while it
// remains open, even if that commit happens entirely after the reader
// started (spec §8 scenario 4). A per-state set cannot express this in a
// design where commit and flush-attempt happen in the same critical
// section: a state has no dependents at the instant it is created, so
// nothing could ever register against it before its own commit tried (and
// succeeded) to flush it away.
type ObjectStore struct {
	name    string
	backend jungledb.Backend
	opts    jungledb.ObjectStoreOptions

	mu             sync.Mutex
	nextID         int64
	headID         int64
	states         map[int64]*state
	indices        map[string]*index.InMemoryIndex
	openDependents map[*Transaction]bool
}

func newObjectStore(opts jungledb.ObjectStoreOptions, backend jungledb.Backend, order int) *ObjectStore {
	os := &ObjectStore{
		name:           opts.Name,
		backend:        backend,
		opts:           opts,
		nextID:         1,
		headID:         backendStateID,
		states:         map[int64]*state{},
		indices:        map[string]*index.InMemoryIndex{},
		openDependents: map[*Transaction]bool{},
	}
	for _, ixOpts := range opts.Indices {
		os.indices[ixOpts.Name] = index.NewInMemoryIndex(ixOpts, order)
	}
	return os
}

// Name returns the object store's name.
func (os *ObjectStore) Name() string {
	return os.name
}

func (os *ObjectStore) currentVersion() int64 {
	os.mu.Lock()
	defer os.mu.Unlock()
	return os.headID
}

// beginOverlay returns a fresh overlay forked from the store's current head
// state, registering tx as an open dependent of this store, along with a
// TransactionIndex per secondary index.
func (os *ObjectStore) beginOverlay(tx *Transaction) *overlay {
	os.mu.Lock()
	defer os.mu.Unlock()
	ov := newOverlay(os.headID)
	os.openDependents[tx] = true
	for name, ix := range os.indices {
		ov.indexTx[name] = index.NewTransactionIndex(ix)
	}
	return ov
}

// releaseDependent removes tx from the store's open dependents (abort, or
// commit of tx itself), attempting a flush afterward since this may have
// been the last transaction holding the chain's bottom back.
func (os *ObjectStore) releaseDependent(tx *Transaction, _ int64) {
	os.mu.Lock()
	defer os.mu.Unlock()
	delete(os.openDependents, tx)
	os.flushLocked(context.Background())
}

func (os *ObjectStore) overlayChain(fromStateID int64) []*overlay {
	var chain []*overlay
	id := fromStateID
	for id != backendStateID {
		s, ok := os.states[id]
		if !ok {
			break
		}
		chain = append(chain, s.ov)
		id = s.parentID
	}
	return chain
}

// get returns the effective value for key as seen through ov, then the
// chain of committed-but-unflushed states ov forked from, then the
// backend.
func (os *ObjectStore) get(ctx context.Context, ov *overlay, key any) (any, bool, error) {
	if ov != nil {
		if ov.removed[key] {
			return nil, false, nil
		}
		if v, ok := ov.puts[key]; ok {
			return v, true, nil
		}
		if ov.truncated {
			return nil, false, nil
		}
	}
	os.mu.Lock()
	chain := os.overlayChain(parentOf(ov))
	os.mu.Unlock()
	for _, s := range chain {
		if s.removed[key] {
			return nil, false, nil
		}
		if v, ok := s.puts[key]; ok {
			return v, true, nil
		}
		if s.truncated {
			return nil, false, nil
		}
	}
	return os.backend.Get(ctx, key)
}

// snapshot materializes the effective key/value view of ov layered over
// the chain it forked from and the backend, as a sorted slice: overlay
// wins over the chain, which wins over the backend, with truncation at any
// layer stopping the walk down past it. This is built eagerly rather than
// streamed because composing three independently-ordered sources (a Go
// map, a handful of committed overlays, and a B+Tree range scan) behind one
// cursor is not worth the complexity for a structure that, in practice,
// holds at most a few uncommitted deltas deep.
func (os *ObjectStore) snapshot(ctx context.Context, ov *overlay, r *jungledb.KeyRange) ([]jungledb.Entry, error) {
	seen := map[any]bool{}
	var out []jungledb.Entry

	take := func(k, v any) {
		if seen[k] {
			return
		}
		seen[k] = true
		if r == nil || r.Contains(k, jungledb.Compare) {
			out = append(out, jungledb.Entry{Key: k, Value: v})
		}
	}
	markSeen := func(k any) {
		seen[k] = true
	}

	truncated := false
	if ov != nil {
		for k := range ov.removed {
			markSeen(k)
		}
		for k, v := range ov.puts {
			take(k, v)
		}
		truncated = ov.truncated
	}

	if !truncated {
		os.mu.Lock()
		chain := os.overlayChain(parentOf(ov))
		os.mu.Unlock()
		for _, s := range chain {
			for k := range s.removed {
				markSeen(k)
			}
			for k, v := range s.puts {
				take(k, v)
			}
			if s.truncated {
				truncated = true
				break
			}
		}
	}

	if !truncated {
		values, err := os.backend.Values(ctx, r)
		if err != nil {
			return nil, err
		}
		keys, err := os.backend.Keys(ctx, r)
		if err != nil {
			return nil, err
		}
		for i, k := range keys {
			var v any
			if i < len(values) {
				v = values[i]
			}
			take(k, v)
		}
	}

	sort.Slice(out, func(i, j int) bool { return jungledb.Compare(out[i].Key, out[j].Key) < 0 })
	return out, nil
}

func parentOf(ov *overlay) int64 {
	if ov == nil {
		return backendStateID
	}
	return ov.parentStateID
}

// tryCommit validates that no other transaction committed against ov's
// parent state since ov was forked and, if so, pushes a new state carrying
// ov onto the chain (spec §4.5 step 1-2), deregisters tx as an open
// dependent, and opportunistically flushes the chain's bottom.
func (os *ObjectStore) tryCommit(ctx context.Context, tx *Transaction, ov *overlay) error {
	os.mu.Lock()
	if ov.parentStateID != os.headID {
		os.mu.Unlock()
		return jungledb.NewError(jungledb.ConflictFailure, nil, os.name)
	}
	id := os.nextID
	os.nextID++
	os.states[id] = &state{id: id, ov: ov, parentID: ov.parentStateID}
	os.headID = id
	delete(os.openDependents, tx)

	for name, tix := range ov.indexTx {
		if err := tix.Commit(); err != nil {
			os.mu.Unlock()
			return err
		}
		_ = name
	}

	os.flushLocked(ctx)
	os.mu.Unlock()
	return nil
}

// flushLocked applies every state on the chain, starting from the bottom,
// to the backend and drops it, as long as no transaction is still
// registered as an open dependent of this store (spec §4.5 step 4). Caller
// must hold os.mu.
func (os *ObjectStore) flushLocked(ctx context.Context) {
	if len(os.openDependents) > 0 {
		return
	}
	for {
		bottomID := os.bottomID()
		if bottomID == backendStateID {
			return
		}
		bottom := os.states[bottomID]
		if err := os.applyToBackend(ctx, bottom.ov); err != nil {
			return
		}
		delete(os.states, bottomID)
		for _, s := range os.states {
			if s.parentID == bottomID {
				s.parentID = backendStateID
			}
		}
	}
}

// bottomID walks down from the head to the oldest state still in the
// chain, or backendStateID if the chain is empty.
func (os *ObjectStore) bottomID() int64 {
	id := os.headID
	bottom := backendStateID
	for id != backendStateID {
		s, ok := os.states[id]
		if !ok {
			return bottom
		}
		bottom = id
		id = s.parentID
	}
	return bottom
}

// overlayCombinedMember adapts an overlay to jungledb.CombinedMember so a
// Backend can build its ApplyCombined payload from it. It backs both a
// single store's ordinary flush and a CombinedTransaction's multi-store
// flush: either way, "apply this batch of puts/removals/truncate to the
// backend" is the same operation from the Backend's point of view.
type overlayCombinedMember struct {
	ov *overlay
}

func (m overlayCombinedMember) CombinedPuts() map[any]any { return m.ov.puts }

func (m overlayCombinedMember) CombinedRemovals() []any {
	out := make([]any, 0, len(m.ov.removed))
	for k := range m.ov.removed {
		out = append(out, k)
	}
	return out
}

func (m overlayCombinedMember) CombinedTruncated() bool { return m.ov.truncated }

// applyToBackend flushes ov to the backend via its ApplyCombined batch
// contract (spec §6.1): persistent backends would merge Payload into a
// native batch write; the in-memory backend this module ships always
// returns a Deferred closure, invoked here directly.
func (os *ObjectStore) applyToBackend(ctx context.Context, ov *overlay) error {
	apply, err := os.backend.ApplyCombined(ctx, overlayCombinedMember{ov: ov})
	if err != nil {
		return jungledb.NewError(jungledb.BackendFailure, err, os.name)
	}
	if apply.Deferred != nil {
		if err := apply.Deferred(ctx); err != nil {
			return jungledb.NewError(jungledb.BackendFailure, err, os.name)
		}
	}
	return nil
}

// keys returns every key in r as seen through ov.
func (os *ObjectStore) keys(ctx context.Context, ov *overlay, r *jungledb.KeyRange) ([]any, error) {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out, nil
}

// values returns every value in r as seen through ov, in ascending key
// order.
func (os *ObjectStore) values(ctx context.Context, ov *overlay, r *jungledb.KeyRange) ([]any, error) {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

// count returns the number of keys in r as seen through ov.
func (os *ObjectStore) count(ctx context.Context, ov *overlay, r *jungledb.KeyRange) (int64, error) {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

// minKey, maxKey, minValue and maxValue report the first/last entry of r as
// seen through ov.
func (os *ObjectStore) minKey(ctx context.Context, ov *overlay, r *jungledb.KeyRange) (any, bool, error) {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil || len(entries) == 0 {
		return nil, false, err
	}
	return entries[0].Key, true, nil
}

func (os *ObjectStore) maxKey(ctx context.Context, ov *overlay, r *jungledb.KeyRange) (any, bool, error) {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil || len(entries) == 0 {
		return nil, false, err
	}
	return entries[len(entries)-1].Key, true, nil
}

func (os *ObjectStore) minValue(ctx context.Context, ov *overlay, r *jungledb.KeyRange) (any, bool, error) {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil || len(entries) == 0 {
		return nil, false, err
	}
	return entries[0].Value, true, nil
}

func (os *ObjectStore) maxValue(ctx context.Context, ov *overlay, r *jungledb.KeyRange) (any, bool, error) {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil || len(entries) == 0 {
		return nil, false, err
	}
	return entries[len(entries)-1].Value, true, nil
}

// keyStream and valueStream invoke cb for every entry of r as seen through
// ov, in the requested direction.
func (os *ObjectStore) keyStream(ctx context.Context, ov *overlay, cb func(key any) bool, ascending bool, r *jungledb.KeyRange) error {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil {
		return err
	}
	if !ascending {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	for _, e := range entries {
		if !cb(e.Key) {
			break
		}
	}
	return nil
}

func (os *ObjectStore) valueStream(ctx context.Context, ov *overlay, cb func(key, value any) bool, ascending bool, r *jungledb.KeyRange) error {
	entries, err := os.snapshot(ctx, ov, r)
	if err != nil {
		return err
	}
	if !ascending {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	for _, e := range entries {
		if !cb(e.Key, e.Value) {
			break
		}
	}
	return nil
}

// pendingStateCount reports how many committed-but-unflushed states remain
// on the chain; used by tests asserting flush-on-drain behavior.
func (os *ObjectStore) pendingStateCount() int {
	os.mu.Lock()
	defer os.mu.Unlock()
	n := 0
	for id := os.headID; id != backendStateID; {
		s, ok := os.states[id]
		if !ok {
			break
		}
		n++
		id = s.parentID
	}
	return n
}
