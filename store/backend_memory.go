// Package store implements the concrete Database, ObjectStore, Transaction,
// and CombinedTransaction types described by the core package's interfaces:
// an in-memory Backend built on the btree package, per-store commit
// versioning with first-committer-wins conflict detection, nested
// transactions, and a combined-transaction coordinator for cross-store
// atomic commits.
package store

import (
	"context"
	"sync"

	"github.com/sharedcode/jungledb"
	"github.com/sharedcode/jungledb/btree"
)

// memoryBackend is the default Backend: a single in-memory B+Tree keyed by
// the object store's primary key. ApplyCombined always returns a Deferred
// closure since there is no native batch-write concept to build a payload
// for.
type memoryBackend struct {
	mu   sync.RWMutex
	tree *btree.Btree[any, any]
}

func newMemoryBackend(order int, comparer func(a, b any) int) *memoryBackend {
	return &memoryBackend{tree: btree.New[any, any](order, comparer)}
}

func (m *memoryBackend) Get(_ context.Context, key any) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.tree.Find(key, jungledb.ExactMatch) {
		return nil, false, nil
	}
	return m.tree.GetCurrentValue(), true, nil
}

func (m *memoryBackend) Put(_ context.Context, key, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Upsert(key, value)
	return nil
}

func (m *memoryBackend) Remove(_ context.Context, key any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Remove(key)
	return nil
}

func (m *memoryBackend) Keys(_ context.Context, r *jungledb.KeyRange) ([]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []any
	m.rangeLocked(r, func(k, _ any) bool {
		out = append(out, k)
		return true
	})
	return out, nil
}

func (m *memoryBackend) Values(_ context.Context, r *jungledb.KeyRange) ([]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []any
	m.rangeLocked(r, func(_, v any) bool {
		out = append(out, v)
		return true
	})
	return out, nil
}

func (m *memoryBackend) KeyStream(_ context.Context, cb func(key any) bool, ascending bool, r *jungledb.KeyRange) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.streamLocked(r, ascending, func(k, _ any) bool { return cb(k) })
	return nil
}

func (m *memoryBackend) ValueStream(_ context.Context, cb func(key, value any) bool, ascending bool, r *jungledb.KeyRange) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.streamLocked(r, ascending, cb)
	return nil
}

// rangeLocked assumes the caller already holds the lock and always scans
// ascending.
func (m *memoryBackend) rangeLocked(r *jungledb.KeyRange, cb func(k, v any) bool) {
	m.streamLocked(r, true, cb)
}

func (m *memoryBackend) streamLocked(r *jungledb.KeyRange, ascending bool, cb func(k, v any) bool) {
	lo, hi := boundsOf(r)
	if ascending {
		m.tree.Range(lo, hi, func(k, v any) bool {
			if r != nil && !r.IsUnbounded() && !r.Contains(k, jungledb.Compare) {
				return true
			}
			return cb(k, v)
		})
		return
	}
	var ok bool
	if hi != nil {
		ok = m.tree.Find(*hi, jungledb.LessOrEqual)
	} else {
		ok = m.tree.Last()
	}
	for ok {
		k := m.tree.GetCurrentKey()
		if lo != nil && jungledb.Compare(k, *lo) < 0 {
			return
		}
		if r == nil || r.IsUnbounded() || r.Contains(k, jungledb.Compare) {
			if !cb(k, m.tree.GetCurrentValue()) {
				return
			}
		}
		ok = m.tree.Previous()
	}
}

func boundsOf(r *jungledb.KeyRange) (lo, hi *any) {
	if r == nil {
		return nil, nil
	}
	if r.IsExact() {
		k := r.ExactKey()
		return &k, &k
	}
	if r.HasLower {
		v := r.Lower
		lo = &v
	}
	if r.HasUpper {
		v := r.Upper
		hi = &v
	}
	return lo, hi
}

func (m *memoryBackend) MinKey(_ context.Context, r *jungledb.KeyRange) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found any
	ok := false
	m.rangeLocked(r, func(k, _ any) bool {
		found, ok = k, true
		return false
	})
	return found, ok, nil
}

func (m *memoryBackend) MaxKey(_ context.Context, r *jungledb.KeyRange) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found any
	ok := false
	m.streamLocked(r, false, func(k, _ any) bool {
		found, ok = k, true
		return false
	})
	return found, ok, nil
}

func (m *memoryBackend) MinValue(ctx context.Context, r *jungledb.KeyRange) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found any
	ok := false
	m.rangeLocked(r, func(_, v any) bool {
		found, ok = v, true
		return false
	})
	return found, ok, nil
}

func (m *memoryBackend) MaxValue(ctx context.Context, r *jungledb.KeyRange) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found any
	ok := false
	m.streamLocked(r, false, func(_, v any) bool {
		found, ok = v, true
		return false
	})
	return found, ok, nil
}

func (m *memoryBackend) Count(_ context.Context, r *jungledb.KeyRange) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r == nil || r.IsUnbounded() {
		return m.tree.Count(), nil
	}
	var n int64
	m.rangeLocked(r, func(_, _ any) bool {
		n++
		return true
	})
	return n, nil
}

func (m *memoryBackend) Truncate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Truncate()
	return nil
}

func (m *memoryBackend) ApplyCombined(_ context.Context, tx jungledb.CombinedMember) (jungledb.CombinedApply, error) {
	return jungledb.CombinedApply{
		Deferred: func(ctx context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			if tx.CombinedTruncated() {
				m.tree.Truncate()
			}
			for k, v := range tx.CombinedPuts() {
				m.tree.Upsert(k, v)
			}
			for _, k := range tx.CombinedRemovals() {
				m.tree.Remove(k)
			}
			return nil
		},
	}, nil
}

func (m *memoryBackend) IsSynchronous() bool {
	return true
}
