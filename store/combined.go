package store

import (
	"context"
	"sort"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sharedcode/jungledb"
)

type combinedEntry struct {
	os *ObjectStore
	ov *overlay
	tx *Transaction
}

// CombinedTransaction coordinates an atomic commit across the object
// stores touched by several independently-opened root Transactions (spec
// §4.6), possibly spanning more than one Database. Every member must be a
// root (non-nested), Open transaction; no two members may touch the same
// object store. In-memory-backed members are exempt from the
// same-database restriction other backends are held to, since an
// in-memory store has no external durability boundary for a combined
// commit to violate.
type CombinedTransaction struct {
	members []*Transaction
}

// NewCombinedTransaction validates and wraps members for a combined
// commit.
func NewCombinedTransaction(members ...*Transaction) (*CombinedTransaction, error) {
	if len(members) < 2 {
		return nil, jungledb.NewError(jungledb.InvalidArguments, nil, "combined transaction needs at least two members")
	}
	seen := map[string]bool{}
	var persistentDB *Database
	for _, m := range members {
		if m.state != Open {
			return nil, jungledb.NewError(jungledb.InvalidArguments, nil, "combined transaction member must be open")
		}
		if m.parent != nil {
			return nil, jungledb.NewError(jungledb.InvalidArguments, nil, "combined transaction member must not be nested")
		}
		for name := range m.overlays {
			if seen[name] {
				return nil, jungledb.NewError(jungledb.InvalidArguments, nil, "store "+name+" touched by more than one member")
			}
			seen[name] = true
		}
		// A member that only ever touched in-memory stores is exempt from
		// the same-database restriction: an in-memory store has no external
		// durability boundary for a combined commit to violate. A member
		// holding even one persistent store must share its Database with
		// every other such member.
		if m.touchesPersistentStore() {
			if persistentDB == nil {
				persistentDB = m.db
			} else if persistentDB != m.db {
				return nil, jungledb.NewError(jungledb.InvalidArguments, nil, "combined transaction members touching persistent stores must share a Database")
			}
		}
	}
	return &CombinedTransaction{members: members}, nil
}

func (c *CombinedTransaction) entries() ([]combinedEntry, error) {
	var entries []combinedEntry
	for _, m := range c.members {
		for name, ov := range m.overlays {
			os, err := m.store(name)
			if err != nil {
				return nil, err
			}
			entries = append(entries, combinedEntry{os: os, ov: ov, tx: m})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].os.name < entries[j].os.name })
	return entries, nil
}

// Commit makes every member's writes durable as one atomic unit: either
// every touched object store gets a new committed state pushed onto its
// chain, or none do (spec §4.6). The push itself, like a single
// transaction's tryCommit, is immediate and makes the combined commit
// visible to new transactions right away; physical flush of each store's
// chain to its backend stays independently gated on that store's own
// dependents, so an older reader elsewhere can hold one member's flush
// back without blocking the others or un-committing the transaction (spec
// §8 scenario 4's combined-transaction variant).
func (c *CombinedTransaction) Commit(ctx context.Context) error {
	entries, err := c.entries()
	if err != nil {
		return err
	}

	for _, e := range entries {
		e.os.mu.Lock()
	}
	conflict := false
	for _, e := range entries {
		if e.ov.parentStateID != e.os.headID {
			conflict = true
			break
		}
	}
	if conflict {
		for _, e := range entries {
			delete(e.os.openDependents, e.tx)
			e.os.flushLocked(ctx)
		}
		for _, e := range entries {
			e.os.mu.Unlock()
		}
		for _, m := range c.members {
			m.state = Conflicted
		}
		return jungledb.NewError(jungledb.ConflictFailure, nil, "combined transaction")
	}

	for _, e := range entries {
		id := e.os.nextID
		e.os.nextID++
		e.os.states[id] = &state{id: id, ov: e.ov, parentID: e.ov.parentStateID}
		e.os.headID = id
		delete(e.os.openDependents, e.tx)
	}
	for _, e := range entries {
		for _, tix := range e.ov.indexTx {
			if cerr := tix.Commit(); cerr != nil {
				for _, e2 := range entries {
					e2.os.mu.Unlock()
				}
				for _, m := range c.members {
					m.state = Conflicted
				}
				return cerr
			}
		}
	}
	for _, e := range entries {
		e.os.mu.Unlock()
	}

	for _, m := range c.members {
		m.state = Committed
	}

	for _, e := range entries {
		os := e.os
		b := retry.WithMaxRetries(3, retry.NewFibonacci(100*time.Millisecond))
		_ = retry.Do(ctx, b, func(ctx context.Context) error {
			os.mu.Lock()
			defer os.mu.Unlock()
			os.flushLocked(ctx)
			// With no dependents left, flushLocked stops early only when a
			// backend apply failed.
			if len(os.openDependents) == 0 && os.bottomID() != backendStateID {
				return retry.RetryableError(jungledb.NewError(jungledb.BackendFailure, nil, os.name))
			}
			return nil
		})
	}
	return nil
}

// Rollback discards every member's overlay without touching any store.
func (c *CombinedTransaction) Rollback() {
	for _, m := range c.members {
		m.Rollback()
	}
}
