package index

import "github.com/sharedcode/jungledb"

type indexOpKind int

const (
	opPut indexOpKind = iota
	opRemove
	opTruncate
)

type indexOp struct {
	kind       indexOpKind
	primaryKey any
	value      any
}

// TransactionIndex gives one transaction a snapshot-isolated view of a
// parent InMemoryIndex: reads compose the parent's committed state with the
// transaction's own uncommitted puts/removes, and nothing is applied to the
// parent until Commit replays the recorded operations in order.
type TransactionIndex struct {
	parent    *InMemoryIndex
	ops       []indexOp
	truncated bool
	// added/removed track, per indexed key, the primary keys this
	// transaction has bound or unbound, so reads don't need to replay ops.
	added   map[any]*postingList
	removed map[any]*postingList
}

// NewTransactionIndex opens a transaction-scoped overlay on parent.
func NewTransactionIndex(parent *InMemoryIndex) *TransactionIndex {
	return &TransactionIndex{
		parent:  parent,
		added:   map[any]*postingList{},
		removed: map[any]*postingList{},
	}
}

func (t *TransactionIndex) keysFor(value any) ([]any, bool) {
	if t.parent.opts.MultiEntry {
		return ExtractMultiEntryKeys(value, t.parent.opts.KeyPath)
	}
	v, ok := ExtractKeyPath(value, t.parent.opts.KeyPath)
	if !ok {
		return nil, false
	}
	return []any{v}, true
}

// Put records a put for replay at commit and updates the local overlay used
// for reads within this transaction. It enforces uniqueness against the
// transaction's effective view (parent minus local removals, plus local
// additions), matching the isolation the rest of the transaction sees.
func (t *TransactionIndex) Put(primaryKey, value any) error {
	keys, ok := t.keysFor(value)
	if !ok {
		return nil
	}
	cmp := t.parent.compare
	for _, k := range keys {
		if t.parent.opts.Unique {
			existing := t.effectivePrimaryKeys(k)
			for _, pk := range existing {
				if cmp(pk, primaryKey) != 0 {
					return errUniqueViolation(t.parent.opts.Name, k)
				}
			}
		}
		pl := t.added[k]
		if pl == nil {
			pl = &postingList{}
			t.added[k] = pl
		}
		pl.add(primaryKey, cmp)
		if rpl, ok := t.removed[k]; ok {
			rpl.remove(primaryKey, cmp)
		}
	}
	t.ops = append(t.ops, indexOp{kind: opPut, primaryKey: primaryKey, value: value})
	return nil
}

// Remove records a removal for replay at commit and updates local overlay.
func (t *TransactionIndex) Remove(primaryKey, value any) {
	keys, ok := t.keysFor(value)
	if !ok {
		return
	}
	cmp := t.parent.compare
	for _, k := range keys {
		if pl, ok := t.added[k]; ok {
			pl.remove(primaryKey, cmp)
		}
		rpl := t.removed[k]
		if rpl == nil {
			rpl = &postingList{}
			t.removed[k] = rpl
		}
		rpl.add(primaryKey, cmp)
	}
	t.ops = append(t.ops, indexOp{kind: opRemove, primaryKey: primaryKey, value: value})
}

// Truncate records that the index should be emptied at commit, and makes
// this transaction's reads see an empty index from this point forward.
func (t *TransactionIndex) Truncate() {
	t.truncated = true
	t.ops = append(t.ops, indexOp{kind: opTruncate})
	t.added = map[any]*postingList{}
	t.removed = map[any]*postingList{}
}

func (t *TransactionIndex) effectivePrimaryKeys(k any) []any {
	var base []any
	if !t.truncated {
		base = t.parent.PrimaryKeys(k)
	}
	if rpl, ok := t.removed[k]; ok {
		filtered := base[:0:0]
		for _, pk := range base {
			if !containsKey(rpl.keys, pk, t.parent.compare) {
				filtered = append(filtered, pk)
			}
		}
		base = filtered
	}
	if apl, ok := t.added[k]; ok {
		for _, pk := range apl.keys {
			if !containsKey(base, pk, t.parent.compare) {
				base = append(base, pk)
			}
		}
	}
	return base
}

func containsKey(keys []any, k any, cmp func(a, b any) int) bool {
	for _, x := range keys {
		if cmp(x, k) == 0 {
			return true
		}
	}
	return false
}

// PrimaryKeys returns this transaction's effective view of the primary keys
// bound to indexed key k.
func (t *TransactionIndex) PrimaryKeys(k any) []any {
	return t.effectivePrimaryKeys(k)
}

// Range invokes cb for every binding visible to this transaction whose
// indexed key falls within r, composing the parent's committed bindings
// with local overlay deltas. Iteration order is not globally sorted across
// the local-only additions, since those live outside the parent's B+Tree;
// callers needing strict ordering across overlay and base should Commit
// first or tolerate a two-pass merge, which spec §6.2 does not require for
// a transaction's own-write visibility.
func (t *TransactionIndex) Range(r jungledb.KeyRange, cb func(indexedKey, primaryKey any) bool) {
	seen := map[any]bool{}
	if !t.truncated {
		t.parent.Range(r, func(k, pk any) bool {
			seen[k] = true
			for _, epk := range t.effectivePrimaryKeys(k) {
				if t.parent.compare(epk, pk) == 0 {
					if !cb(k, pk) {
						return false
					}
					break
				}
			}
			return true
		})
	}
	for k, pl := range t.added {
		if !r.Contains(k, t.parent.compare) {
			continue
		}
		for _, pk := range pl.keys {
			// Bindings the parent also holds were already emitted above.
			if seen[k] && containsKey(t.parent.PrimaryKeys(k), pk, t.parent.compare) {
				continue
			}
			if !cb(k, pk) {
				return
			}
		}
	}
}

// Commit replays this transaction's recorded operations into the parent
// index in order.
func (t *TransactionIndex) Commit() error {
	for _, op := range t.ops {
		switch op.kind {
		case opTruncate:
			t.parent.Truncate()
		case opPut:
			if err := t.parent.Put(op.primaryKey, op.value); err != nil {
				return err
			}
		case opRemove:
			t.parent.Remove(op.primaryKey, op.value)
		}
	}
	return nil
}

// Abort discards the transaction's recorded operations without touching
// the parent index.
func (t *TransactionIndex) Abort() {
	t.ops = nil
	t.added = map[any]*postingList{}
	t.removed = map[any]*postingList{}
	t.truncated = false
}
