package index

import (
	"github.com/sharedcode/jungledb"
	"github.com/sharedcode/jungledb/btree"
)

// postingList is the value stored under an indexed key: the set of primary
// keys bound to it, preserved in insertion order for stable iteration.
type postingList struct {
	keys []any
}

func (p *postingList) add(primaryKey any, compare func(a, b any) int) {
	for _, k := range p.keys {
		if compare(k, primaryKey) == 0 {
			return
		}
	}
	p.keys = append(p.keys, primaryKey)
}

func (p *postingList) remove(primaryKey any, compare func(a, b any) int) bool {
	for i, k := range p.keys {
		if compare(k, primaryKey) == 0 {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			return true
		}
	}
	return false
}

// InMemoryIndex realizes one IndexOptions as a B+Tree of extracted key-path
// values to posting lists of primary keys (spec §6.2).
type InMemoryIndex struct {
	opts    jungledb.IndexOptions
	tree    *btree.Btree[any, *postingList]
	compare func(a, b any) int
	order   int
}

// NewInMemoryIndex builds an empty index realizing opts, ordered via
// jungledb.Compare, which dispatches on the dynamic type of whatever the key
// path extracts (a reasonable default since the indexed attribute's type is
// not known until the first value is seen).
func NewInMemoryIndex(opts jungledb.IndexOptions, order int) *InMemoryIndex {
	cmp := jungledb.Compare
	return &InMemoryIndex{
		opts:    opts,
		tree:    btree.New[any, *postingList](order, cmp),
		compare: cmp,
		order:   order,
	}
}

func (ix *InMemoryIndex) keysFor(value any) ([]any, bool) {
	if ix.opts.MultiEntry {
		return ExtractMultiEntryKeys(value, ix.opts.KeyPath)
	}
	v, ok := ExtractKeyPath(value, ix.opts.KeyPath)
	if !ok {
		return nil, false
	}
	return []any{v}, true
}

// Put binds primaryKey into the index under every key the stored value
// extracts to. For a unique index, it fails with a UniquenessViolation
// error if any extracted key is already bound to a different primary key.
func (ix *InMemoryIndex) Put(primaryKey, value any) error {
	keys, ok := ix.keysFor(value)
	if !ok {
		return nil
	}
	for _, k := range keys {
		if ix.tree.Find(k, jungledb.ExactMatch) {
			pl := ix.tree.GetCurrentValue()
			if ix.opts.Unique && len(pl.keys) > 0 && ix.compare(pl.keys[0], primaryKey) != 0 {
				return errUniqueViolation(ix.opts.Name, k)
			}
			pl.add(primaryKey, ix.compare)
			continue
		}
		pl := &postingList{}
		pl.add(primaryKey, ix.compare)
		ix.tree.Add(k, pl)
	}
	return nil
}

// Remove unbinds primaryKey from every key value extracts to.
func (ix *InMemoryIndex) Remove(primaryKey, value any) {
	keys, ok := ix.keysFor(value)
	if !ok {
		return
	}
	for _, k := range keys {
		if !ix.tree.Find(k, jungledb.ExactMatch) {
			continue
		}
		pl := ix.tree.GetCurrentValue()
		pl.remove(primaryKey, ix.compare)
		if len(pl.keys) == 0 {
			ix.tree.RemoveCurrentItem()
		}
	}
}

// Truncate empties the index, preserving its configured order and comparer.
func (ix *InMemoryIndex) Truncate() {
	ix.tree = btree.New[any, *postingList](ix.order, ix.compare)
}

// PrimaryKeys returns the primary keys bound to indexed key k, in posting
// order.
func (ix *InMemoryIndex) PrimaryKeys(k any) []any {
	if !ix.tree.Find(k, jungledb.ExactMatch) {
		return nil
	}
	pl := ix.tree.GetCurrentValue()
	out := make([]any, len(pl.keys))
	copy(out, pl.keys)
	return out
}

// Range invokes cb with (indexedKey, primaryKey) for every binding whose
// indexed key falls within r, in ascending indexed-key order, stopping
// early if cb returns false.
func (ix *InMemoryIndex) Range(r jungledb.KeyRange, cb func(indexedKey, primaryKey any) bool) {
	if r.IsExact() {
		k := r.ExactKey()
		for _, pk := range ix.PrimaryKeys(k) {
			if !cb(k, pk) {
				return
			}
		}
		return
	}
	var lo, hi *any
	if r.HasLower {
		v := r.Lower
		lo = &v
	}
	if r.HasUpper {
		v := r.Upper
		hi = &v
	}
	ix.tree.Range(lo, hi, func(k any, pl *postingList) bool {
		if r.HasLower && r.LowerOpen && ix.compare(k, r.Lower) == 0 {
			return true
		}
		if r.HasUpper && r.UpperOpen && ix.compare(k, r.Upper) == 0 {
			return true
		}
		for _, pk := range pl.keys {
			if !cb(k, pk) {
				return false
			}
		}
		return true
	})
}

// Count returns the number of primary-key bindings matching r.
func (ix *InMemoryIndex) Count(r jungledb.KeyRange) int64 {
	var n int64
	ix.Range(r, func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Options returns the IndexOptions this index realizes.
func (ix *InMemoryIndex) Options() jungledb.IndexOptions {
	return ix.opts
}
