package btree

import (
	"fmt"

	"github.com/sharedcode/jungledb"
)

// Near selects which neighbor Find returns when the exact key is absent.
// It mirrors jungledb.Near so callers driving a Btree directly don't need a
// second import for the common case.
type Near = jungledb.Near

const (
	NearExact = jungledb.ExactMatch
	NearGE    = jungledb.GreaterOrEqual
	NearLE    = jungledb.LessOrEqual
)

// Btree is an in-memory B+Tree keyed by TK, storing values of type TV.
// It is not safe for concurrent use without external synchronization; the
// store package serializes access to each object store's Btree under its
// cooperative scheduler.
type Btree[TK jungledb.Ordered, TV any] struct {
	order    int
	root     *node[TK, TV]
	count    int64
	comparer jungledb.ComparerFunc[TK]
	coerced  func(x, y any) int

	curLeaf *node[TK, TV]
	curIdx  int
}

// New creates an empty Btree of the given order (minimum 3; the maximum
// number of keys a node may hold before it splits). A nil comparer falls
// back to jungledb.CoerceComparer, inferred from the first key it sees.
func New[TK jungledb.Ordered, TV any](order int, comparer jungledb.ComparerFunc[TK]) *Btree[TK, TV] {
	if order < 3 {
		order = 3
	}
	return &Btree[TK, TV]{
		order:    order,
		root:     newLeaf[TK, TV](),
		comparer: comparer,
		curIdx:   -1,
	}
}

// Count returns the number of items in the tree.
func (b *Btree[TK, TV]) Count() int64 {
	return b.count
}

func (b *Btree[TK, TV]) compare(a, b2 TK) int {
	if b.comparer != nil {
		return b.comparer(a, b2)
	}
	if b.coerced == nil {
		b.coerced = jungledb.CoerceComparer(a)
	}
	return b.coerced(a, b2)
}

// findLeaf descends from the root to the leaf that would contain key.
func (b *Btree[TK, TV]) findLeaf(key TK) *node[TK, TV] {
	n := b.root
	for !n.leaf {
		i := 0
		for i < len(n.keys) && b.compare(key, n.keys[i]) >= 0 {
			i++
		}
		n = n.children[i]
	}
	return n
}

// Add inserts key/value. It returns false without modifying the tree if the
// key already exists.
func (b *Btree[TK, TV]) Add(key TK, value TV) bool {
	leaf := b.findLeaf(key)
	i := 0
	for i < len(leaf.keys) && b.compare(leaf.keys[i], key) < 0 {
		i++
	}
	if i < len(leaf.keys) && b.compare(leaf.keys[i], key) == 0 {
		return false
	}
	leaf.keys = insertAt(leaf.keys, i, key)
	leaf.values = insertAt(leaf.values, i, value)
	b.count++
	b.curLeaf, b.curIdx = leaf, i

	if leaf.isFull(b.order) {
		b.splitLeaf(leaf)
		b.Find(key, jungledb.ExactMatch)
	}
	return true
}

// Upsert inserts key/value, overwriting any existing value for key.
func (b *Btree[TK, TV]) Upsert(key TK, value TV) {
	leaf := b.findLeaf(key)
	i := 0
	for i < len(leaf.keys) && b.compare(leaf.keys[i], key) < 0 {
		i++
	}
	if i < len(leaf.keys) && b.compare(leaf.keys[i], key) == 0 {
		leaf.values[i] = value
		b.curLeaf, b.curIdx = leaf, i
		return
	}
	b.Add(key, value)
}

func (b *Btree[TK, TV]) splitLeaf(leaf *node[TK, TV]) {
	mid := len(leaf.keys) / 2
	right := newLeaf[TK, TV]()
	right.keys = append(right.keys, leaf.keys[mid:]...)
	right.values = append(right.values, leaf.values[mid:]...)
	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]

	right.next = leaf.next
	if right.next != nil {
		right.next.prev = right
	}
	leaf.next = right
	right.prev = leaf

	b.insertIntoParent(leaf, right.keys[0], right)
}

func (b *Btree[TK, TV]) insertIntoParent(left *node[TK, TV], sep TK, right *node[TK, TV]) {
	parent := left.parent
	if parent == nil {
		newRoot := newInternal[TK, TV]()
		newRoot.keys = []TK{sep}
		newRoot.children = []*node[TK, TV]{left, right}
		left.parent = newRoot
		right.parent = newRoot
		b.root = newRoot
		return
	}
	right.parent = parent
	i := parent.childIndex(left)
	parent.keys = insertAt(parent.keys, i, sep)
	parent.children = insertAt(parent.children, i+1, right)

	if parent.isFull(b.order) {
		b.splitInternal(parent)
	}
}

func (b *Btree[TK, TV]) splitInternal(n *node[TK, TV]) {
	mid := len(n.keys) / 2
	sep := n.keys[mid]

	right := newInternal[TK, TV]()
	right.keys = append(right.keys, n.keys[mid+1:]...)
	right.children = append(right.children, n.children[mid+1:]...)
	for _, c := range right.children {
		c.parent = right
	}

	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]

	b.insertIntoParent(n, sep, right)
}

// AddIfNotExist is a readable alias for Add, which already refuses
// duplicate keys; kept for callers mirroring a set-style API.
func (b *Btree[TK, TV]) AddIfNotExist(key TK, value TV) bool {
	return b.Add(key, value)
}

// Find moves the cursor to the item matching key according to near, and
// returns whether an item is now selected.
func (b *Btree[TK, TV]) Find(key TK, near jungledb.Near) bool {
	leaf := b.findLeaf(key)
	i := 0
	for i < len(leaf.keys) && b.compare(leaf.keys[i], key) < 0 {
		i++
	}
	switch near {
	case jungledb.ExactMatch:
		if i < len(leaf.keys) && b.compare(leaf.keys[i], key) == 0 {
			b.curLeaf, b.curIdx = leaf, i
			return true
		}
		b.curLeaf, b.curIdx = nil, -1
		return false
	case jungledb.GreaterOrEqual:
		if i >= len(leaf.keys) {
			if leaf.next == nil {
				b.curLeaf, b.curIdx = nil, -1
				return false
			}
			b.curLeaf, b.curIdx = leaf.next, 0
			return true
		}
		b.curLeaf, b.curIdx = leaf, i
		return true
	case jungledb.LessOrEqual:
		if i < len(leaf.keys) && b.compare(leaf.keys[i], key) == 0 {
			b.curLeaf, b.curIdx = leaf, i
			return true
		}
		if i == 0 {
			if leaf.prev == nil {
				b.curLeaf, b.curIdx = nil, -1
				return false
			}
			p := leaf.prev
			b.curLeaf, b.curIdx = p, len(p.keys)-1
			return true
		}
		b.curLeaf, b.curIdx = leaf, i-1
		return true
	default:
		panic(fmt.Sprintf("btree: unknown Near value %v", near))
	}
}

// GetCurrentKey returns the key at the cursor. Panics if nothing is
// selected; callers should check the bool returned by a prior
// Find/First/Last/Next/Previous.
func (b *Btree[TK, TV]) GetCurrentKey() TK {
	return b.curLeaf.keys[b.curIdx]
}

// GetCurrentValue returns the value at the cursor.
func (b *Btree[TK, TV]) GetCurrentValue() TV {
	return b.curLeaf.values[b.curIdx]
}

func (b *Btree[TK, TV]) isCurrentSelected() bool {
	return b.curLeaf != nil && b.curIdx >= 0 && b.curIdx < len(b.curLeaf.keys)
}

// First moves the cursor to the smallest key.
func (b *Btree[TK, TV]) First() bool {
	return b.GoTop()
}

// Last moves the cursor to the largest key.
func (b *Btree[TK, TV]) Last() bool {
	return b.GoBottom()
}

// GoTop moves the cursor to the leftmost item.
func (b *Btree[TK, TV]) GoTop() bool {
	n := b.root
	for !n.leaf {
		n = n.children[0]
	}
	if len(n.keys) == 0 {
		b.curLeaf, b.curIdx = nil, -1
		return false
	}
	b.curLeaf, b.curIdx = n, 0
	return true
}

// GoBottom moves the cursor to the rightmost item.
func (b *Btree[TK, TV]) GoBottom() bool {
	n := b.root
	for !n.leaf {
		n = n.children[len(n.children)-1]
	}
	if len(n.keys) == 0 {
		b.curLeaf, b.curIdx = nil, -1
		return false
	}
	b.curLeaf, b.curIdx = n, len(n.keys)-1
	return true
}

// Next advances the cursor to the next item in ascending order.
func (b *Btree[TK, TV]) Next() bool {
	if !b.isCurrentSelected() {
		return false
	}
	if b.curIdx+1 < len(b.curLeaf.keys) {
		b.curIdx++
		return true
	}
	if b.curLeaf.next == nil {
		b.curLeaf, b.curIdx = nil, -1
		return false
	}
	b.curLeaf, b.curIdx = b.curLeaf.next, 0
	return true
}

// Previous moves the cursor to the previous item in ascending order.
func (b *Btree[TK, TV]) Previous() bool {
	if !b.isCurrentSelected() {
		return false
	}
	if b.curIdx > 0 {
		b.curIdx--
		return true
	}
	if b.curLeaf.prev == nil {
		b.curLeaf, b.curIdx = nil, -1
		return false
	}
	p := b.curLeaf.prev
	b.curLeaf, b.curIdx = p, len(p.keys)-1
	return true
}

// Skip advances (n > 0) or rewinds (n < 0) the cursor by n items, returning
// false if that runs off either end.
func (b *Btree[TK, TV]) Skip(n int) bool {
	if n >= 0 {
		for i := 0; i < n; i++ {
			if !b.Next() {
				return false
			}
		}
		return true
	}
	for i := 0; i < -n; i++ {
		if !b.Previous() {
			return false
		}
	}
	return true
}

// Keynum returns the ordinal position (0-based) of the currently selected
// key among all keys in the tree, computed by walking the leaf chain. It is
// O(n); callers needing this on a hot path should cache sparingly.
func (b *Btree[TK, TV]) Keynum() (int64, bool) {
	if !b.isCurrentSelected() {
		return 0, false
	}
	var i int64
	n := b.leftmostLeaf()
	for n != nil {
		if n == b.curLeaf {
			return i + int64(b.curIdx), true
		}
		i += int64(len(n.keys))
		n = n.next
	}
	return 0, false
}

func (b *Btree[TK, TV]) leftmostLeaf() *node[TK, TV] {
	n := b.root
	for !n.leaf {
		n = n.children[0]
	}
	return n
}

// UpdateCurrentItem replaces the value at the cursor without moving it.
func (b *Btree[TK, TV]) UpdateCurrentItem(value TV) bool {
	if !b.isCurrentSelected() {
		return false
	}
	b.curLeaf.values[b.curIdx] = value
	return true
}

// Update replaces the value stored under key, if present.
func (b *Btree[TK, TV]) Update(key TK, value TV) bool {
	if !b.Find(key, jungledb.ExactMatch) {
		return false
	}
	return b.UpdateCurrentItem(value)
}

// Remove deletes key from the tree, returning whether it was present.
func (b *Btree[TK, TV]) Remove(key TK) bool {
	if !b.Find(key, jungledb.ExactMatch) {
		return false
	}
	return b.RemoveCurrentItem()
}

// RemoveCurrentItem deletes the item at the cursor and advances the cursor
// to the next item (or deselects it if none follows).
func (b *Btree[TK, TV]) RemoveCurrentItem() bool {
	if !b.isCurrentSelected() {
		return false
	}
	leaf := b.curLeaf
	idx := b.curIdx
	nextKey, hasNext := zeroOf[TK](), false
	if idx+1 < len(leaf.keys) {
		nextKey, hasNext = leaf.keys[idx+1], true
	} else if leaf.next != nil && len(leaf.next.keys) > 0 {
		nextKey, hasNext = leaf.next.keys[0], true
	}

	leaf.keys = removeAt(leaf.keys, idx)
	leaf.values = removeAt(leaf.values, idx)
	b.count--

	b.rebalanceAfterRemove(leaf)

	if hasNext {
		b.Find(nextKey, jungledb.GreaterOrEqual)
	} else {
		b.curLeaf, b.curIdx = nil, -1
	}
	return true
}

func zeroOf[T any]() T {
	var z T
	return z
}

// rebalanceAfterRemove restores the minimum-occupancy invariant bottom-up
// after a deletion, borrowing from a sibling or merging as needed.
func (b *Btree[TK, TV]) rebalanceAfterRemove(n *node[TK, TV]) {
	minKeys := (b.order - 1) / 2
	if n == b.root {
		if !n.leaf && len(n.children) == 1 {
			b.root = n.children[0]
			b.root.parent = nil
		}
		return
	}
	if len(n.keys) >= minKeys {
		return
	}

	parent := n.parent
	idx := parent.childIndex(n)

	var leftSib, rightSib *node[TK, TV]
	if idx > 0 {
		leftSib = parent.children[idx-1]
	}
	if idx+1 < len(parent.children) {
		rightSib = parent.children[idx+1]
	}

	if n.leaf {
		if leftSib != nil && len(leftSib.keys) > minKeys {
			k := len(leftSib.keys) - 1
			n.keys = insertAt(n.keys, 0, leftSib.keys[k])
			n.values = insertAt(n.values, 0, leftSib.values[k])
			leftSib.keys = leftSib.keys[:k]
			leftSib.values = leftSib.values[:k]
			parent.keys[idx-1] = n.keys[0]
			return
		}
		if rightSib != nil && len(rightSib.keys) > minKeys {
			n.keys = append(n.keys, rightSib.keys[0])
			n.values = append(n.values, rightSib.values[0])
			rightSib.keys = removeAt(rightSib.keys, 0)
			rightSib.values = removeAt(rightSib.values, 0)
			parent.keys[idx] = rightSib.keys[0]
			return
		}
		if leftSib != nil {
			leftSib.keys = append(leftSib.keys, n.keys...)
			leftSib.values = append(leftSib.values, n.values...)
			leftSib.next = n.next
			if n.next != nil {
				n.next.prev = leftSib
			}
			parent.keys = removeAt(parent.keys, idx-1)
			parent.children = removeAt(parent.children, idx)
			b.rebalanceAfterRemove(parent)
			return
		}
		rightSib.keys = append(n.keys, rightSib.keys...)
		rightSib.values = append(n.values, rightSib.values...)
		rightSib.prev = n.prev
		if n.prev != nil {
			n.prev.next = rightSib
		}
		parent.keys = removeAt(parent.keys, idx)
		parent.children = removeAt(parent.children, idx)
		b.rebalanceAfterRemove(parent)
		return
	}

	// internal node
	if leftSib != nil && len(leftSib.keys) > minKeys {
		k := len(leftSib.keys) - 1
		n.keys = insertAt(n.keys, 0, parent.keys[idx-1])
		parent.keys[idx-1] = leftSib.keys[k]
		leftSib.keys = leftSib.keys[:k]
		c := leftSib.children[len(leftSib.children)-1]
		leftSib.children = leftSib.children[:len(leftSib.children)-1]
		c.parent = n
		n.children = insertAt(n.children, 0, c)
		return
	}
	if rightSib != nil && len(rightSib.keys) > minKeys {
		n.keys = append(n.keys, parent.keys[idx])
		parent.keys[idx] = rightSib.keys[0]
		rightSib.keys = removeAt(rightSib.keys, 0)
		c := rightSib.children[0]
		rightSib.children = removeAt(rightSib.children, 0)
		c.parent = n
		n.children = append(n.children, c)
		return
	}
	if leftSib != nil {
		leftSib.keys = append(leftSib.keys, parent.keys[idx-1])
		leftSib.keys = append(leftSib.keys, n.keys...)
		for _, c := range n.children {
			c.parent = leftSib
		}
		leftSib.children = append(leftSib.children, n.children...)
		parent.keys = removeAt(parent.keys, idx-1)
		parent.children = removeAt(parent.children, idx)
		b.rebalanceAfterRemove(parent)
		return
	}
	n.keys = append(n.keys, parent.keys[idx])
	n.keys = append(n.keys, rightSib.keys...)
	for _, c := range rightSib.children {
		c.parent = n
	}
	n.children = append(n.children, rightSib.children...)
	parent.keys = removeAt(parent.keys, idx)
	parent.children = removeAt(parent.children, idx+1)
	b.rebalanceAfterRemove(parent)
}

// Truncate empties the tree.
func (b *Btree[TK, TV]) Truncate() {
	b.root = newLeaf[TK, TV]()
	b.count = 0
	b.curLeaf, b.curIdx = nil, -1
}

// Range invokes cb for every key in [lo, hi] (either bound nil means
// unbounded) in ascending order, stopping early if cb returns false.
func (b *Btree[TK, TV]) Range(lo, hi *TK, cb func(key TK, value TV) bool) {
	var ok bool
	if lo != nil {
		ok = b.Find(*lo, jungledb.GreaterOrEqual)
	} else {
		ok = b.GoTop()
	}
	for ok {
		k := b.GetCurrentKey()
		if hi != nil && b.compare(k, *hi) > 0 {
			return
		}
		if !cb(k, b.GetCurrentValue()) {
			return
		}
		ok = b.Next()
	}
}

// Pack rebuilds the tree via bulk-loading from a full ascending scan,
// yielding maximally dense leaves. Useful after heavy deletion activity.
func (b *Btree[TK, TV]) Pack() {
	keys := make([]TK, 0, b.count)
	values := make([]TV, 0, b.count)
	b.Range(nil, nil, func(k TK, v TV) bool {
		keys = append(keys, k)
		values = append(values, v)
		return true
	})
	b.bulkLoad(keys, values)
}

// Dump returns every key/value pair in ascending order, for snapshotting a
// store's primary index.
func (b *Btree[TK, TV]) Dump() (keys []TK, values []TV) {
	keys = make([]TK, 0, b.count)
	values = make([]TV, 0, b.count)
	b.Range(nil, nil, func(k TK, v TV) bool {
		keys = append(keys, k)
		values = append(values, v)
		return true
	})
	return keys, values
}

// Load replaces the tree's contents with the given ascending key/value
// pairs via bulk-loading. Callers are responsible for ensuring keys is
// already sorted and free of duplicates.
func (b *Btree[TK, TV]) Load(keys []TK, values []TV) {
	b.bulkLoad(keys, values)
}

func (b *Btree[TK, TV]) bulkLoad(keys []TK, values []TV) {
	if len(keys) == 0 {
		b.root = newLeaf[TK, TV]()
		b.count = 0
		b.curLeaf, b.curIdx = nil, -1
		return
	}
	leafCap := b.order - 1
	var leaves []*node[TK, TV]
	for i := 0; i < len(keys); i += leafCap {
		end := i + leafCap
		if end > len(keys) {
			end = len(keys)
		}
		l := newLeaf[TK, TV]()
		l.keys = append(l.keys, keys[i:end]...)
		l.values = append(l.values, values[i:end]...)
		if len(leaves) > 0 {
			prev := leaves[len(leaves)-1]
			prev.next = l
			l.prev = prev
		}
		leaves = append(leaves, l)
	}

	level := leaves
	for len(level) > 1 {
		var parents []*node[TK, TV]
		childCap := b.order
		for i := 0; i < len(level); i += childCap {
			end := i + childCap
			if end > len(level) {
				end = len(level)
			}
			p := newInternal[TK, TV]()
			p.children = append(p.children, level[i:end]...)
			for j, c := range p.children {
				c.parent = p
				if j > 0 {
					p.keys = append(p.keys, b.firstKey(c))
				}
			}
			parents = append(parents, p)
		}
		level = parents
	}

	b.root = level[0]
	b.count = int64(len(keys))
	b.curLeaf, b.curIdx = nil, -1
}

func (b *Btree[TK, TV]) firstKey(n *node[TK, TV]) TK {
	for !n.leaf {
		n = n.children[0]
	}
	return n.keys[0]
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}
