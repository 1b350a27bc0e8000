package btree

import "github.com/sharedcode/jungledb"

// node is a B+Tree node. Leaves hold the actual key/value slots and are
// chained left-to-right for fast range scans; internal nodes hold only keys
// and child pointers (the key at children[i+1] separates children[i] and
// children[i+1]).
type node[TK jungledb.Ordered, TV any] struct {
	leaf     bool
	parent   *node[TK, TV]
	keys     []TK
	values   []TV     // populated only when leaf
	children []*node[TK, TV]
	next     *node[TK, TV] // leaf chain, nil at the rightmost leaf
	prev     *node[TK, TV] // leaf chain, nil at the leftmost leaf
}

func newLeaf[TK jungledb.Ordered, TV any]() *node[TK, TV] {
	return &node[TK, TV]{leaf: true}
}

func newInternal[TK jungledb.Ordered, TV any]() *node[TK, TV] {
	return &node[TK, TV]{leaf: false}
}

func (n *node[TK, TV]) isFull(order int) bool {
	return len(n.keys) >= order
}

// childIndex returns the index of child c among n's children, or -1.
func (n *node[TK, TV]) childIndex(c *node[TK, TV]) int {
	for i, ch := range n.children {
		if ch == c {
			return i
		}
	}
	return -1
}
