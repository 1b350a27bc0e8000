package cache

// mru tracks recency order for a cache's keys and evicts from the tail
// (least recently used) once the cache exceeds maxCapacity.
type mru[TK comparable, TV any] struct {
	maxCapacity int
	dll         *doublyLinkedList[TK]
	owner       *mruCache[TK, TV]
}

func newMru[TK comparable, TV any](owner *mruCache[TK, TV], maxCapacity int) *mru[TK, TV] {
	return &mru[TK, TV]{
		owner:       owner,
		maxCapacity: maxCapacity,
		dll:         newDoublyLinkedList[TK](),
	}
}

func (m *mru[TK, TV]) add(key TK) *node[TK] {
	return m.dll.addToHead(key)
}

func (m *mru[TK, TV]) remove(n *node[TK]) {
	m.dll.delete(n)
}

func (m *mru[TK, TV]) isFull() bool {
	return m.dll.count() > m.maxCapacity
}

func (m *mru[TK, TV]) evict() {
	for m.isFull() {
		key, ok := m.dll.deleteFromTail()
		if !ok {
			return
		}
		if e, found := m.owner.lookup[key]; found {
			e.dllNode = nil
			delete(m.owner.lookup, key)
		}
	}
}
