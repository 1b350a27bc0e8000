package btree

import (
	"math/rand"
	"testing"

	"github.com/sharedcode/jungledb"
)

func newTestTree(order int) *Btree[int, string] {
	return New[int, string](order, nil)
}

func TestAddAndFind(t *testing.T) {
	b := newTestTree(4)
	if !b.Add(2, "b") {
		t.Fatal("add 2")
	}
	if !b.Add(1, "a") {
		t.Fatal("add 1")
	}
	if !b.Add(3, "c") {
		t.Fatal("add 3")
	}
	if b.Add(2, "dup") {
		t.Fatal("expected duplicate add to fail")
	}
	if !b.Find(2, jungledb.ExactMatch) {
		t.Fatal("find 2")
	}
	if got := b.GetCurrentValue(); got != "b" {
		t.Fatalf("got %q, want b", got)
	}
	if b.Count() != 3 {
		t.Fatalf("count = %d, want 3", b.Count())
	}
}

func TestOrderedTraversal(t *testing.T) {
	b := newTestTree(4)
	vals := []int{5, 3, 8, 1, 9, 2, 7, 4, 6}
	for _, v := range vals {
		if !b.Add(v, "") {
			t.Fatalf("add %d", v)
		}
	}
	var got []int
	for ok := b.First(); ok; ok = b.Next() {
		got = append(got, b.GetCurrentKey())
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("not ascending at %d: %v", i, got)
		}
	}
	if len(got) != len(vals) {
		t.Fatalf("got %d items, want %d", len(got), len(vals))
	}

	got = got[:0]
	for ok := b.Last(); ok; ok = b.Previous() {
		got = append(got, b.GetCurrentKey())
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] <= got[i] {
			t.Fatalf("not descending at %d: %v", i, got)
		}
	}
}

func TestFindNear(t *testing.T) {
	b := newTestTree(4)
	for _, v := range []int{10, 20, 30, 40} {
		b.Add(v, "")
	}
	if !b.Find(25, jungledb.GreaterOrEqual) || b.GetCurrentKey() != 30 {
		t.Fatalf("GE(25) should land on 30")
	}
	if !b.Find(25, jungledb.LessOrEqual) || b.GetCurrentKey() != 20 {
		t.Fatalf("LE(25) should land on 20")
	}
	if b.Find(25, jungledb.ExactMatch) {
		t.Fatal("exact match on absent key should fail")
	}
	if !b.Find(50, jungledb.LessOrEqual) || b.GetCurrentKey() != 40 {
		t.Fatal("LE(50) should land on 40")
	}
	if b.Find(50, jungledb.GreaterOrEqual) {
		t.Fatal("GE(50) should have no match")
	}
}

func TestRemoveAllEmptiesTree(t *testing.T) {
	b := newTestTree(4)
	n := 200
	present := map[int]bool{}
	for i := 0; i < n; i++ {
		k := rand.Intn(n * 2)
		if b.Add(k, "") {
			present[k] = true
		}
	}
	for k := range present {
		if !b.Remove(k) {
			t.Fatalf("remove %d should have succeeded", k)
		}
	}
	if b.Count() != 0 {
		t.Fatalf("count = %d, want 0 after removing everything added", b.Count())
	}
	if b.First() {
		t.Fatal("tree should be empty")
	}
}

func TestRemoveCurrentItemAdvancesCursor(t *testing.T) {
	b := newTestTree(4)
	for _, v := range []int{1, 2, 3, 4, 5} {
		b.Add(v, "")
	}
	b.Find(3, jungledb.ExactMatch)
	if !b.RemoveCurrentItem() {
		t.Fatal("remove current item")
	}
	if b.GetCurrentKey() != 4 {
		t.Fatalf("cursor should advance to 4, got %d", b.GetCurrentKey())
	}
	if b.Count() != 4 {
		t.Fatalf("count = %d, want 4", b.Count())
	}
}

func TestUpsertAndUpdate(t *testing.T) {
	b := newTestTree(4)
	b.Upsert(1, "a")
	b.Upsert(1, "b")
	if b.Count() != 1 {
		t.Fatalf("count = %d, want 1", b.Count())
	}
	b.Find(1, jungledb.ExactMatch)
	if got := b.GetCurrentValue(); got != "b" {
		t.Fatalf("got %q, want b", got)
	}
	if !b.Update(1, "c") {
		t.Fatal("update existing key")
	}
	if b.Update(99, "x") {
		t.Fatal("update of absent key should fail")
	}
}

func TestSkipAndKeynum(t *testing.T) {
	b := newTestTree(4)
	for i := 0; i < 10; i++ {
		b.Add(i, "")
	}
	b.First()
	if !b.Skip(5) || b.GetCurrentKey() != 5 {
		t.Fatalf("skip(5) should land on 5, got %d", b.GetCurrentKey())
	}
	if n, ok := b.Keynum(); !ok || n != 5 {
		t.Fatalf("keynum = %d, want 5", n)
	}
}

func TestRangeRespectsBounds(t *testing.T) {
	b := newTestTree(4)
	for i := 0; i < 20; i++ {
		b.Add(i, "")
	}
	lo, hi := 5, 10
	var got []int
	b.Range(&lo, &hi, func(k int, v string) bool {
		got = append(got, k)
		return true
	})
	if len(got) != 6 {
		t.Fatalf("got %d keys, want 6 (5..10 inclusive)", len(got))
	}
	if got[0] != 5 || got[len(got)-1] != 10 {
		t.Fatalf("unexpected range bounds: %v", got)
	}
}

func TestPackPreservesContents(t *testing.T) {
	b := newTestTree(4)
	for i := 0; i < 50; i++ {
		b.Add(i, "")
	}
	for i := 0; i < 50; i += 3 {
		b.Remove(i)
	}
	beforeKeys, _ := b.Dump()
	b.Pack()
	afterKeys, _ := b.Dump()
	if len(beforeKeys) != len(afterKeys) {
		t.Fatalf("pack changed item count: %d vs %d", len(beforeKeys), len(afterKeys))
	}
	for i := range beforeKeys {
		if beforeKeys[i] != afterKeys[i] {
			t.Fatalf("pack changed ordering at %d", i)
		}
	}
}

func TestLoadBulk(t *testing.T) {
	keys := make([]int, 100)
	values := make([]string, 100)
	for i := range keys {
		keys[i] = i
		values[i] = ""
	}
	b := newTestTree(4)
	b.Load(keys, values)
	if b.Count() != 100 {
		t.Fatalf("count = %d, want 100", b.Count())
	}
	if !b.Find(42, jungledb.ExactMatch) {
		t.Fatal("find 42 after bulk load")
	}
}

func TestTruncate(t *testing.T) {
	b := newTestTree(4)
	for i := 0; i < 10; i++ {
		b.Add(i, "")
	}
	b.Truncate()
	if b.Count() != 0 {
		t.Fatalf("count = %d, want 0", b.Count())
	}
	if b.First() {
		t.Fatal("tree should be empty after truncate")
	}
}
