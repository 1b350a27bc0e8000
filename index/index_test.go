package index

import (
	"testing"

	"github.com/sharedcode/jungledb"
)

type person struct {
	Email string
	Tags  []string
}

func TestUniqueIndexRejectsDuplicate(t *testing.T) {
	ix := NewInMemoryIndex(jungledb.IndexOptions{
		Name:    "by_email",
		KeyPath: jungledb.KeyPathOf("Email"),
		Unique:  true,
	}, 4)

	if err := ix.Put(1, person{Email: "a@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ix.Put(2, person{Email: "a@example.com"}); !jungledb.IsCode(err, jungledb.UniquenessViolation) {
		t.Fatalf("expected UniquenessViolation, got %v", err)
	}
	// re-putting the same primary key under the same value is not a conflict.
	if err := ix.Put(1, person{Email: "a@example.com"}); err != nil {
		t.Fatalf("re-put of same primary key should succeed: %v", err)
	}
}

func TestMultiEntryIndexFansOutTags(t *testing.T) {
	ix := NewInMemoryIndex(jungledb.IndexOptions{
		Name:       "by_tag",
		KeyPath:    jungledb.KeyPathOf("Tags"),
		MultiEntry: true,
	}, 4)

	if err := ix.Put(1, person{Tags: []string{"go", "db"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ix.Put(2, person{Tags: []string{"db"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	pks := ix.PrimaryKeys("db")
	if len(pks) != 2 {
		t.Fatalf("got %d primary keys for 'db', want 2", len(pks))
	}
	pks = ix.PrimaryKeys("go")
	if len(pks) != 1 || pks[0] != 1 {
		t.Fatalf("got %v for 'go', want [1]", pks)
	}
}

func TestIndexRemove(t *testing.T) {
	ix := NewInMemoryIndex(jungledb.IndexOptions{
		Name:    "by_email",
		KeyPath: jungledb.KeyPathOf("Email"),
	}, 4)
	ix.Put(1, person{Email: "a@example.com"})
	ix.Remove(1, person{Email: "a@example.com"})
	if pks := ix.PrimaryKeys("a@example.com"); len(pks) != 0 {
		t.Fatalf("expected no bindings after remove, got %v", pks)
	}
}

func TestTransactionIndexOwnWritesVisible(t *testing.T) {
	parent := NewInMemoryIndex(jungledb.IndexOptions{
		Name:    "by_email",
		KeyPath: jungledb.KeyPathOf("Email"),
		Unique:  true,
	}, 4)
	if err := parent.Put(1, person{Email: "x@example.com"}); err != nil {
		t.Fatalf("parent put: %v", err)
	}

	tx := NewTransactionIndex(parent)
	if err := tx.Put(2, person{Email: "y@example.com"}); err != nil {
		t.Fatalf("tx put: %v", err)
	}
	if pks := tx.PrimaryKeys("y@example.com"); len(pks) != 1 || pks[0] != 2 {
		t.Fatalf("tx's own write should be visible to itself, got %v", pks)
	}
	if pks := parent.PrimaryKeys("y@example.com"); len(pks) != 0 {
		t.Fatalf("uncommitted tx write leaked into parent: %v", pks)
	}

	if err := tx.Put(3, person{Email: "x@example.com"}); !jungledb.IsCode(err, jungledb.UniquenessViolation) {
		t.Fatalf("expected UniquenessViolation against parent's committed binding, got %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if pks := parent.PrimaryKeys("y@example.com"); len(pks) != 1 || pks[0] != 2 {
		t.Fatalf("commit should have flushed tx write into parent, got %v", pks)
	}
}

func TestTransactionIndexAbortDiscardsWrites(t *testing.T) {
	parent := NewInMemoryIndex(jungledb.IndexOptions{
		Name:    "by_email",
		KeyPath: jungledb.KeyPathOf("Email"),
	}, 4)
	tx := NewTransactionIndex(parent)
	tx.Put(1, person{Email: "a@example.com"})
	tx.Abort()
	if pks := parent.PrimaryKeys("a@example.com"); len(pks) != 0 {
		t.Fatalf("aborted tx write leaked into parent: %v", pks)
	}
}

func TestTransactionIndexRemoveHidesParentBinding(t *testing.T) {
	parent := NewInMemoryIndex(jungledb.IndexOptions{
		Name:    "by_email",
		KeyPath: jungledb.KeyPathOf("Email"),
	}, 4)
	parent.Put(1, person{Email: "a@example.com"})

	tx := NewTransactionIndex(parent)
	tx.Remove(1, person{Email: "a@example.com"})
	if pks := tx.PrimaryKeys("a@example.com"); len(pks) != 0 {
		t.Fatalf("tx should no longer see removed binding, got %v", pks)
	}
	if pks := parent.PrimaryKeys("a@example.com"); len(pks) != 1 {
		t.Fatalf("parent should be unaffected before commit, got %v", pks)
	}
	tx.Commit()
	if pks := parent.PrimaryKeys("a@example.com"); len(pks) != 0 {
		t.Fatalf("commit should have applied the removal, got %v", pks)
	}
}
