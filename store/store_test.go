package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedcode/jungledb"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	return Open("scenario-db", jungledb.DatabaseOptions{}, nil)
}

func mustCreateStore(t *testing.T, db *Database, opts jungledb.ObjectStoreOptions) *ObjectStore {
	t.Helper()
	os, err := db.CreateObjectStore(opts)
	require.NoError(t, err)
	return os
}

// Scenario 1: two transactions race to put the same key; whichever commits
// first wins, and the second is rejected with ConflictFailure because the
// object store's head state moved out from under it.
func TestSingleCommitterWins(t *testing.T) {
	db := newTestDB(t)
	widgets := mustCreateStore(t, db, jungledb.ObjectStoreOptions{Name: "widgets"})
	ctx := context.Background()

	t1 := db.Transaction()
	t2 := db.Transaction()

	require.NoError(t, t1.Put(ctx, "widgets", "key1", "from-t1"))
	require.NoError(t, t2.Put(ctx, "widgets", "key1", "from-t2"))

	require.NoError(t, t1.Commit(ctx))
	err := t2.Commit(ctx)
	require.Error(t, err)
	assert.True(t, jungledb.IsCode(err, jungledb.ConflictFailure))
	assert.Equal(t, Conflicted, t2.State())

	t3 := db.Transaction()
	v, found, err := t3.Get(ctx, "widgets", "key1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "from-t1", v)
	t3.Rollback()

	// t2 losing the race must not pin widgets' openDependents forever: once
	// it closes (here, by the conflicted Commit itself), nothing should be
	// left holding the flush back, and t1's committed write should have
	// reached the backend.
	assert.Zero(t, widgets.pendingStateCount(), "flush should not be blocked by the conflicted loser")
	bv, bfound, err := widgets.backend.Get(ctx, "key1")
	require.NoError(t, err)
	require.True(t, bfound)
	assert.Equal(t, "from-t1", bv)
}

// Scenario 2: a nested transaction's writes are invisible outside it until
// it commits, at which point they merge into the parent; aborting the
// nested transaction leaves the parent untouched.
func TestNestedTransaction(t *testing.T) {
	db := newTestDB(t)
	mustCreateStore(t, db, jungledb.ObjectStoreOptions{Name: "widgets"})
	ctx := context.Background()

	root := db.Transaction()
	require.NoError(t, root.Put(ctx, "widgets", "a", 1))

	child, err := root.BeginNested()
	require.NoError(t, err)
	require.NoError(t, child.Put(ctx, "widgets", "b", 2))

	_, found, _ := root.Get(ctx, "widgets", "b")
	assert.False(t, found, "parent should not see child's uncommitted write")

	require.NoError(t, child.Commit(ctx))

	v, found, _ := root.Get(ctx, "widgets", "b")
	require.True(t, found)
	assert.Equal(t, 2, v)

	require.NoError(t, root.Commit(ctx))

	t2 := db.Transaction()
	for key, want := range map[string]any{"a": 1, "b": 2} {
		v, found, _ := t2.Get(ctx, "widgets", key)
		require.True(t, found, "key %q", key)
		assert.Equal(t, want, v)
	}
}

func TestNestedTransactionAbortDoesNotAffectParent(t *testing.T) {
	db := newTestDB(t)
	mustCreateStore(t, db, jungledb.ObjectStoreOptions{Name: "widgets"})
	ctx := context.Background()

	root := db.Transaction()
	require.NoError(t, root.Put(ctx, "widgets", "a", 1))

	child, err := root.BeginNested()
	require.NoError(t, err)
	require.NoError(t, child.Put(ctx, "widgets", "b", 2))

	child.Rollback()
	assert.Equal(t, Open, root.State())

	_, found, _ := root.Get(ctx, "widgets", "b")
	assert.False(t, found, "aborted child's write should not be visible to parent")

	require.NoError(t, root.Commit(ctx))
}

// Scenario 3: a combined transaction spanning two object stores commits
// atomically; both stores' writes become visible together.
func TestCombinedCommitAtomic(t *testing.T) {
	db := newTestDB(t)
	mustCreateStore(t, db, jungledb.ObjectStoreOptions{Name: "accounts"})
	mustCreateStore(t, db, jungledb.ObjectStoreOptions{Name: "ledger"})
	ctx := context.Background()

	tAccounts := db.Transaction()
	tLedger := db.Transaction()
	require.NoError(t, tAccounts.Put(ctx, "accounts", "acct1", 100))
	require.NoError(t, tLedger.Put(ctx, "ledger", "entry1", "debit acct1 100"))

	require.NoError(t, CommitCombined(ctx, tAccounts, tLedger))
	assert.Equal(t, Committed, tAccounts.State())
	assert.Equal(t, Committed, tLedger.State())

	t2 := db.Transaction()
	v, found, _ := t2.Get(ctx, "accounts", "acct1")
	require.True(t, found)
	assert.Equal(t, 100, v)
	v, found, _ = t2.Get(ctx, "ledger", "entry1")
	require.True(t, found)
	assert.Equal(t, "debit acct1 100", v)
}

// Scenario 4: a combined commit's logical effect (state pushed, visible to
// new readers, members Committed) happens immediately, but physical flush
// to each store's backend is held back until older, unrelated dependent
// transactions release their hold; flush then proceeds once they close.
func TestCombinedFlushBlockedByOlderDependent(t *testing.T) {
	db := newTestDB(t)
	accounts := mustCreateStore(t, db, jungledb.ObjectStoreOptions{Name: "accounts"})
	ledger := mustCreateStore(t, db, jungledb.ObjectStoreOptions{Name: "ledger"})
	ctx := context.Background()

	seedAccounts := db.Transaction()
	require.NoError(t, seedAccounts.Put(ctx, "accounts", "seed", 0))
	require.NoError(t, seedAccounts.Commit(ctx))

	seedLedger := db.Transaction()
	require.NoError(t, seedLedger.Put(ctx, "ledger", "seed", 0))
	require.NoError(t, seedLedger.Commit(ctx))

	older1 := db.Transaction()
	_, _, err := older1.Get(ctx, "accounts", "seed")
	require.NoError(t, err)
	older2 := db.Transaction()
	_, _, err = older2.Get(ctx, "ledger", "seed")
	require.NoError(t, err)

	tAccounts := db.Transaction()
	tLedger := db.Transaction()
	require.NoError(t, tAccounts.Remove(ctx, "accounts", "seed"))
	require.NoError(t, tLedger.Remove(ctx, "ledger", "seed"))
	require.NoError(t, CommitCombined(ctx, tAccounts, tLedger))

	assert.Equal(t, Committed, tAccounts.State())
	assert.Equal(t, Committed, tLedger.State())
	assert.NotZero(t, accounts.pendingStateCount(), "flush should be held back by older1")
	assert.NotZero(t, ledger.pendingStateCount(), "flush should be held back by older2")

	fresh := db.Transaction()
	_, found, _ := fresh.Get(ctx, "accounts", "seed")
	assert.False(t, found, "new transaction should already see the combined removal")
	fresh.Rollback()

	older1.Rollback()
	older2.Rollback()

	assert.Zero(t, accounts.pendingStateCount(), "flush should drain once older1 releases")
	assert.Zero(t, ledger.pendingStateCount(), "flush should drain once older2 releases")
}

// Scenario 5: a unique secondary index rejects a second primary key bound
// to an indexed value already bound to a different primary key.
func TestUniqueIndexRejectsDuplicateViaTransaction(t *testing.T) {
	type user struct {
		Email string
	}
	db := newTestDB(t)
	mustCreateStore(t, db, jungledb.ObjectStoreOptions{
		Name: "users",
		Indices: []jungledb.IndexOptions{
			{Name: "by_email", KeyPath: jungledb.KeyPathOf("Email"), Unique: true},
		},
	})
	ctx := context.Background()

	tx := db.Transaction()
	require.NoError(t, tx.Put(ctx, "users", "u1", user{Email: "a@example.com"}))
	err := tx.Put(ctx, "users", "u2", user{Email: "a@example.com"})
	require.Error(t, err)
	assert.True(t, jungledb.IsCode(err, jungledb.UniquenessViolation))
}

// Scenario 6: a multi-entry secondary index fans a tag-list attribute out
// into one binding per tag, all resolving back to the same primary key.
func TestMultiEntryIndexFansOutViaTransaction(t *testing.T) {
	type article struct {
		Tags []string
	}
	db := newTestDB(t)
	mustCreateStore(t, db, jungledb.ObjectStoreOptions{
		Name: "articles",
		Indices: []jungledb.IndexOptions{
			{Name: "by_tag", KeyPath: jungledb.KeyPathOf("Tags"), MultiEntry: true},
		},
	})
	ctx := context.Background()

	tx := db.Transaction()
	require.NoError(t, tx.Put(ctx, "articles", "art1", article{Tags: []string{"go", "db"}}))
	require.NoError(t, tx.Commit(ctx))

	t2 := db.Transaction()
	idx, err := t2.Index("articles", "by_tag")
	require.NoError(t, err)
	for _, tag := range []string{"go", "db"} {
		keys := idx.PrimaryKeys(tag)
		assert.Equal(t, []any{"art1"}, keys, "tag %q", tag)
	}
}

func TestRangeReadsComposeOverlayAndBackend(t *testing.T) {
	db := newTestDB(t)
	mustCreateStore(t, db, jungledb.ObjectStoreOptions{Name: "widgets"})
	ctx := context.Background()

	seed := db.Transaction()
	for i, k := range []string{"a", "b", "c"} {
		require.NoError(t, seed.Put(ctx, "widgets", k, i))
	}
	require.NoError(t, seed.Commit(ctx))

	tx := db.Transaction()
	require.NoError(t, tx.Put(ctx, "widgets", "d", 3))
	require.NoError(t, tx.Remove(ctx, "widgets", "b"))

	keys, err := tx.Keys(ctx, "widgets", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "c", "d"}, keys)

	count, err := tx.Count(ctx, "widgets", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	minKey, found, err := tx.MinKey(ctx, "widgets", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", minKey)

	maxKey, found, err := tx.MaxKey(ctx, "widgets", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "d", maxKey)
}
