package jungledb

import "context"

// Backend is the persistent or in-memory storage collaborator consumed by
// the core (spec §6.1). Implementations outside this module provide LMDB,
// LevelDB, or IndexedDB-backed stores; this module ships only the in-memory
// default (see the store package's memoryBackend).
type Backend interface {
	Get(ctx context.Context, key any) (value any, found bool, err error)
	Put(ctx context.Context, key, value any) error
	Remove(ctx context.Context, key any) error

	Keys(ctx context.Context, r *KeyRange) ([]any, error)
	Values(ctx context.Context, r *KeyRange) ([]any, error)

	// KeyStream/ValueStream scan in the requested direction, invoking cb for
	// each entry in strictly ascending or descending key order; scanning
	// stops at the first callback returning false.
	KeyStream(ctx context.Context, cb func(key any) bool, ascending bool, r *KeyRange) error
	ValueStream(ctx context.Context, cb func(key, value any) bool, ascending bool, r *KeyRange) error

	MinKey(ctx context.Context, r *KeyRange) (key any, found bool, err error)
	MaxKey(ctx context.Context, r *KeyRange) (key any, found bool, err error)
	MinValue(ctx context.Context, r *KeyRange) (value any, found bool, err error)
	MaxValue(ctx context.Context, r *KeyRange) (value any, found bool, err error)
	Count(ctx context.Context, r *KeyRange) (int64, error)

	Truncate(ctx context.Context) error

	// ApplyCombined prepares tx's committed mutations for atomic application
	// as part of a combined-transaction flush. It returns either a native
	// batch payload (opaque to the core; handed to the underlying storage
	// engine's batch-write API by the concrete Backend) or a deferred
	// closure (typical of in-memory backends, which have no native batch
	// concept and simply apply the mutation when invoked).
	ApplyCombined(ctx context.Context, tx CombinedMember) (CombinedApply, error)

	// IsSynchronous reports whether this Backend's reads never suspend,
	// which enables preload-caching transaction strategies upstream.
	IsSynchronous() bool
}

// CombinedMember is the minimal view of a committed root transaction that a
// Backend needs in order to build its combined-flush payload: the set of
// puts, removals, and whether the store was truncated.
type CombinedMember interface {
	CombinedPuts() map[any]any
	CombinedRemovals() []any
	CombinedTruncated() bool
}

// CombinedApply is what Backend.ApplyCombined hands back to the combined
// transaction coordinator. Exactly one of Payload or Deferred is set:
// persistent backends set Payload (a native batch write request to be
// merged with sibling payloads into one underlying batch write); in-memory
// backends set Deferred (invoked directly once every member is ready).
type CombinedApply struct {
	Payload  any
	Deferred func(ctx context.Context) error
}
