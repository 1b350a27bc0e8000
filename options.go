package jungledb

import "time"

// IndexOptions declares a secondary index on an object store (spec §6.2).
type IndexOptions struct {
	// Name is the index name, unique within its object store.
	Name string
	// KeyPath is the field name, or ordered list of nested field names,
	// used to extract the indexed attribute from a stored value.
	KeyPath []string
	// MultiEntry splits an iterable attribute value into one binding per
	// element instead of treating the whole attribute as a single key.
	MultiEntry bool
	// Unique enforces at most one primary key per indexed key.
	Unique bool
	// KeyEncoding optionally names the byte/ordering encoding used for the
	// extracted indexed key (e.g. "lexicographic", "numeric"). This module
	// stores it but does not read it; indexed keys are ordered by Compare,
	// which infers ordering from the Go type of the extracted value.
	KeyEncoding string
	// UpgradeCondition takes (oldVersion, newVersion). It is kept with the
	// index options; nothing in this module calls it, and indices are not
	// rebuilt on a version change.
	UpgradeCondition func(oldVersion, newVersion int) bool
}

// KeyPathOf is a convenience constructor for a single-field key path.
func KeyPathOf(field string) []string {
	return []string{field}
}

// ObjectStoreOptions configures an object store at creation time (spec
// §6.3's createObjectStore).
type ObjectStoreOptions struct {
	// Name is the object store's name, unique within the database.
	Name string
	// Indices declares the store's secondary indices.
	Indices []IndexOptions
	// Persistent selects whether the store is backed by the pluggable
	// Backend (true) or is purely in-memory for the process lifetime
	// (false). This module implements the in-memory case directly and
	// treats Persistent stores as using whatever Backend the Database was
	// opened with.
	Persistent bool
	// UpgradeCondition takes (oldVersion, newVersion). It is kept with the
	// store options; nothing in this module calls it, and there is no
	// upgrade pass.
	UpgradeCondition func(oldVersion, newVersion int) bool
	// EnableLRUCache fronts the store's Backend reads with a read-through
	// LRU cache (see the cache package). Only meaningful when Persistent.
	EnableLRUCache bool
	// BTreeOrder is the B+Tree order (o >= 3) used for this store's primary
	// index and for every InMemoryIndex realizing one of its secondary
	// indices. Defaults to 8 when below 3.
	BTreeOrder int
	// Comparer optionally overrides the default key ordering (see
	// ComparerFunc) for this store's primary key.
	Comparer func(a, b any) int
}

const defaultBTreeOrder = 8

// Normalize returns a copy of o with defaults applied.
func (o ObjectStoreOptions) Normalize() ObjectStoreOptions {
	if o.BTreeOrder < 3 {
		o.BTreeOrder = defaultBTreeOrder
	}
	return o
}

// WatchdogConfig bounds how long a transaction commit may run before the
// watchdog logs a warning (spec §4.4: "the runtime logs a warning and
// continues (never aborts forcibly)").
type WatchdogConfig struct {
	// Threshold is the elapsed-time limit. Zero disables the watchdog.
	Threshold time.Duration
}

// DatabaseOptions configures a Database at Open time (spec §6.3).
type DatabaseOptions struct {
	// Version is the schema version requested for this open. Open stores
	// it; no persisted version is kept or compared against it.
	Version int
	// OnUpgradeNeeded takes (oldVersion, newVersion). Open stores it;
	// nothing in this module calls it.
	OnUpgradeNeeded func(oldVersion, newVersion int) error
	// MaxStores bounds how many object stores may be created; zero means
	// unbounded.
	MaxStores int
	// Watchdog is the commit watchdog applied to every root transaction's
	// Commit on this database. A transaction cannot override it.
	Watchdog WatchdogConfig
}

// DefaultWatchdogConfig is used when a DatabaseOptions leaves Watchdog at
// its zero value but the caller still wants commit-time diagnostics.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{Threshold: 15 * time.Minute}
}
