package jungledb

// Near enumerates how Find should position a cursor relative to a requested
// key when there is no exact match.
type Near int

const (
	// ExactMatch requires the cursor to land precisely on the requested key.
	ExactMatch Near = iota
	// GreaterOrEqual positions the cursor on the smallest key >= the
	// requested key.
	GreaterOrEqual
	// LessOrEqual positions the cursor on the largest key <= the requested
	// key.
	LessOrEqual
)

// KeyRange describes an interval over an ordered key space: an optional
// lower bound, an optional upper bound, independent open/closed flags for
// each bound, and a distinguished "exact" form used for point lookups inside
// range-shaped APIs (e.g. a secondary index lookup for one indexed value).
//
// A zero-value KeyRange (no bounds set) matches every key.
type KeyRange struct {
	Lower      any
	HasLower   bool
	LowerOpen  bool
	Upper      any
	HasUpper   bool
	UpperOpen  bool
	exact      any
	hasExact   bool
}

// Exact returns a KeyRange that matches exactly one key.
func Exact(key any) KeyRange {
	return KeyRange{exact: key, hasExact: true}
}

// Bound returns a KeyRange over [lower, upper] with the given bounds;
// either end may be omitted by passing hasLower/hasUpper as false, in which
// case the corresponding value argument is ignored.
func Bound(lower any, hasLower, lowerOpen bool, upper any, hasUpper, upperOpen bool) KeyRange {
	return KeyRange{
		Lower: lower, HasLower: hasLower, LowerOpen: lowerOpen,
		Upper: upper, HasUpper: hasUpper, UpperOpen: upperOpen,
	}
}

// LowerBound returns a KeyRange with only a lower bound.
func LowerBound(lower any, open bool) KeyRange {
	return KeyRange{Lower: lower, HasLower: true, LowerOpen: open}
}

// UpperBound returns a KeyRange with only an upper bound.
func UpperBound(upper any, open bool) KeyRange {
	return KeyRange{Upper: upper, HasUpper: true, UpperOpen: open}
}

// IsExact reports whether r was constructed via Exact.
func (r KeyRange) IsExact() bool {
	return r.hasExact
}

// ExactKey returns the key r.Exact was constructed with. It is only
// meaningful when IsExact() is true.
func (r KeyRange) ExactKey() any {
	return r.exact
}

// IsUnbounded reports whether r has no constraints at all (matches every
// key).
func (r KeyRange) IsUnbounded() bool {
	return !r.hasExact && !r.HasLower && !r.HasUpper
}

// Entry is one key/value pair returned by a range read.
type Entry struct {
	Key   any
	Value any
}

// Contains reports whether key falls within r, using compare to order key
// against r's bounds.
func (r KeyRange) Contains(key any, compare func(a, b any) int) bool {
	if r.hasExact {
		return compare(key, r.exact) == 0
	}
	if r.HasLower {
		c := compare(key, r.Lower)
		if c < 0 || (c == 0 && r.LowerOpen) {
			return false
		}
	}
	if r.HasUpper {
		c := compare(key, r.Upper)
		if c > 0 || (c == 0 && r.UpperOpen) {
			return false
		}
	}
	return true
}
