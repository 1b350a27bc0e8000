package jungledb

import (
	"cmp"
	"fmt"
	"time"
)

// Comparer is implemented by key types that know how to order themselves
// against another value of the same kind.
type Comparer interface {
	// Compare returns -1, 0 or 1 depending on whether this value sorts
	// before, equal to, or after other.
	Compare(other any) int
}

// ComparerFunc is an explicit comparison function supplied separately from
// the key type, for callers that don't want to implement Comparer on their
// key type (or can't, e.g. a primitive type with a non-default ordering).
type ComparerFunc[TK Ordered] func(a, b TK) int

// Ordered constrains the primary key types a B+Tree or object store can use.
// It permits the built-in ordered types, UUID, Comparer implementations, and
// any value handled by the generic Compare fallback. Comparer implementations
// are admitted through the any term, since a union cannot name an interface
// that has methods.
type Ordered interface {
	cmp.Ordered | UUID | any
}

// Compare compares two values of potentially differing concrete types,
// dispatching on the dynamic type of x. It understands the built-in ordered
// types, UUID, time.Time, and the Comparer interface, falling back to string
// comparison as a last resort so that Compare never panics.
func Compare(x, y any) int {
	switch xv := x.(type) {
	case int:
		yv, _ := y.(int)
		return cmp.Compare(xv, yv)
	case int8:
		yv, _ := y.(int8)
		return cmp.Compare(xv, yv)
	case int16:
		yv, _ := y.(int16)
		return cmp.Compare(xv, yv)
	case int32:
		yv, _ := y.(int32)
		return cmp.Compare(xv, yv)
	case int64:
		yv, _ := y.(int64)
		return cmp.Compare(xv, yv)
	case uint:
		yv, _ := y.(uint)
		return cmp.Compare(xv, yv)
	case uint8:
		yv, _ := y.(uint8)
		return cmp.Compare(xv, yv)
	case uint16:
		yv, _ := y.(uint16)
		return cmp.Compare(xv, yv)
	case uint32:
		yv, _ := y.(uint32)
		return cmp.Compare(xv, yv)
	case uint64:
		yv, _ := y.(uint64)
		return cmp.Compare(xv, yv)
	case float32:
		yv, _ := y.(float32)
		return cmp.Compare(xv, yv)
	case float64:
		yv, _ := y.(float64)
		return cmp.Compare(xv, yv)
	case string:
		yv, _ := y.(string)
		return cmp.Compare(xv, yv)
	case []byte:
		yv, _ := y.([]byte)
		return bytesCompare(xv, yv)
	case UUID:
		yv, _ := y.(UUID)
		return xv.Compare(yv)
	case time.Time:
		yv, _ := y.(time.Time)
		return xv.Compare(yv)
	default:
		if x == nil && y == nil {
			return 0
		}
		if x == nil {
			return -1
		}
		if y == nil {
			return 1
		}
		if cx, ok := x.(Comparer); ok {
			return cx.Compare(y)
		}
		return cmp.Compare(fmt.Sprintf("%v", x), fmt.Sprintf("%v", y))
	}
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return cmp.Compare(len(a), len(b))
}

// CoerceComparer returns the comparison function to use for keys shaped like
// sample. For the built-in ordered types, []byte, UUID and time.Time it
// returns Compare itself; for any other sample it returns a function that
// orders nil first, then defers to Comparer, then compares the values'
// string forms.
func CoerceComparer(sample any) func(x, y any) int {
	switch sample.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, string, []byte, UUID, time.Time:
		return Compare
	default:
		return func(x, y any) int {
			if x == nil && y == nil {
				return 0
			}
			if x == nil {
				return -1
			}
			if y == nil {
				return 1
			}
			if cx, ok := x.(Comparer); ok {
				return cx.Compare(y)
			}
			return cmp.Compare(fmt.Sprintf("%v", x), fmt.Sprintf("%v", y))
		}
	}
}
