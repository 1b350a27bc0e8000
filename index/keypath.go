// Package index implements secondary indices over an object store's values:
// an InMemoryIndex mapping extracted key-path values to sets of primary
// keys, and a TransactionIndex overlay giving each transaction a
// snapshot-isolated view of an index without mutating it until commit.
package index

import (
	"fmt"
	"reflect"

	"github.com/sharedcode/jungledb"
)

// ExtractKeyPath walks value following path, one struct field (or map key)
// per element, and returns the leaf value. It supports struct field access
// by name (via reflection) and map[string]any-style lookups, which covers
// both Go struct values and the generic decoded-document values a Backend
// might hand back.
func ExtractKeyPath(value any, path []string) (any, bool) {
	cur := reflect.ValueOf(value)
	for _, field := range path {
		for cur.Kind() == reflect.Ptr || cur.Kind() == reflect.Interface {
			if cur.IsNil() {
				return nil, false
			}
			cur = cur.Elem()
		}
		switch cur.Kind() {
		case reflect.Struct:
			f := cur.FieldByName(field)
			if !f.IsValid() {
				return nil, false
			}
			cur = f
		case reflect.Map:
			v := cur.MapIndex(reflect.ValueOf(field))
			if !v.IsValid() {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	if !cur.IsValid() {
		return nil, false
	}
	return cur.Interface(), true
}

// ExtractMultiEntryKeys returns one key per element of the key-path value
// when it's a slice or array (multiEntry indexing), or a single-element
// slice containing the plain value otherwise.
func ExtractMultiEntryKeys(value any, path []string) ([]any, bool) {
	v, ok := ExtractKeyPath(value, path)
	if !ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}, true
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func errUniqueViolation(indexName string, key any) error {
	return jungledb.NewError(jungledb.UniquenessViolation,
		fmt.Errorf("index %q: key %v already bound to a different primary key", indexName, key), key)
}
