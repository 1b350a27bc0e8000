package jungledb

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// UUID is a thin wrapper over github.com/google/uuid.UUID so callers of this
// module never need to import the third-party package directly.
type UUID uuid.UUID

// NilUUID is the zero-value UUID, used to mean "no node"/"no state".
var NilUUID UUID

// NewUUID returns a new randomly generated UUID. Generation is effectively
// infallible on any supported platform, but we retry a handful of times with
// a short backoff before giving up, mirroring how the engine treats id
// generation as a must-succeed operation.
func NewUUID() UUID {
	var err error
	for i := 0; i < 10; i++ {
		var id uuid.UUID
		id, err = uuid.NewRandom()
		if err == nil {
			return UUID(id)
		}
		time.Sleep(time.Millisecond)
	}
	panic(err)
}

// ParseUUID parses the canonical string form of a UUID.
func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	return UUID(u), err
}

// IsNil reports whether id is the zero-value UUID.
func (id UUID) IsNil() bool {
	return bytes.Equal(id[:], NilUUID[:])
}

// String returns the canonical string representation of id.
func (id UUID) String() string {
	return uuid.UUID(id).String()
}

// Compare returns -1, 0 or 1 depending on whether x sorts before, equal to,
// or after y in byte-lexicographic order.
func (x UUID) Compare(y UUID) int {
	return bytes.Compare(x[:], y[:])
}
