package jungledb

import "fmt"

// ErrorCode enumerates the structural error categories a caller of this
// module may need to branch on. A missing key is never represented as an
// ErrorCode; it is a plain false return. A lost commit race does have a
// code: Commit and CommitCombined report it as an *Error with code
// ConflictFailure, not through a boolean result.
type ErrorCode int

const (
	// Unknown is the zero value, an unclassified error.
	Unknown ErrorCode = iota
	// IllegalState marks an operation attempted on a transaction in the
	// wrong state (write on a terminated transaction, nested commit
	// performed somewhere it isn't allowed, and similar).
	IllegalState
	// ConflictFailure marks a commit rejected because a sibling transaction
	// already committed against the same parent state. Transaction.Commit
	// and CommitCombined return it as their error; they have no boolean
	// result.
	ConflictFailure
	// UniquenessViolation is raised by a unique index when a put would bind
	// a second primary key to an already-occupied indexed key.
	UniquenessViolation
	// InvalidArguments marks a combined-transaction construction that
	// violates its membership rules (duplicate store, non-open member,
	// cross-database member, nested member).
	InvalidArguments
	// WatchdogExpiry marks a commit that ran past its configured watchdog
	// threshold. Logged only; never returned to a caller as a hard failure.
	WatchdogExpiry
	// BackendFailure wraps an error surfaced by the pluggable Backend.
	BackendFailure
)

func (c ErrorCode) String() string {
	switch c {
	case IllegalState:
		return "illegal state"
	case ConflictFailure:
		return "conflict failure"
	case UniquenessViolation:
		return "uniqueness violation"
	case InvalidArguments:
		return "invalid arguments"
	case WatchdogExpiry:
		return "watchdog expiry"
	case BackendFailure:
		return "backend failure"
	default:
		return "unknown"
	}
}

// Error is the structural error type returned by this module's packages. It
// carries a code for programmatic branching, an optional wrapped cause, and
// optional context data (e.g. the offending key).
type Error struct {
	Code    ErrorCode
	Err     error
	Context any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("jungledb: %s", e.Code)
	}
	return fmt.Sprintf("jungledb: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error for the given code, optionally wrapping cause
// and attaching context (e.g. the key that triggered the error).
func NewError(code ErrorCode, cause error, context any) *Error {
	return &Error{Code: code, Err: cause, Context: context}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Code == code
}
