package catalog

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is; the HTTP layer maps each kind to a
// status code.
var (
	// Caller input is malformed.
	ErrInvalidGeometry   = errors.New("invalid geometry")
	ErrInvalidProperties = errors.New("invalid properties")

	// Requested id does not exist.
	ErrNotFound = errors.New("site not found")

	// Stored data cannot be parsed.
	ErrCorruptGeometry   = errors.New("corrupt stored geometry")
	ErrCorruptProperties = errors.New("corrupt stored properties")

	// The store is unreachable, or rejected the statement.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorageError       = errors.New("storage error")
)

// Error carries an error kind together with the operation that failed and
// the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("catalog: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("catalog: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// IsInputError reports whether err was caused by malformed caller input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidGeometry) || errors.Is(err, ErrInvalidProperties)
}
