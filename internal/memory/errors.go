package memory

import (
	"errors"
	"fmt"
)

// NotFoundError reports a query for an unknown id or concept. Queries return
// it instead of a bare sql.ErrNoRows so callers can recover it as an empty
// result.
type NotFoundError struct {
	Kind string // record family, e.g. "concept", "alert"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// DataIntegrityError reports a persisted record that violates a structural
// invariant on load. The record is excluded from the load; the rest of the
// load proceeds.
type DataIntegrityError struct {
	Record string // record family
	ID     string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in %s %s: %s", e.Record, e.ID, e.Reason)
}

// PersistenceError reports a storage failure during a mutation. The caller's
// in-memory state is rolled back before this is returned, so memory and
// durable state never diverge.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConcurrentMutationError reports that a record changed between read and
// write. It is retryable; the write is never applied over the newer state.
type ConcurrentMutationError struct {
	Record string
	ID     string
}

func (e *ConcurrentMutationError) Error() string {
	return fmt.Sprintf("concurrent mutation of %s %s (retryable)", e.Record, e.ID)
}
