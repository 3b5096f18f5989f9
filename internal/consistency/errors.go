package consistency

import (
	"errors"
	"fmt"
)

// ErrInconsistentWrite is returned when service metadata was persisted in the
// authoritative store but could not be written to the search index.
var ErrInconsistentWrite = errors.New("service metadata written to store but not to search index")

// Stages of a dual write.
const (
	StageAuthoritative = "authoritative_store"
	StageSearchIndex   = "search_index"
)

// WriteError describes a failed dual write.
type WriteError struct {
	// Operation is "upsert" or "update".
	Operation string
	// ServiceID is the id the write targeted. For an inconsistent upsert it is
	// the id that was persisted in the authoritative store.
	ServiceID string
	// Stage is the store that rejected the write.
	Stage string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	if e.Stage == StageSearchIndex {
		return fmt.Sprintf("%s of service %q: %v: %v", e.Operation, e.ServiceID, ErrInconsistentWrite, e.Err)
	}
	return fmt.Sprintf("%s of service %q failed at %s: %v", e.Operation, e.ServiceID, e.Stage, e.Err)
}

// Unwrap yields ErrInconsistentWrite for index failures so callers never
// confuse a partial write with a plain store error. Store failures unwrap
// to their cause.
func (e *WriteError) Unwrap() error {
	if e.Stage == StageSearchIndex {
		return ErrInconsistentWrite
	}
	return e.Err
}

// IsInconsistent reports whether err is a partial dual write.
func IsInconsistent(err error) bool {
	return errors.Is(err, ErrInconsistentWrite)
}
