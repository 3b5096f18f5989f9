package identifier

import (
	"context"
	"errors"
)

// Source records which strategy produced an identifier.
type Source string

const (
	// SourceRemoteIssued marks identifiers issued by the uuid service.
	SourceRemoteIssued Source = "remote_issued"
	// SourceLocallyGenerated marks degraded identifiers built in-process.
	SourceLocallyGenerated Source = "locally_generated"
)

// Common errors returned by issuers.
var (
	ErrIssuerUnavailable = errors.New("identifier issuer unavailable")
	ErrEmptyResponse     = errors.New("identifier issuer returned no identifiers")
	ErrInvalidCount      = errors.New("identifier count must be at least 1")
)

// ID is an identifier value tagged with its source.
type ID struct {
	Value  string `json:"value"`
	Source Source `json:"source"`
}

// String returns the identifier value.
func (id ID) String() string {
	return id.Value
}

// Degraded reports whether the identifier was generated locally.
func (id ID) Degraded() bool {
	return id.Source == SourceLocallyGenerated
}

// Issuer produces raw identifier values.
type Issuer interface {
	// Issue returns up to count identifiers. Implementations may return
	// fewer than requested; an empty result must be reported as an error.
	Issue(ctx context.Context, count int) ([]string, error)
}
