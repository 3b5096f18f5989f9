// Package consistency writes service metadata to the authoritative store and
// the search index as a two-step saga.
//
// The authoritative store is always written first. A failure there aborts
// the operation before the index is touched. A failure on the index after a
// successful store write is reported as ErrInconsistentWrite, counted, and
// published as an events.InconsistencyEvent. Nothing is rolled back.
package consistency
