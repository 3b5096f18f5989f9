// Package events carries notifications about partial writes between the
// authoritative store and the search index.
//
// The consistency coordinator emits an InconsistencyEvent whenever service
// metadata reached the authoritative store but not the index. Handlers
// registered on an EventEmitter decide how reconciliation happens; the
// service itself only logs the event.
package events
