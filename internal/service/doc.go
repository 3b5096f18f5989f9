// Package service contains the boundary operations of the task queue. It
// orchestrates the queue manager, the consistency coordinator and the
// metadata store to serve the delivery mechanisms in internal/api.
//
// Services receive their collaborators through constructor injection and
// never depend on a particular store implementation. Failures are returned
// as *QueueServiceError values that carry the operation and the affected
// identifiers and unwrap to the sentinel errors of the domain, store,
// queue and consistency packages; the API layer maps those sentinels to
// HTTP status codes.
package service
