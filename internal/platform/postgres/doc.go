// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in the internal/store package.
//
// The service_jobs table is the coordination point between service
// instances: leasing is a single UPDATE over a row locked with
// FOR UPDATE SKIP LOCKED, and status updates compare the status and lease
// token observed by the caller before writing. Schema migrations are
// embedded and applied with goose.
package postgres
