// Package domain contains the core business entities of the task-managed
// service queue: jobs and their status lattice, status updates, leases and
// service metadata. It is independent of any storage or transport.
package domain
