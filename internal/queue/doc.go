// Package queue implements the lease protocol of task-managed services.
//
// Workers lease the oldest Pending job of a service, report progress and
// a final status, and may attach revised service metadata to a report. A
// lease that is not reported on within the lease TTL becomes eligible for
// leasing again. All coordination state lives in the store; the Manager
// itself holds none and can run in any number of processes.
package queue
