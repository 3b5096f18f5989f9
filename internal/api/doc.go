// Package api handles incoming HTTP requests, request validation and
// response formatting for the task queue. It adapts worker and operator
// calls to the operations of internal/service and maps their errors to
// HTTP status codes.
//
// Worker protocol:
//
//	GET  /api/services/{serviceID}/jobs/next             lease the next job (204 when empty)
//	POST /api/services/{serviceID}/jobs/{jobID}/status   report progress or a final status
//	GET  /api/services/{serviceID}/queue                 queue counters
//
// Operators register services, update them and submit jobs through the
// remaining routes registered by Routes.
package api
