// Package identifier hands out identifiers for jobs and services.
//
// Identifiers are normally issued by the external uuid generation service.
// When that service cannot be reached in time the Generator falls back to a
// locally generated identifier so callers are never blocked. Every ID carries
// its Source, and degraded identifiers also carry LocalPrefix so operators
// can recognize them.
package identifier
