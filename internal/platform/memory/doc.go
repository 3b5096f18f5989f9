// Package memory provides in-process implementations of the store and
// search index interfaces. They back the "memory" configuration backends
// and are used by tests of the packages above them.
package memory
