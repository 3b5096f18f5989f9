// Package store defines interfaces for data persistence operations.
// These interfaces abstract the authoritative metadata store from the
// queue and consistency logic, allowing those rules to remain independent
// of the specific database technology behind them.
package store
