// Package testdb provides helpers for tests that run against a real
// PostgreSQL database.
//
// Tests call GetTestDBWithT, which skips the test unless DATABASE_URL (or
// TASKQ_TEST_DB_URL) is set, applies the embedded migrations, and closes the
// connection on cleanup. WithTx runs a test body inside a transaction that
// is always rolled back.
package testdb
