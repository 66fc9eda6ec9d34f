// Package history keeps a per-process log of item outcomes in an in-memory
// SQLite database.
//
// The relay never persists queue state across restarts, so the database lives
// only as long as the daemon. It backs the `linkrelay history` command and the
// delivered/failed/skipped counters shown by `linkrelay status`. Schema changes
// bump schemaVersion in schema.go.
package history
