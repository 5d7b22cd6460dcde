// Package history keeps a SQLite record of completed batch runs for the CLI.
//
// The conversion core never touches this package: the batch command records
// a run after the scheduler returns, and the history command reads it back.
// Schema changes bump schemaVersion; users delete the database to adopt a new
// schema. LockDir guards an output directory against concurrent batch runs.
package history
