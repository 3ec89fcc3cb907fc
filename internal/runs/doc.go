// Package runs persists pipeline run history in SQLite.
//
// The Store records one row per run, one row per executed stage, and one row
// per saved output file, so `ampliflow runs` can show what a past run
// produced and where it stopped. Writes retry briefly on SQLITE_BUSY.
// Runs still marked running when the store opens belong to a process that
// died and are marked failed.
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema.
package runs
