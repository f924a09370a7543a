// Package sqlite contains the SQLite repository for analysis runs.
//
// All database reads and writes for runs, their history, detected signals
// and wavenumber maps belong here rather than in the stage packages
// (l1regrid through l5detect), which stay free of SQL. The schema itself is
// owned by the migrations in internal/db.
package sqlite
