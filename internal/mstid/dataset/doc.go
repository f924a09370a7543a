// Package dataset owns the data model shared by every stage of the MSTID
// chain: the measurement cube, the per-cell position grid, the snapshot
// record pairing them with metadata, and the Chain that holds the ordered,
// append-only history of snapshots for one analysis run.
//
// Key types: Cube, PositionGrid, Snapshot, Chain, HistoryEntry.
//
// Dependency rule: dataset depends on nothing else in internal/mstid except
// the error taxonomy. No numerical processing belongs here.
package dataset
