// Package l1regrid owns Layer 1 (Grid Regularizer) of the MSTID pipeline.
//
// Responsibilities: cropping to the configured range-gate band, resampling
// every (beam, gate) series onto a uniform time axis, and filling missing
// cells across beams (falling back to neighbouring gates).
// Key types: Config, TimeStats, BeamStats.
// Snapshots published: timeInterpolated, beamInterpolated.
//
// Dependency rule: L1 may depend on dataset and config, but never on L2+.
package l1regrid
