// Package l2prep owns Layer 2 (Preprocessor) of the MSTID pipeline.
//
// Responsibilities: per-series linear detrending, zero-phase FIR bandpass
// filtering and Hann tapering of a regularised cube.
// Key types: Config.
// Snapshots published: detrended, filtered, windowed.
//
// Dependency rule: L2 may depend on dataset and config, but never on L1 or
// L3+. The input is expected to be uniformly sampled and fully populated.
package l2prep
