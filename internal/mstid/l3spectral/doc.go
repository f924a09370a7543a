// Package l3spectral owns Layer 3 (Spectral Estimator) of the MSTID pipeline.
//
// Responsibilities: real FFT of every (beam, gate) series, selection of the
// frequency bins inside the analysis band, and construction of the
// cross-spectral matrices for each bin under the configured spatial
// grouping.
// Key types: Config, Result, Bin, Group.
//
// Dependency rule: L3 may depend on dataset, fov and config, but never on
// L1-L2 or L4+.
package l3spectral
