// Package l4music owns Layer 4 (Wavenumber Mapper) of the MSTID pipeline.
//
// Responsibilities: eigendecomposition of each cross-spectral matrix,
// conditioning checks, evaluation of the MUSIC pseudo-spectrum over a
// symmetric (kx, ky) grid and combination of the per-bin spectra into one
// wavenumber map.
// Key types: Config, Map, BinIssue.
//
// Dependency rule: L4 may depend on L3 (l3spectral), dataset and config,
// but never on L1-L2 or L5+.
package l4music
