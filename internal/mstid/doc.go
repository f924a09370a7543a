// Package mstid is the root of the MSTID wavenumber analysis chain.
//
// The chain turns a (time, beam, range-gate) measurement cube from a
// ground-based HF radar into a horizontal wavenumber map using MUSIC and
// extracts discrete travelling-wave signals from it. Stages live in
// layered sub-packages:
//
//	dataset     snapshot chain and history (cross-cutting)
//	l1regrid    time and beam regularisation
//	l2prep      detrend, bandpass, taper
//	l3spectral  per-cell FFT and cross-spectral matrices
//	l4music     eigendecomposition and pseudo-spectrum map
//	l5detect    watershed signal detection
//	pipeline    composition root
//
// Dependency rule: layer N may import layers below it, never above.
// This package itself only holds the error taxonomy shared by all layers.
package mstid
