// Package l5detect owns Layer 5 (Signal Detector) of the MSTID pipeline.
//
// Responsibilities: marker selection on the wavenumber map, watershed
// partitioning into regions of influence, and conversion of each surviving
// region into a physically parameterised wave signal.
// Key types: Config, Signal.
//
// Dependency rule: L5 may depend on L3-L4 and config, but never on the
// pipeline or on any adapter.
package l5detect
