// Package pipeline runs the MSTID analysis stages in order over a
// snapshot chain.
//
// This package is the composition root: it imports from the layer packages
// (l1regrid, l2prep, l3spectral, l4music, l5detect) and dataset, but none
// of those packages import pipeline/. Adapters (storage, render, the CLI)
// consume its Result.
package pipeline
