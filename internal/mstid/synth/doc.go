// Package synth generates synthetic radar cubes of travelling plane waves
// over a realistic fan-shaped field of view, for tests and demos.
package synth
