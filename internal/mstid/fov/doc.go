// Package fov places radar range cells on the ground.
//
// A scatter Model turns a slant range (and, for some models, an elevation
// angle) into a great-circle ground range. Project walks every (beam, gate)
// cell of a radar site along its beam bearing and returns a
// dataset.PositionGrid. LocalXY converts a set of geographic points into the
// local east/north kilometre frame used by the wavenumber stages.
//
// Dependency rule: fov may depend on dataset and the mstid error types, but
// never on the l1..l5 stage packages.
package fov
