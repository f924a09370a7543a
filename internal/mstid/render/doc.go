// Package render draws wavenumber maps and their detected signals, as a
// static PNG heat map (gonum/plot) or an interactive HTML page (go-echarts).
// It only reads l4music and l5detect results.
package render
