package l5detect

import (
	"container/heap"

	"gonum.org/v1/gonum/mat"
)

// unlabeled marks a cell not yet claimed by any region.
const unlabeled = -1

// cell is a raster position, row (ky) major.
type cell struct {
	row, col int
}

// findMarkers returns the local maxima of v that reach threshold, in raster
// order. A cell is a maximum when no cell in its (2h+1)² window is larger
// and no earlier cell in raster order is equal.
func findMarkers(v mat.Matrix, h int, threshold float64) []cell {
	rows, cols := v.Dims()
	var out []cell
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := v.At(r, c)
			if x < threshold || !isMaximum(v, r, c, h) {
				continue
			}
			out = append(out, cell{r, c})
		}
	}
	return out
}

func isMaximum(v mat.Matrix, r, c, h int) bool {
	rows, cols := v.Dims()
	x := v.At(r, c)
	for i := max(0, r-h); i <= min(rows-1, r+h); i++ {
		for j := max(0, c-h); j <= min(cols-1, c+h); j++ {
			if i == r && j == c {
				continue
			}
			y := v.At(i, j)
			if y > x {
				return false
			}
			if y == x && (i < r || (i == r && j < c)) {
				return false
			}
		}
	}
	return true
}

// floodItem is a queued cell with the value it was queued at.
type floodItem struct {
	cell
	value float64
	seq   int
}

// floodQueue is a max-heap on value; equal values pop in insertion order.
type floodQueue []floodItem

func (q floodQueue) Len() int { return len(q) }
func (q floodQueue) Less(i, j int) bool {
	if q[i].value != q[j].value {
		return q[i].value > q[j].value
	}
	return q[i].seq < q[j].seq
}
func (q floodQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *floodQueue) Push(x any)   { *q = append(*q, x.(floodItem)) }
func (q *floodQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// watershed grows one region per marker by priority flood over the
// 8-connected grid, highest values first. It returns a label per cell in
// row-major order; label i belongs to markers[i]. Cells unreachable from
// any marker keep the label unlabeled.
func watershed(v mat.Matrix, markers []cell) []int {
	rows, cols := v.Dims()
	labels := make([]int, rows*cols)
	for i := range labels {
		labels[i] = unlabeled
	}

	q := make(floodQueue, 0, len(markers))
	seq := 0
	for i, m := range markers {
		labels[m.row*cols+m.col] = i
		q = append(q, floodItem{cell: m, value: v.At(m.row, m.col), seq: seq})
		seq++
	}
	heap.Init(&q)

	for q.Len() > 0 {
		it := heap.Pop(&q).(floodItem)
		label := labels[it.row*cols+it.col]
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				r, c := it.row+dr, it.col+dc
				if (dr == 0 && dc == 0) || r < 0 || r >= rows || c < 0 || c >= cols {
					continue
				}
				idx := r*cols + c
				if labels[idx] != unlabeled {
					continue
				}
				labels[idx] = label
				heap.Push(&q, floodItem{cell: cell{r, c}, value: v.At(r, c), seq: seq})
				seq++
			}
		}
	}
	return labels
}
