package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-detect/images"
)

// DecodeBoxes converts the geometry rows of a [4+C, N] output block into corner
// form boxes.
//
// The block is row-major: element (row, i) lives at data[row*n+i]. Rows 0..3 hold
// cx, cy, w and h for every candidate.
//
// Arguments:
//   - data: The output block; only the first 4*n values are read.
//   - n: The number of candidates N.
//
// Returns:
//   - []images.Rect: One (y1, x1, y2, x2) box per candidate.
func DecodeBoxes(data []float32, n int) []images.Rect {
	cx := data[0*n : 1*n]
	cy := data[1*n : 2*n]
	w := data[2*n : 3*n]
	h := data[3*n : 4*n]

	boxes := make([]images.Rect, n)
	for i := range boxes {
		boxes[i] = images.FromCenter(cx[i], cy[i], w[i], h[i])
	}
	return boxes
}

// ReduceConfidence computes the best score and the class achieving it for every
// candidate.
//
// Ties resolve to the lowest class index. A NaN score never wins over a number.
//
// Arguments:
//   - scores: The C score rows, row-major, element (c, i) at scores[c*n+i].
//   - numClasses: The number of classes C, at least 1.
//   - n: The number of candidates N.
//
// Returns:
//   - best: The maximum score per candidate.
//   - classes: The argmax class index per candidate.
func ReduceConfidence(scores []float32, numClasses, n int) (best []float32, classes []int) {
	best = make([]float32, n)
	classes = make([]int, n)

	copy(best, scores[:n])
	for c := 1; c < numClasses; c++ {
		row := scores[c*n : (c+1)*n]
		for i, s := range row {
			if s > best[i] || (math32.IsNaN(best[i]) && !math32.IsNaN(s)) {
				best[i] = s
				classes[i] = c
			}
		}
	}
	return best, classes
}
