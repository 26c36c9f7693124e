package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
)

// ErrShapeMismatch is returned when the model output does not have the shape
// [1, 4+C, N] implied by the class table.
var ErrShapeMismatch = errors.New("model output shape mismatch")

// CandidateCount validates an output shape against the class count and returns N.
//
// Arguments:
//   - shape: The output tensor shape.
//   - numClasses: The class table size C.
//
// Returns:
//   - int: The number of candidates N.
//   - error: ErrShapeMismatch if the shape is not [1, 4+C, N] with N > 0.
func CandidateCount(shape []int, numClasses int) (int, error) {
	want := model.Spec{NumClasses: numClasses}.OutputShape()
	if len(shape) != len(want) || shape[0] != want[0] || shape[1] != want[1] || shape[2] <= 0 {
		return 0, errors.Wrapf(ErrShapeMismatch, "got %v, want [%d %d N]", shape, want[0], want[1])
	}
	return shape[2], nil
}

// Process decodes a raw model output into deduplicated labels.
//
// The pipeline is: geometry rows -> corner boxes, score rows -> max/argmax,
// greedy NMS over the best scores, then distinct classes of the survivors mapped
// through the class table.
//
// Arguments:
//   - out: The model output tensor of shape [1, 4+C, N] holding float32 values.
//   - classes: The class table; C = classes.Len().
//   - config: Suppression parameters.
//
// Returns:
//   - *Output: The labels, survivor count and surviving detections.
//   - error: ErrShapeMismatch or models.ErrIndexOutOfRange, both configuration errors.
func Process(out *tensor.Dense, classes *models.ClassTable, config NMSConfig) (*Output, error) {
	if out == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "no output tensor")
	}

	numClasses := classes.Len()
	n, err := CandidateCount(out.Shape(), numClasses)
	if err != nil {
		return nil, err
	}

	data, ok := out.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(ErrShapeMismatch, "output dtype %v, want float32", out.Dtype())
	}
	if need := n * (model.Spec{NumClasses: numClasses}).OutputShape()[1]; len(data) != need {
		return nil, errors.Wrapf(ErrShapeMismatch, "output holds %d values, shape needs %d", len(data), need)
	}

	return Decode(data, n, classes, config)
}

// Decode runs the postprocessing pipeline over a validated row-major [4+C, N] block.
func Decode(data []float32, n int, classes *models.ClassTable, config NMSConfig) (*Output, error) {
	numClasses := classes.Len()

	boxes := DecodeBoxes(data, n)
	scores, best := ReduceConfidence(data[model.BoxRows*n:], numClasses, n)

	selected := NonMaxSuppression(boxes, scores, config)

	labels, err := classes.Names(UniqueClasses(selected, best))
	if err != nil {
		return nil, err
	}

	detections := make([]Result, 0, len(selected))
	for _, idx := range selected {
		// Names already validated every class in selected.
		label, _ := classes.Name(best[idx])
		detections = append(detections, Result{
			Index: idx,
			Box:   boxes[idx],
			Score: scores[idx],
			Class: best[idx],
			Label: label,
		})
	}

	return &Output{
		Labels:     labels,
		Count:      len(selected),
		Detections: detections,
	}, nil
}
