// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// Result represents a single detection that survived suppression.
type Result struct {
	// Index is the candidate position in the model output.
	Index int `json:"index"`
	// The bounding box of the result in (y1, x1, y2, x2) form.
	Box images.Rect `json:"box"`
	// The confidence score of the result.
	Score float32 `json:"score"`
	// The predicted class index of the result.
	Class int `json:"class"`
	// The class name of the result.
	Label string `json:"label"`
}

// Output is the decoded answer for one model invocation.
type Output struct {
	// Labels are the distinct class names in first-occurrence order. Never nil.
	Labels []string `json:"labels"`
	// Count is the number of boxes that survived suppression, Count >= len(Labels).
	Count int `json:"count"`
	// Detections are the surviving boxes in selection order.
	Detections []Result `json:"detections"`
}

// Clone returns a deep copy of the output.
func (o *Output) Clone() *Output {
	if o == nil {
		return nil
	}
	out := &Output{
		Labels:     make([]string, len(o.Labels)),
		Count:      o.Count,
		Detections: make([]Result, len(o.Detections)),
	}
	copy(out.Labels, o.Labels)
	copy(out.Detections, o.Detections)
	return out
}
