// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-detect/images"
)

// Default suppression parameters.
const (
	DefaultMaxOutputs     = 5
	DefaultIoUThreshold   = 0.5
	DefaultScoreThreshold = 0.7
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	MaxOutputs     int     `json:"max_outputs" yaml:"max_outputs"`         // Upper bound on selected boxes.
	IoUThreshold   float32 `json:"iou_threshold" yaml:"iou_threshold"`     // Overlap above which a box is suppressed.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"` // Minimum score for a box to be eligible.
}

// DefaultNMSConfig returns the suppression parameters used by the service.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		MaxOutputs:     DefaultMaxOutputs,
		IoUThreshold:   DefaultIoUThreshold,
		ScoreThreshold: DefaultScoreThreshold,
	}
}

// NonMaxSuppression performs standard greedy Non-Maximum Suppression.
//
// Only candidates with score >= ScoreThreshold are eligible. Eligible candidates
// are ordered by descending score, equal scores by ascending candidate index, and
// then picked one at a time; every remaining candidate overlapping the pick with
// IoU > IoUThreshold is dropped. Selection stops after MaxOutputs picks.
//
// Arguments:
//   - boxes: Corner form boxes, one per candidate.
//   - scores: Best score per candidate, aligned with boxes.
//   - config: Suppression parameters.
//
// Returns:
//   - []int: Selected candidate indices in selection order. Never nil.
func NonMaxSuppression(boxes []images.Rect, scores []float32, config NMSConfig) []int {
	n := min(len(boxes), len(scores))
	if n == 0 || config.MaxOutputs <= 0 {
		return []int{}
	}

	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if scores[i] >= config.ScoreThreshold {
			order = append(order, i)
		}
	}

	sort.Slice(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa != sb {
			return sa > sb
		}
		return order[a] < order[b]
	})

	selected := make([]int, 0, min(config.MaxOutputs, len(order)))
	used := make([]bool, len(order))

	for i, anchor := range order {
		if len(selected) == config.MaxOutputs {
			break
		}
		if used[i] {
			continue
		}

		selected = append(selected, anchor)
		used[i] = true

		for j := i + 1; j < len(order); j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(boxes[anchor], boxes[order[j]]) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return selected
}
