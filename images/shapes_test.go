package images

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{
			name:     "Identical rectangles",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{0, 0, 100, 100},
			expected: 1.0,
		},
		{
			name:     "No overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{200, 200, 300, 300},
			expected: 0.0,
		},
		{
			name:     "Touching edges",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{0, 100, 100, 200},
			expected: 0.0,
		},
		{
			name:     "Half overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{50, 50, 150, 150},
			expected: 0.142857, // 2500 / (10000 + 10000 - 2500)
		},
		{
			name:     "One inside other",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{25, 25, 75, 75},
			expected: 0.25,
		},
		{
			name:     "Swapped corners",
			r1:       Rect{100, 100, 0, 0},
			r2:       Rect{0, 0, 100, 100},
			expected: 1.0,
		},
		{
			name:     "Fractional coordinates",
			r1:       Rect{0.1, 0.1, 0.5, 0.5},
			r2:       Rect{0.3, 0.3, 0.7, 0.7},
			expected: 0.04 / (0.16 + 0.16 - 0.04),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, 0.001)

			reverse := CalculateIoU(tt.r2, tt.r1)
			assert.InDelta(t, result, reverse, 1e-6, "IoU must be symmetric")
		})
	}
}

// TestIoU_vs_ImageRectangle compares against image.Rectangle on integral boxes.
func TestIoU_vs_ImageRectangle(t *testing.T) {
	testCases := []struct {
		name string
		r1   image.Rectangle
		r2   image.Rectangle
	}{
		{"No overlap", image.Rect(0, 0, 100, 100), image.Rect(200, 200, 300, 300)},
		{"Partial overlap", image.Rect(0, 0, 100, 100), image.Rect(50, 50, 150, 150)},
		{"Full overlap", image.Rect(50, 50, 150, 150), image.Rect(50, 50, 150, 150)},
		{"Large boxes", image.Rect(0, 0, 1920, 1080), image.Rect(960, 540, 1920, 1080)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateIoU(fromImageRect(tc.r1), fromImageRect(tc.r2))
			assert.InDelta(t, imageRectIoU(tc.r1, tc.r2), got, 0.0001)
		})
	}
}

func fromImageRect(r image.Rectangle) Rect {
	return Rect{
		Y1: float32(r.Min.Y),
		X1: float32(r.Min.X),
		Y2: float32(r.Max.Y),
		X2: float32(r.Max.X),
	}
}

func imageRectIoU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}
	intersectArea := intersect.Dx() * intersect.Dy()
	union := r1.Dx()*r1.Dy() + r2.Dx()*r2.Dy() - intersectArea
	return float32(intersectArea) / float32(union)
}

// TestIoU_EdgeCases covers degenerate boxes that must not divide by zero.
func TestIoU_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"Zero area rectangle 1", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}},
		{"Zero area rectangle 2", Rect{0, 0, 100, 100}, Rect{50, 50, 50, 50}},
		{"Both zero area", Rect{0, 0, 0, 0}, Rect{0, 0, 0, 0}},
		{"Zero width line", Rect{0, 10, 100, 10}, Rect{0, 0, 100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.False(t, math.IsNaN(float64(result)))
			assert.Equal(t, float32(0), result)
			assert.Equal(t, float32(0), CalculateIoU(tt.r2, tt.r1))
		})
	}
}

func TestIoU_Range(t *testing.T) {
	boxes := []Rect{
		{-100, -100, 0, 0},
		{-50, -50, 50, 50},
		{0, 0, 1, 1},
		{0, 0, 999999, 999999},
		{500000, 500000, 999999, 999999},
	}
	for _, a := range boxes {
		for _, b := range boxes {
			iou := CalculateIoU(a, b)
			assert.GreaterOrEqual(t, iou, float32(0))
			assert.LessOrEqual(t, iou, float32(1))
		}
		assert.InDelta(t, 1.0, CalculateIoU(a, a), 1e-6)
	}
}

func TestFromCenter_RoundTrip(t *testing.T) {
	tests := []struct {
		cx, cy, w, h float32
	}{
		{50, 50, 20, 10},
		{0, 0, 0, 0},
		{256.5, 17.25, 511, 3.5},
		{-10, 400, 12, 80},
	}

	for _, tt := range tests {
		r := FromCenter(tt.cx, tt.cy, tt.w, tt.h)
		assert.InDelta(t, tt.cy-tt.h/2, r.Y1, 1e-4)
		assert.InDelta(t, tt.cx-tt.w/2, r.X1, 1e-4)

		cx, cy, w, h := r.Center()
		assert.InDelta(t, tt.cx, cx, 1e-3)
		assert.InDelta(t, tt.cy, cy, 1e-3)
		assert.InDelta(t, tt.w, w, 1e-3)
		assert.InDelta(t, tt.h, h, 1e-3)
	}
}

func TestRect_Canon(t *testing.T) {
	r := Rect{Y1: 10, X1: 20, Y2: 0, X2: 5}.Canon()
	assert.Equal(t, Rect{Y1: 0, X1: 5, Y2: 10, X2: 20}, r)
	assert.Equal(t, float32(150), r.Area())
}
