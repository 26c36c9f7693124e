package images

import (
	"math/rand"
	"testing"
)

// BenchmarkIoU_NonOverlapping takes the early return for disjoint boxes.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	r1 := Rect{Y1: 0, X1: 0, Y2: 100, X2: 100}
	r2 := Rect{Y1: 200, X1: 200, Y2: 300, X2: 300}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_PartialOverlap is the common case inside suppression.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	r1 := Rect{Y1: 0, X1: 0, Y2: 100, X2: 100}
	r2 := Rect{Y1: 50, X1: 50, Y2: 150, X2: 150}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_Random mixes overlapping, disjoint and inverted boxes.
func BenchmarkIoU_Random(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	rects := make([]Rect, 1024)
	for i := range rects {
		rects[i] = Rect{
			Y1: rng.Float32() * 512, X1: rng.Float32() * 512,
			Y2: rng.Float32() * 512, X2: rng.Float32() * 512,
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rects[i%len(rects)], rects[(i+1)%len(rects)])
	}
}
