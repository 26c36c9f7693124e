// Package images - Box geometry and image format utilities.
package images

import "github.com/chewxy/math32"

// Rect is a corner-form bounding box in the model's native units.
//
// The field order follows the (y, x) convention used by the suppression step:
// (Y1, X1) is one corner and (Y2, X2) is the opposite corner.
type Rect struct {
	Y1, X1, Y2, X2 float32
}

// FromCenter converts a center-form box into corner form.
//
// Arguments:
//   - cx, cy: The center of the box.
//   - w, h: The width and height of the box.
//
// Returns:
//   - Rect: The box as (y1, x1, y2, x2).
//
// Example:
//
// ```go
//
//	r := FromCenter(50, 50, 20, 10) // Rect{Y1: 45, X1: 40, Y2: 55, X2: 60}
//
// ```
func FromCenter(cx, cy, w, h float32) Rect {
	y1 := cy - h/2
	x1 := cx - w/2
	return Rect{
		Y1: y1,
		X1: x1,
		Y2: y1 + h,
		X2: x1 + w,
	}
}

// Center converts the box back into center form.
//
// Returns:
//   - cx, cy, w, h: The center, width and height of the box.
func (r Rect) Center() (cx, cy, w, h float32) {
	w = r.X2 - r.X1
	h = r.Y2 - r.Y1
	return r.X1 + w/2, r.Y1 + h/2, w, h
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() float32 {
	return math32.Abs(r.X2 - r.X1)
}

// Height returns the vertical extent of the box.
func (r Rect) Height() float32 {
	return math32.Abs(r.Y2 - r.Y1)
}

// Area returns the area of the box. Boxes with swapped corners report the same
// area as their canonical form.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Canon returns the box with Y1 <= Y2 and X1 <= X2.
func (r Rect) Canon() Rect {
	return Rect{
		Y1: math32.Min(r.Y1, r.Y2),
		X1: math32.Min(r.X1, r.X2),
		Y2: math32.Max(r.Y1, r.Y2),
		X2: math32.Max(r.X1, r.X2),
	}
}

// CalculateIoU computes the Intersection over Union of two boxes.
//
// IoU is the ratio between the area both boxes share and the area they cover
// together:
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the boxes are identical, 0.0 means they do not overlap.
//
// The intersection rectangle starts at the larger of the two leading corners and
// ends at the smaller of the two trailing corners. If its width or height is not
// positive the boxes are disjoint (or only touch) and the result is 0.
//
// The union follows inclusion-exclusion:
//
//	Area(A ∪ B) = Area(A) + Area(B) - Area(A ∩ B)
//
// Corners are canonicalised first, so a box given as (y2, x2, y1, x1) is treated
// the same as (y1, x1, y2, x2). A zero-area box always yields 0, which also keeps
// the division well defined.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value in [0, 1].
//
// Example:
//
// ```go
//
//	a := Rect{Y1: 0, X1: 0, Y2: 10, X2: 10}
//	b := Rect{Y1: 5, X1: 5, Y2: 15, X2: 15}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	r = r.Canon()
	o = o.Canon()

	areaR := r.Area()
	areaO := o.Area()
	if areaR <= 0 || areaO <= 0 {
		return 0
	}

	iy1 := math32.Max(r.Y1, o.Y1)
	ix1 := math32.Max(r.X1, o.X1)
	iy2 := math32.Min(r.Y2, o.Y2)
	ix2 := math32.Min(r.X2, o.X2)

	interH := iy2 - iy1
	interW := ix2 - ix1
	if interH <= 0 || interW <= 0 {
		return 0
	}
	interArea := interH * interW

	return interArea / (areaR + areaO - interArea)
}
