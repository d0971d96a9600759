package engine

import "github.com/certdesk/certdesk/backend-go/internal/document"

// Rect is an axis-aligned box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.Right() && y >= r.Y && y <= r.Bottom()
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	minX, minY := min(r.X, other.X), min(r.Y, other.Y)
	maxX, maxY := max(r.Right(), other.Right()), max(r.Bottom(), other.Bottom())
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Corners lists the corners clockwise from top-left.
func (r Rect) Corners() [4][2]float64 {
	return [4][2]float64{
		{r.X, r.Y},
		{r.Right(), r.Y},
		{r.Right(), r.Bottom()},
		{r.X, r.Bottom()},
	}
}

// LocalRect is the element's intrinsic box in its own coordinate space.
func LocalRect(el document.Element) Rect {
	w, h := el.Size()
	return Rect{Width: w, Height: h}
}

// Bounds returns the axis-aligned bounding box of el in logical units,
// accounting for scale and rotation.
func Bounds(el document.Element) Rect {
	return ElementMatrix(el).TransformRect(LocalRect(el))
}

// HitTest returns the id of the topmost selectable element containing the
// logical point, or "". The point is tested in element-local space so
// rotated elements are hit on their true outline box, not their bounds.
func HitTest(doc *document.Document, x, y float64) string {
	for i := len(doc.Elements) - 1; i >= 0; i-- {
		el := doc.Elements[i]
		if !el.Base().Selectable {
			continue
		}
		inv, ok := ElementMatrix(el).Invert()
		if !ok {
			continue
		}
		lx, ly := inv.TransformPoint(x, y)
		if LocalRect(el).Contains(lx, ly) {
			return el.Base().ID
		}
	}
	return ""
}
