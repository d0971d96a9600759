package engine

// Padding is the fixed inset between the container edge and the canvas,
// in device pixels, on every side.
const Padding = 24.0

// Viewport maps logical canvas coordinates to device coordinates:
// device = Scale*logical + Offset.
type Viewport struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Fit scales the logical canvas into the available area without ever
// upscaling past 1:1, and centers it.
func Fit(availW, availH, logicalW, logicalH float64) Viewport {
	if availW <= 0 || availH <= 0 || logicalW <= 0 || logicalH <= 0 {
		return Viewport{Scale: 1}
	}
	scale := min(availW/logicalW, availH/logicalH, 1)
	return Viewport{
		Scale:   scale,
		OffsetX: (availW - logicalW*scale) / 2,
		OffsetY: (availH - logicalH*scale) / 2,
	}
}

func (v Viewport) ToDevice(x, y float64) (float64, float64) {
	return v.Scale*x + v.OffsetX, v.Scale*y + v.OffsetY
}

func (v Viewport) ToLogical(x, y float64) (float64, float64) {
	return (x - v.OffsetX) / v.Scale, (y - v.OffsetY) / v.Scale
}

// DeltaToLogical converts a pointer delta; offsets do not apply.
func (v Viewport) DeltaToLogical(dx, dy float64) (float64, float64) {
	return dx / v.Scale, dy / v.Scale
}

func (v Viewport) Matrix() Matrix2D {
	return Translate(v.OffsetX, v.OffsetY).Multiply(Scale(v.Scale, v.Scale))
}

// Pin computes the viewport once, on the first layout with a usable
// container, and then keeps returning it no matter how the container
// changes. Reset unpins it for a new canvas size.
type Pin struct {
	logicalW, logicalH float64
	vp                 Viewport
	pinned             bool
}

func NewPin(logicalW, logicalH float64) *Pin {
	return &Pin{logicalW: logicalW, logicalH: logicalH, vp: Viewport{Scale: 1}}
}

// Layout reports the viewport for a container of the given size. Until the
// first usable layout it returns an unpinned 1:1 viewport and false.
func (p *Pin) Layout(containerW, containerH float64) (Viewport, bool) {
	if p.pinned {
		return p.vp, true
	}
	availW, availH := containerW-2*Padding, containerH-2*Padding
	if availW <= 0 || availH <= 0 {
		return p.vp, false
	}
	vp := Fit(availW, availH, p.logicalW, p.logicalH)
	vp.OffsetX += Padding
	vp.OffsetY += Padding
	p.vp, p.pinned = vp, true
	return vp, true
}

func (p *Pin) Reset(logicalW, logicalH float64) {
	p.logicalW, p.logicalH = logicalW, logicalH
	p.vp = Viewport{Scale: 1}
	p.pinned = false
}

func (p *Pin) Viewport() Viewport { return p.vp }
func (p *Pin) Pinned() bool       { return p.pinned }
