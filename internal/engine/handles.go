package engine

import (
	"math"
	"strings"

	"github.com/certdesk/certdesk/backend-go/internal/document"
)

// Handle identifies a bounding-box control of the active element.
type Handle string

const (
	HandleN      Handle = "n"
	HandleS      Handle = "s"
	HandleE      Handle = "e"
	HandleW      Handle = "w"
	HandleNE     Handle = "ne"
	HandleNW     Handle = "nw"
	HandleSE     Handle = "se"
	HandleSW     Handle = "sw"
	HandleRotate Handle = "rotate"
)

var resizeHandles = []Handle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

const (
	// MinSize is the smallest scaled width or height a resize may produce.
	MinSize = 8.0
	// HandleRadius is the device-pixel hit tolerance around a handle.
	HandleRadius = 8.0
	// RotateHandleOffset places the rotate handle above the top edge, in device pixels.
	RotateHandleOffset = 30.0
)

func (h Handle) Valid() bool {
	if h == HandleRotate {
		return true
	}
	for _, r := range resizeHandles {
		if h == r {
			return true
		}
	}
	return false
}

// localHandle returns the handle position in element-local coordinates.
func localHandle(h Handle, w, hgt float64) (float64, float64) {
	x, y := w/2, hgt/2
	s := string(h)
	if strings.Contains(s, "w") {
		x = 0
	}
	if strings.Contains(s, "e") {
		x = w
	}
	if strings.HasPrefix(s, "n") {
		y = 0
	}
	if strings.HasPrefix(s, "s") {
		y = hgt
	}
	return x, y
}

// selectionBox maps the element's box and handles to device space.
func selectionBox(el document.Element, vp Viewport) *SelectionBox {
	m := vp.Matrix().Multiply(ElementMatrix(el))
	r := LocalRect(el)
	box := &SelectionBox{ID: el.Base().ID, Handles: make(map[Handle][2]float64, len(resizeHandles)+1)}
	for i, c := range r.Corners() {
		box.Corners[i][0], box.Corners[i][1] = m.TransformPoint(c[0], c[1])
	}
	for _, h := range resizeHandles {
		lx, ly := localHandle(h, r.Width, r.Height)
		x, y := m.TransformPoint(lx, ly)
		box.Handles[h] = [2]float64{x, y}
	}

	// The rotate handle sits a fixed device distance out from the top edge,
	// along the element's rotated up direction.
	tx, ty := m.TransformPoint(r.Width/2, 0)
	ux, uy := RotateDegrees(el.Base().Rotation).TransformVector(0, -1)
	if el.Base().ScaleY < 0 {
		ux, uy = -ux, -uy
	}
	box.Handles[HandleRotate] = [2]float64{tx + ux*RotateHandleOffset, ty + uy*RotateHandleOffset}
	return box
}

// handleAt returns the handle under a device point, if any.
func handleAt(box *SelectionBox, x, y float64) (Handle, bool) {
	if box == nil {
		return "", false
	}
	best, bestDist := Handle(""), HandleRadius
	for _, h := range append([]Handle{HandleRotate}, resizeHandles...) {
		p := box.Handles[h]
		if d := math.Hypot(p[0]-x, p[1]-y); d <= bestDist {
			best, bestDist = h, d
		}
	}
	return best, best != ""
}

// resize applies a logical-space pointer delta to el through handle h.
// The opposite edge stays fixed in canvas space; the element's own
// rotated axes define which way the edges move.
func resize(el document.Element, h Handle, dx, dy float64) {
	c := el.Base()
	w, hgt := el.Size()
	if w <= 0 || hgt <= 0 {
		return
	}

	ux, uy := RotateDegrees(-c.Rotation).TransformVector(dx, dy)
	curW, curH := w*math.Abs(c.ScaleX), hgt*math.Abs(c.ScaleY)
	newW, newH := curW, curH
	var shiftX, shiftY float64

	s := string(h)
	if strings.Contains(s, "e") {
		newW = max(curW+ux, MinSize)
	}
	if strings.Contains(s, "w") {
		newW = max(curW-ux, MinSize)
		shiftX = curW - newW
	}
	if strings.HasPrefix(s, "s") {
		newH = max(curH+uy, MinSize)
	}
	if strings.HasPrefix(s, "n") {
		newH = max(curH-uy, MinSize)
		shiftY = curH - newH
	}

	c.ScaleX = math.Copysign(newW/w, c.ScaleX)
	c.ScaleY = math.Copysign(newH/hgt, c.ScaleY)
	px, py := RotateDegrees(c.Rotation).TransformVector(shiftX, shiftY)
	c.X += px
	c.Y += py
}

// NormalizeDegrees maps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
