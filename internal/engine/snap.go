package engine

import "math"

// DefaultSnapThreshold is in logical units and does not follow the zoom.
const DefaultSnapThreshold = 12.0

type Axis string

const (
	// AxisX guides are vertical lines at an x coordinate.
	AxisX Axis = "x"
	// AxisY guides are horizontal lines at a y coordinate.
	AxisY Axis = "y"
)

// Guide is a transient alignment line shown while a drag is snapped.
type Guide struct {
	Axis       Axis    `json:"axis"`
	Coordinate float64 `json:"coordinate"`
	Label      string  `json:"label"`
}

// SnapResult is the correction to apply to the moving box.
type SnapResult struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Guides []Guide `json:"guides"`
}

type anchor int

const (
	anchorStart anchor = iota
	anchorCenter
	anchorEnd
)

type candidate struct {
	ref    anchor
	target float64 // fraction of the canvas extent
	label  string
}

// Candidates in priority order; the first one within threshold wins.
var snapCandidates = []candidate{
	{anchorCenter, 0.5, "center"},
	{anchorStart, 0, "edge"},
	{anchorEnd, 1, "edge"},
	{anchorCenter, 1.0 / 3, "third"},
	{anchorCenter, 2.0 / 3, "third"},
	{anchorCenter, 0.25, "quarter"},
	{anchorCenter, 0.75, "quarter"},
}

// Snap aligns a moving box to the canvas guide lines. Each axis is
// resolved independently and yields at most one guide.
func Snap(box Rect, canvasW, canvasH, threshold float64) SnapResult {
	res := SnapResult{Guides: []Guide{}}
	if d, g, ok := snapAxis(box.X, box.Width, canvasW, threshold, AxisX); ok {
		res.DX = d
		res.Guides = append(res.Guides, g)
	}
	if d, g, ok := snapAxis(box.Y, box.Height, canvasH, threshold, AxisY); ok {
		res.DY = d
		res.Guides = append(res.Guides, g)
	}
	return res
}

func snapAxis(start, size, extent, threshold float64, axis Axis) (float64, Guide, bool) {
	for _, c := range snapCandidates {
		var point float64
		switch c.ref {
		case anchorStart:
			point = start
		case anchorCenter:
			point = start + size/2
		case anchorEnd:
			point = start + size
		}
		target := extent * c.target
		if math.Abs(point-target) < threshold {
			return target - point, Guide{Axis: axis, Coordinate: target, Label: c.label}, true
		}
	}
	return 0, Guide{}, false
}
