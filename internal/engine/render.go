package engine

import (
	"encoding/json"
	"math"

	"github.com/certdesk/certdesk/backend-go/internal/document"
)

// PathCommand is one path segment in element-local coordinates.
// It encodes the way Canvas2D consumes it: ["M", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand struct {
	Op  string
	Pts []float64
}

func (p PathCommand) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(p.Pts)+1)
	out = append(out, p.Op)
	for _, v := range p.Pts {
		out = append(out, v)
	}
	return json.Marshal(out)
}

// StarInnerRatio is the inner-to-outer radius ratio of star shapes.
const StarInnerRatio = 0.5

// ShapePath generates the outline of a shape inside its local box.
func ShapePath(s *document.ShapeElement) []PathCommand {
	switch s.Kind {
	case document.ShapeRect:
		return polygonPath([][2]float64{{0, 0}, {s.Width, 0}, {s.Width, s.Height}, {0, s.Height}})
	case document.ShapeTriangle:
		return polygonPath([][2]float64{{s.Width / 2, 0}, {s.Width, s.Height}, {0, s.Height}})
	case document.ShapeCircle:
		return ellipsePath(s.Radius, s.Radius, s.Radius, s.Radius)
	case document.ShapePolygon:
		return polygonPath(radialPoints(s.Points, s.Radius, s.Radius))
	case document.ShapeStar:
		return polygonPath(radialPoints(s.Points, s.Radius, s.Radius*StarInnerRatio))
	}
	return nil
}

// radialPoints lays out n vertices (2n when inner differs from outer)
// around the center of a 2r box, first vertex pointing up.
func radialPoints(n int, outer, inner float64) [][2]float64 {
	if n < 3 {
		n = 3
	}
	step := 1
	if inner != outer {
		step = 2
	}
	count := n * step
	pts := make([][2]float64, count)
	for i := range count {
		r := outer
		if step == 2 && i%2 == 1 {
			r = inner
		}
		a := -math.Pi/2 + 2*math.Pi*float64(i)/float64(count)
		pts[i] = [2]float64{outer + r*math.Cos(a), outer + r*math.Sin(a)}
	}
	return pts
}

func polygonPath(pts [][2]float64) []PathCommand {
	out := make([]PathCommand, 0, len(pts)+1)
	for i, p := range pts {
		op := "L"
		if i == 0 {
			op = "M"
		}
		out = append(out, PathCommand{Op: op, Pts: []float64{p[0], p[1]}})
	}
	return append(out, PathCommand{Op: "Z"})
}

// ellipsePath approximates an ellipse with four cubic beziers.
func ellipsePath(cx, cy, rx, ry float64) []PathCommand {
	const k = 0.5522847498
	kx, ky := rx*k, ry*k
	return []PathCommand{
		{"M", []float64{cx + rx, cy}},
		{"C", []float64{cx + rx, cy + ky, cx + kx, cy + ry, cx, cy + ry}},
		{"C", []float64{cx - kx, cy + ry, cx - rx, cy + ky, cx - rx, cy}},
		{"C", []float64{cx - rx, cy - ky, cx - kx, cy - ry, cx, cy - ry}},
		{"C", []float64{cx + kx, cy - ry, cx + rx, cy - ky, cx + rx, cy}},
		{"Z", nil},
	}
}

// DrawCommand is a single drawing operation for the frontend, in painter's
// order. Transform maps the command's local space to device pixels.
type DrawCommand struct {
	Op          string        `json:"op"` // "background", "path", "text", "image"
	ObjectID    string        `json:"objectId,omitempty"`
	Transform   []float64     `json:"transform"`
	Path        []PathCommand `json:"path,omitempty"`
	Fill        string        `json:"fill,omitempty"`
	Stroke      string        `json:"stroke,omitempty"`
	StrokeWidth float64       `json:"strokeWidth,omitempty"`

	Text *TextRun `json:"text,omitempty"`

	Src    string  `json:"src,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// TextRun carries the text attributes a canvas needs to lay out a text box.
type TextRun struct {
	Lines      []string `json:"lines"`
	FontFamily string   `json:"fontFamily"`
	FontSize   float64  `json:"fontSize"`
	FontWeight string   `json:"fontWeight"`
	FontStyle  string   `json:"fontStyle"`
	Underline  bool     `json:"underline"`
	Align      string   `json:"align"`
	LineHeight float64  `json:"lineHeight"`
}

// GuideLine is a snap guide mapped to device space.
type GuideLine struct {
	Guide
	From [2]float64 `json:"from"`
	To   [2]float64 `json:"to"`
}

// SelectionBox outlines the active element in device space.
type SelectionBox struct {
	ID      string                `json:"id"`
	Corners [4][2]float64         `json:"corners"`
	Handles map[Handle][2]float64 `json:"handles"`
}

// Frame is everything needed to paint one editor frame.
type Frame struct {
	Viewport  Viewport      `json:"viewport"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Commands  []DrawCommand `json:"commands"`
	Guides    []GuideLine   `json:"guides"`
	Selection *SelectionBox `json:"selection,omitempty"`
}

// CompileDrawCommands generates the draw list for doc under vp.
func CompileDrawCommands(doc *document.Document, vp Viewport) []DrawCommand {
	view := vp.Matrix()
	w, h := float64(doc.Width), float64(doc.Height)

	commands := make([]DrawCommand, 0, len(doc.Elements)+2)
	commands = append(commands, DrawCommand{
		Op:        "background",
		Transform: view.ToSlice(),
		Path:      polygonPath([][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}}),
		Fill:      doc.BackgroundColor,
	})
	if bg := doc.BackgroundImage; bg != nil {
		m := view.Multiply(Translate(bg.Left, bg.Top)).Multiply(Scale(bg.Scale, bg.Scale))
		commands = append(commands, DrawCommand{
			Op:        "image",
			Transform: m.ToSlice(),
			Src:       bg.Src,
			Width:     float64(bg.NaturalWidth),
			Height:    float64(bg.NaturalHeight),
		})
	}

	for _, el := range doc.Elements {
		commands = append(commands, compileElement(el, view))
	}
	return commands
}

func compileElement(el document.Element, view Matrix2D) DrawCommand {
	cmd := DrawCommand{
		ObjectID:  el.Base().ID,
		Transform: view.Multiply(ElementMatrix(el)).ToSlice(),
	}
	switch e := el.(type) {
	case *document.ShapeElement:
		cmd.Op = "path"
		cmd.Path = ShapePath(e)
		cmd.Fill = e.Fill
		cmd.Stroke = e.Stroke
		cmd.StrokeWidth = e.StrokeWidth
	case *document.TextElement:
		cmd.Op = "text"
		cmd.Fill = e.Fill
		cmd.Width, cmd.Height = e.Size()
		cmd.Text = &TextRun{
			Lines:      e.Lines(),
			FontFamily: e.FontFamily,
			FontSize:   e.FontSize,
			FontWeight: string(e.FontWeight),
			FontStyle:  string(e.FontStyle),
			Underline:  e.Underline,
			Align:      string(e.TextAlign),
			LineHeight: document.LineHeight,
		}
	case *document.ImageElement:
		cmd.Op = "image"
		cmd.Src = e.Src
		cmd.Width, cmd.Height = e.Size()
	}
	return cmd
}

func compileGuides(guides []Guide, vp Viewport, w, h float64) []GuideLine {
	out := make([]GuideLine, 0, len(guides))
	for _, g := range guides {
		line := GuideLine{Guide: g}
		switch g.Axis {
		case AxisX:
			line.From[0], line.From[1] = vp.ToDevice(g.Coordinate, 0)
			line.To[0], line.To[1] = vp.ToDevice(g.Coordinate, h)
		case AxisY:
			line.From[0], line.From[1] = vp.ToDevice(0, g.Coordinate)
			line.To[0], line.To[1] = vp.ToDevice(w, g.Coordinate)
		}
		out = append(out, line)
	}
	return out
}
