package export

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/certdesk/certdesk/backend-go/internal/document"
	"github.com/certdesk/certdesk/backend-go/internal/engine"
)

// Resolver maps an image Src to decoded pixels.
type Resolver interface {
	Resolve(src string) (image.Image, error)
}

// Rasterize composes doc at its logical resolution: background color,
// background image, then elements in z-order.
func Rasterize(ctx context.Context, doc *document.Document, res Resolver) (*image.RGBA, error) {
	if doc == nil || doc.Width <= 0 || doc.Height <= 0 {
		return nil, ErrEmptyDocument
	}

	dc := gg.NewContext(doc.Width, doc.Height)
	defer dc.Close()

	for _, cmd := range engine.CompileDrawCommands(doc, engine.Viewport{Scale: 1}) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := paint(dc, cmd, res); err != nil {
			return nil, fmt.Errorf("paint %s %s: %w", cmd.Op, cmd.ObjectID, err)
		}
	}
	return toRGBA(dc.Image()), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func paint(dc *gg.Context, cmd engine.DrawCommand, res Resolver) error {
	var m engine.Matrix2D
	copy(m[:], cmd.Transform)

	switch cmd.Op {
	case "background", "path":
		return paintPath(dc, cmd, m)
	case "image":
		if res == nil {
			return nil
		}
		img, err := res.Resolve(cmd.Src)
		if err != nil {
			slog.Warn("skip unresolvable image", "object", cmd.ObjectID, "error", err)
			return nil
		}
		composite(dc, img, m)
	case "text":
		layer, err := renderText(cmd)
		if err != nil {
			return err
		}
		if layer != nil {
			composite(dc, layer, m)
		}
	}
	return nil
}

func toGG(m engine.Matrix2D) gg.Matrix {
	return gg.Matrix{A: m[0], B: m[2], C: m[4], D: m[1], E: m[3], F: m[5]}
}

func paintPath(dc *gg.Context, cmd engine.DrawCommand, m engine.Matrix2D) error {
	dc.Push()
	defer dc.Pop()
	dc.SetTransform(toGG(m))

	for _, pc := range cmd.Path {
		switch pc.Op {
		case "M":
			dc.MoveTo(pc.Pts[0], pc.Pts[1])
		case "L":
			dc.LineTo(pc.Pts[0], pc.Pts[1])
		case "C":
			dc.CubicTo(pc.Pts[0], pc.Pts[1], pc.Pts[2], pc.Pts[3], pc.Pts[4], pc.Pts[5])
		case "Z":
			dc.ClosePath()
		}
	}
	defer dc.ClearPath()

	if cmd.Fill != "" {
		dc.SetHexColor(cmd.Fill)
		if err := dc.FillPreserve(); err != nil {
			return err
		}
	}
	if cmd.Stroke != "" && cmd.StrokeWidth > 0 {
		// path points are already in device space, so scale the width here
		dc.SetHexColor(cmd.Stroke)
		dc.SetLineWidth(cmd.StrokeWidth * math.Sqrt(math.Abs(m.Determinant())))
		return dc.Stroke()
	}
	return nil
}

// composite draws src, whose pixel grid is the local space of m, onto dc.
// The affine resample happens off-context because DrawImageEx only
// handles axis-aligned placement.
func composite(dc *gg.Context, src image.Image, m engine.Matrix2D) {
	sb := src.Bounds()
	box := m.TransformRect(engine.Rect{Width: float64(sb.Dx()), Height: float64(sb.Dy())})
	x0 := max(int(math.Floor(box.Left())), 0)
	y0 := max(int(math.Floor(box.Top())), 0)
	x1 := min(int(math.Ceil(box.Right())), dc.Width())
	y1 := min(int(math.Ceil(box.Bottom())), dc.Height())
	if x1 <= x0 || y1 <= y0 {
		return
	}

	layer := image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0))
	s2d := engine.Translate(-float64(x0), -float64(y0)).
		Multiply(m).
		Multiply(engine.Translate(-float64(sb.Min.X), -float64(sb.Min.Y)))
	aff := f64.Aff3{s2d[0], s2d[2], s2d[4], s2d[1], s2d[3], s2d[5]}
	draw.BiLinear.Transform(layer, aff, src, sb, draw.Over, nil)

	dc.Push()
	dc.Identity()
	dc.DrawImageEx(gg.ImageBufFromImage(layer), gg.DrawImageOptions{X: float64(x0), Y: float64(y0)})
	dc.Pop()
}

// underline placement relative to the baseline, as fractions of font size
const (
	underlineOffset    = 0.1
	underlineThickness = 1.0 / 16
)

// renderText draws a text box unrotated and unscaled into its own layer.
func renderText(cmd engine.DrawCommand) (image.Image, error) {
	run := cmd.Text
	w, h := int(math.Ceil(cmd.Width)), int(math.Ceil(cmd.Height))
	if run == nil || w <= 0 || h <= 0 {
		return nil, nil
	}

	f, err := face(run.FontFamily, document.FontWeight(run.FontWeight), document.FontStyle(run.FontStyle), run.FontSize)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(w, h)
	defer dc.Close()
	dc.SetFont(f)
	dc.SetHexColor(cmd.Fill)

	metrics := f.Metrics()
	lineH := run.FontSize * run.LineHeight
	for i, line := range run.Lines {
		baseline := float64(i)*lineH + (lineH-metrics.Ascent-metrics.Descent)/2 + metrics.Ascent

		var x, width float64
		if run.Align == string(document.AlignJustify) && i < len(run.Lines)-1 {
			x, width = drawJustified(dc, f, line, cmd.Width, baseline)
		} else {
			width = f.Advance(line)
			x = alignOffset(run.Align, cmd.Width, width)
			dc.DrawString(line, x, baseline)
		}

		if run.Underline && width > 0 {
			dc.DrawRectangle(x, baseline+run.FontSize*underlineOffset, width, max(1, run.FontSize*underlineThickness))
			if err := dc.Fill(); err != nil {
				return nil, err
			}
		}
	}
	return dc.Image(), nil
}

func alignOffset(align string, boxW, lineW float64) float64 {
	switch document.TextAlign(align) {
	case document.AlignCenter:
		return (boxW - lineW) / 2
	case document.AlignRight:
		return boxW - lineW
	}
	return 0
}

// drawJustified spreads the words of line across boxW. Lines with a single
// word stay left aligned.
func drawJustified(dc *gg.Context, f text.Face, line string, boxW, baseline float64) (float64, float64) {
	words := strings.Fields(line)
	if len(words) < 2 {
		dc.DrawString(line, 0, baseline)
		return 0, f.Advance(line)
	}
	var total float64
	for _, w := range words {
		total += f.Advance(w)
	}
	gap := (boxW - total) / float64(len(words)-1)
	if gap < 0 {
		dc.DrawString(line, 0, baseline)
		return 0, f.Advance(line)
	}
	x := 0.0
	for _, w := range words {
		dc.DrawString(w, x, baseline)
		x += f.Advance(w) + gap
	}
	return 0, boxW
}
