package document

import "strings"

// Document is the authoritative in-memory state of one certificate design.
// Z-order is slice order: Elements[0] is painted first (bottom).
type Document struct {
	Width           int        `json:"width" validate:"gt=0"`
	Height          int        `json:"height" validate:"gt=0"`
	BackgroundColor string     `json:"backgroundColor" validate:"required,hexcolor"`
	BackgroundImage *ImageFill `json:"backgroundImage,omitempty"`
	Elements        Elements   `json:"elements"`
}

type ElementType string

const (
	ElementTypeText  ElementType = "text"
	ElementTypeShape ElementType = "shape"
	ElementTypeImage ElementType = "image"
)

// Element is one of *TextElement, *ShapeElement or *ImageElement.
type Element interface {
	Type() ElementType
	// Base exposes the shared geometry fields for in-place mutation.
	Base() *Common
	// Size is the unscaled intrinsic size in logical units.
	Size() (w, h float64)
	Clone() Element
	sealed()
}

// Elements is the ordered element list; it owns the canonical JSON encoding.
type Elements []Element

// Common holds the fields every element variant carries.
type Common struct {
	ID         string  `json:"id" validate:"required"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ScaleX     float64 `json:"scaleX" validate:"ne=0"`
	ScaleY     float64 `json:"scaleY" validate:"ne=0"`
	Rotation   float64 `json:"rotation"`
	Selectable bool    `json:"selectable"`
}

func (c *Common) Base() *Common { return c }

type FontWeight string

const (
	FontWeightNormal FontWeight = "normal"
	FontWeightBold   FontWeight = "bold"
)

type FontStyle string

const (
	FontStyleNormal FontStyle = "normal"
	FontStyleItalic FontStyle = "italic"
)

type TextAlign string

const (
	AlignLeft    TextAlign = "left"
	AlignCenter  TextAlign = "center"
	AlignRight   TextAlign = "right"
	AlignJustify TextAlign = "justify"
)

// LineHeight is the line spacing multiple applied to FontSize.
const LineHeight = 1.16

type TextElement struct {
	Common
	Content    string     `json:"content"`
	FontFamily string     `json:"fontFamily" validate:"required"`
	FontSize   float64    `json:"fontSize" validate:"gt=0"`
	FontWeight FontWeight `json:"fontWeight" validate:"oneof=normal bold"`
	FontStyle  FontStyle  `json:"fontStyle" validate:"oneof=normal italic"`
	Underline  bool       `json:"underline"`
	Fill       string     `json:"fill" validate:"required,hexcolor"`
	TextAlign  TextAlign  `json:"textAlign" validate:"oneof=left center right justify"`
	Width      float64    `json:"width" validate:"gt=0"`
}

func (*TextElement) Type() ElementType { return ElementTypeText }
func (*TextElement) sealed()           {}

// Lines splits the content on explicit line breaks.
func (t *TextElement) Lines() []string {
	return strings.Split(t.Content, "\n")
}

func (t *TextElement) Size() (float64, float64) {
	return t.Width, float64(len(t.Lines())) * t.FontSize * LineHeight
}

func (t *TextElement) Clone() Element {
	c := *t
	return &c
}

type ShapeKind string

const (
	ShapeRect     ShapeKind = "rect"
	ShapeCircle   ShapeKind = "circle"
	ShapeTriangle ShapeKind = "triangle"
	ShapeStar     ShapeKind = "star"
	ShapePolygon  ShapeKind = "polygon"
)

type ShapeElement struct {
	Common
	Kind        ShapeKind `json:"kind" validate:"oneof=rect circle triangle star polygon"`
	Width       float64   `json:"width,omitempty" validate:"gte=0"`
	Height      float64   `json:"height,omitempty" validate:"gte=0"`
	Radius      float64   `json:"radius,omitempty" validate:"gte=0"`
	Points      int       `json:"points,omitempty" validate:"gte=0"`
	Fill        string    `json:"fill" validate:"omitempty,hexcolor"`
	Stroke      string    `json:"stroke,omitempty" validate:"omitempty,hexcolor"`
	StrokeWidth float64   `json:"strokeWidth,omitempty" validate:"gte=0"`
}

func (*ShapeElement) Type() ElementType { return ElementTypeShape }
func (*ShapeElement) sealed()           {}

// Radial reports whether the shape is sized by Radius rather than Width/Height.
func (s *ShapeElement) Radial() bool {
	switch s.Kind {
	case ShapeCircle, ShapeStar, ShapePolygon:
		return true
	}
	return false
}

func (s *ShapeElement) Size() (float64, float64) {
	if s.Radial() {
		return 2 * s.Radius, 2 * s.Radius
	}
	return s.Width, s.Height
}

func (s *ShapeElement) Clone() Element {
	c := *s
	return &c
}

// ImageElement references decoded raster data by Src (a data URL or an
// asset URL); the pixels themselves live in the asset library.
type ImageElement struct {
	Common
	Src           string `json:"src" validate:"required"`
	NaturalWidth  int    `json:"naturalWidth" validate:"gt=0"`
	NaturalHeight int    `json:"naturalHeight" validate:"gt=0"`
}

func (*ImageElement) Type() ElementType { return ElementTypeImage }
func (*ImageElement) sealed()           {}

func (i *ImageElement) Size() (float64, float64) {
	return float64(i.NaturalWidth), float64(i.NaturalHeight)
}

func (i *ImageElement) Clone() Element {
	c := *i
	return &c
}

// ImageFill is a background image scaled to cover the canvas.
type ImageFill struct {
	Src           string  `json:"src" validate:"required"`
	NaturalWidth  int     `json:"naturalWidth" validate:"gt=0"`
	NaturalHeight int     `json:"naturalHeight" validate:"gt=0"`
	Scale         float64 `json:"scale" validate:"gt=0"`
	Left          float64 `json:"left"`
	Top           float64 `json:"top"`
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := *d
	if d.BackgroundImage != nil {
		bg := *d.BackgroundImage
		out.BackgroundImage = &bg
	}
	out.Elements = make(Elements, len(d.Elements))
	for i, el := range d.Elements {
		out.Elements[i] = el.Clone()
	}
	return &out
}
