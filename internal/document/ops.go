package document

// ReorderOp names a z-order move.
type ReorderOp string

const (
	ReorderFront    ReorderOp = "front"
	ReorderBack     ReorderOp = "back"
	ReorderForward  ReorderOp = "forward"
	ReorderBackward ReorderOp = "backward"
)

// Valid reports whether op is one of the four known moves.
func (op ReorderOp) Valid() bool {
	switch op {
	case ReorderFront, ReorderBack, ReorderForward, ReorderBackward:
		return true
	}
	return false
}

// Unknown ids are not errors below: stale references after an undo are
// expected, so every operation reports false and leaves the document as is.

// IndexOf returns the z-index of id, or -1.
func (d *Document) IndexOf(id string) int {
	for i, el := range d.Elements {
		if el.Base().ID == id {
			return i
		}
	}
	return -1
}

// Get returns the element with the given id, or nil.
func (d *Document) Get(id string) Element {
	if i := d.IndexOf(id); i >= 0 {
		return d.Elements[i]
	}
	return nil
}

// Add appends el on top of the stack. Duplicate ids are refused.
func (d *Document) Add(el Element) bool {
	if el == nil || d.IndexOf(el.Base().ID) >= 0 {
		return false
	}
	d.Elements = append(d.Elements, el)
	return true
}

// InsertAfter places el directly above the element with the given id.
func (d *Document) InsertAfter(id string, el Element) bool {
	i := d.IndexOf(id)
	if i < 0 || el == nil || d.IndexOf(el.Base().ID) >= 0 {
		return false
	}
	d.Elements = append(d.Elements, nil)
	copy(d.Elements[i+2:], d.Elements[i+1:])
	d.Elements[i+1] = el
	return true
}

func (d *Document) Remove(id string) bool {
	i := d.IndexOf(id)
	if i < 0 {
		return false
	}
	d.Elements = append(d.Elements[:i], d.Elements[i+1:]...)
	return true
}

// Update applies patch to the element with the given id.
func (d *Document) Update(id string, patch Patch) bool {
	el := d.Get(id)
	if el == nil {
		return false
	}
	patch.Apply(el)
	return true
}

// Reorder moves id within the stack. The set of ids never changes; forward
// and backward at their respective boundary are no-ops.
func (d *Document) Reorder(id string, op ReorderOp) bool {
	i := d.IndexOf(id)
	if i < 0 || !op.Valid() {
		return false
	}
	last := len(d.Elements) - 1
	el := d.Elements[i]

	switch op {
	case ReorderFront:
		if i == last {
			return true
		}
		copy(d.Elements[i:], d.Elements[i+1:])
		d.Elements[last] = el
	case ReorderBack:
		if i == 0 {
			return true
		}
		copy(d.Elements[1:i+1], d.Elements[:i])
		d.Elements[0] = el
	case ReorderForward:
		if i < last {
			d.Elements[i], d.Elements[i+1] = d.Elements[i+1], d.Elements[i]
		}
	case ReorderBackward:
		if i > 0 {
			d.Elements[i], d.Elements[i-1] = d.Elements[i-1], d.Elements[i]
		}
	}
	return true
}

// IDs returns the element ids in z-order.
func (d *Document) IDs() []string {
	ids := make([]string, len(d.Elements))
	for i, el := range d.Elements {
		ids[i] = el.Base().ID
	}
	return ids
}

// Patch is a partial update. Nil fields are left untouched; style fields
// that the target variant does not declare are ignored.
type Patch struct {
	// Geometry, all variants.
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	ScaleX     *float64 `json:"scaleX,omitempty"`
	ScaleY     *float64 `json:"scaleY,omitempty"`
	Rotation   *float64 `json:"rotation,omitempty"`
	Selectable *bool    `json:"selectable,omitempty"`

	// Text and shape.
	Fill *string `json:"fill,omitempty"`

	// Text.
	Content    *string     `json:"content,omitempty"`
	FontFamily *string     `json:"fontFamily,omitempty"`
	FontSize   *float64    `json:"fontSize,omitempty"`
	FontWeight *FontWeight `json:"fontWeight,omitempty"`
	FontStyle  *FontStyle  `json:"fontStyle,omitempty"`
	Underline  *bool       `json:"underline,omitempty"`
	TextAlign  *TextAlign  `json:"textAlign,omitempty"`

	// Text box width and shape width.
	Width *float64 `json:"width,omitempty"`

	// Shape.
	Height      *float64 `json:"height,omitempty"`
	Radius      *float64 `json:"radius,omitempty"`
	Points      *int     `json:"points,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

// Apply writes the set fields of p into el.
func (p Patch) Apply(el Element) {
	c := el.Base()
	setF(&c.X, p.X)
	setF(&c.Y, p.Y)
	setF(&c.ScaleX, p.ScaleX)
	setF(&c.ScaleY, p.ScaleY)
	setF(&c.Rotation, p.Rotation)
	if p.Selectable != nil {
		c.Selectable = *p.Selectable
	}

	switch e := el.(type) {
	case *TextElement:
		setS(&e.Fill, p.Fill)
		setS(&e.Content, p.Content)
		setS(&e.FontFamily, p.FontFamily)
		setF(&e.FontSize, p.FontSize)
		if p.FontWeight != nil {
			e.FontWeight = *p.FontWeight
		}
		if p.FontStyle != nil {
			e.FontStyle = *p.FontStyle
		}
		if p.Underline != nil {
			e.Underline = *p.Underline
		}
		if p.TextAlign != nil {
			e.TextAlign = *p.TextAlign
		}
		setF(&e.Width, p.Width)
	case *ShapeElement:
		setS(&e.Fill, p.Fill)
		setS(&e.Stroke, p.Stroke)
		setF(&e.StrokeWidth, p.StrokeWidth)
		setF(&e.Width, p.Width)
		setF(&e.Height, p.Height)
		setF(&e.Radius, p.Radius)
		if p.Points != nil {
			e.Points = *p.Points
		}
	}
}

func setF(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setS(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
