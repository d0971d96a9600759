package document

// NewSampleDocument builds a starter certificate on the given preset:
// a border frame, a title, a recipient line and a seal.
// newID supplies element ids so callers control the id scheme.
func NewSampleDocument(p Preset, newID func() string) *Document {
	w, h := float64(p.Width), float64(p.Height)
	doc := Blank(p)
	doc.BackgroundColor = "#fdfaf3"

	frame := &ShapeElement{
		Common:      Common{ID: newID(), X: 24, Y: 24, ScaleX: 1, ScaleY: 1, Selectable: false},
		Kind:        ShapeRect,
		Width:       w - 48,
		Height:      h - 48,
		Fill:        "",
		Stroke:      "#b08d57",
		StrokeWidth: 6,
	}

	title := &TextElement{
		Common:     Common{ID: newID(), X: w * 0.1, Y: h * 0.18, ScaleX: 1, ScaleY: 1, Selectable: true},
		Content:    "Certificate of Achievement",
		FontFamily: "Go",
		FontSize:   48,
		FontWeight: FontWeightBold,
		FontStyle:  FontStyleNormal,
		Fill:       "#1f2937",
		TextAlign:  AlignCenter,
		Width:      w * 0.8,
	}

	recipient := &TextElement{
		Common:     Common{ID: newID(), X: w * 0.2, Y: h * 0.42, ScaleX: 1, ScaleY: 1, Selectable: true},
		Content:    "Recipient Name",
		FontFamily: "Go",
		FontSize:   36,
		FontWeight: FontWeightNormal,
		FontStyle:  FontStyleItalic,
		Underline:  true,
		Fill:       "#374151",
		TextAlign:  AlignCenter,
		Width:      w * 0.6,
	}

	seal := &ShapeElement{
		Common: Common{ID: newID(), X: w*0.5 - 60, Y: h*0.68 - 20, ScaleX: 1, ScaleY: 1, Selectable: true},
		Kind:   ShapeStar,
		Radius: 60,
		Points: 12,
		Fill:   "#d4a017",
	}

	doc.Elements = Elements{frame, title, recipient, seal}
	return doc
}
