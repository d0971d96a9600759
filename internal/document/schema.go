package document

// PropertyKind tells a properties panel which control to render.
type PropertyKind string

const (
	KindNumber PropertyKind = "number"
	KindString PropertyKind = "string"
	KindColor  PropertyKind = "color"
	KindBool   PropertyKind = "bool"
	KindEnum   PropertyKind = "enum"
)

// Property describes one editable attribute of an element variant. Name is
// the canonical JSON field name and the matching Patch field.
type Property struct {
	Name   string       `json:"name"`
	Kind   PropertyKind `json:"kind"`
	Values []string     `json:"values,omitempty"`
	Min    *float64     `json:"min,omitempty"`
}

func num(name string, min float64) Property {
	return Property{Name: name, Kind: KindNumber, Min: &min}
}

var geometrySchema = []Property{
	{Name: "x", Kind: KindNumber},
	{Name: "y", Kind: KindNumber},
	{Name: "scaleX", Kind: KindNumber},
	{Name: "scaleY", Kind: KindNumber},
	{Name: "rotation", Kind: KindNumber},
	{Name: "selectable", Kind: KindBool},
}

var variantSchema = map[ElementType][]Property{
	ElementTypeText: {
		{Name: "content", Kind: KindString},
		{Name: "fontFamily", Kind: KindEnum, Values: FontFamilies()},
		num("fontSize", 1),
		{Name: "fontWeight", Kind: KindEnum, Values: []string{string(FontWeightNormal), string(FontWeightBold)}},
		{Name: "fontStyle", Kind: KindEnum, Values: []string{string(FontStyleNormal), string(FontStyleItalic)}},
		{Name: "underline", Kind: KindBool},
		{Name: "fill", Kind: KindColor},
		{Name: "textAlign", Kind: KindEnum, Values: []string{string(AlignLeft), string(AlignCenter), string(AlignRight), string(AlignJustify)}},
		num("width", 1),
	},
	ElementTypeShape: {
		{Name: "fill", Kind: KindColor},
		{Name: "stroke", Kind: KindColor},
		num("strokeWidth", 0),
		num("width", 0),
		num("height", 0),
		num("radius", 0),
		num("points", 3),
	},
	ElementTypeImage: nil,
}

// Schema returns the editable properties of an element variant, geometry
// first. Unknown types yield nil.
func Schema(t ElementType) []Property {
	props, ok := variantSchema[t]
	if !ok {
		return nil
	}
	out := make([]Property, 0, len(geometrySchema)+len(props))
	out = append(out, geometrySchema...)
	return append(out, props...)
}

// FontFamilies lists the families the renderer can draw. Any other family
// falls back to the first entry at export time.
func FontFamilies() []string {
	return []string{"Go", "Go Mono", "Helvetica", "Times New Roman", "Georgia"}
}
