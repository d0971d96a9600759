package document

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("el_%d", n)
	}
}

func rect(id string) *ShapeElement {
	return &ShapeElement{
		Common: Common{ID: id, ScaleX: 1, ScaleY: 1, Selectable: true},
		Kind:   ShapeRect, Width: 10, Height: 10, Fill: "#000000",
	}
}

func docWith(ids ...string) *Document {
	doc := Blank(presets[PresetLetter])
	for _, id := range ids {
		doc.Add(rect(id))
	}
	return doc
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name string
		id   string
		op   ReorderOp
		want []string
	}{
		{"front", "b", ReorderFront, []string{"a", "c", "d", "b"}},
		{"back", "c", ReorderBack, []string{"c", "a", "b", "d"}},
		{"forward", "b", ReorderForward, []string{"a", "c", "b", "d"}},
		{"backward", "c", ReorderBackward, []string{"a", "c", "b", "d"}},
		{"forward at top", "d", ReorderForward, []string{"a", "b", "c", "d"}},
		{"backward at bottom", "a", ReorderBackward, []string{"a", "b", "c", "d"}},
		{"front already on top", "d", ReorderFront, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docWith("a", "b", "c", "d")
			assert.True(t, doc.Reorder(tt.id, tt.op))
			assert.Equal(t, tt.want, doc.IDs())
		})
	}
}

func TestReorderFrontThenBackRestoresBottomElement(t *testing.T) {
	doc := docWith("a", "b", "c")
	before := doc.IDs()

	doc.Reorder("a", ReorderFront)
	doc.Reorder("a", ReorderBack)

	assert.Equal(t, before, doc.IDs())
}

func TestUnknownIDIsNoOp(t *testing.T) {
	doc := docWith("a", "b")
	before := doc.Clone()

	x := 5.0
	assert.False(t, doc.Remove("zz"))
	assert.False(t, doc.Update("zz", Patch{X: &x}))
	assert.False(t, doc.Reorder("zz", ReorderFront))
	assert.False(t, doc.InsertAfter("zz", rect("c")))
	assert.Nil(t, doc.Get("zz"))
	assert.Equal(t, -1, doc.IndexOf("zz"))

	assert.True(t, Equal(before, doc))
}

func TestAddRefusesDuplicateID(t *testing.T) {
	doc := docWith("a")
	assert.False(t, doc.Add(rect("a")))
	assert.Len(t, doc.Elements, 1)
}

func TestInsertAfter(t *testing.T) {
	doc := docWith("a", "b", "c")
	require.True(t, doc.InsertAfter("a", rect("x")))
	assert.Equal(t, []string{"a", "x", "b", "c"}, doc.IDs())

	require.True(t, doc.InsertAfter("c", rect("y")))
	assert.Equal(t, []string{"a", "x", "b", "c", "y"}, doc.IDs())
}

func TestPatchIgnoresUndeclaredFields(t *testing.T) {
	img := &ImageElement{
		Common: Common{ID: "img", ScaleX: 1, ScaleY: 1, Selectable: true},
		Src:    "data:image/png;base64,AAAA", NaturalWidth: 4, NaturalHeight: 4,
	}
	doc := Blank(presets[PresetA4])
	doc.Add(img)

	fill, x := "#ff0000", 40.0
	require.True(t, doc.Update("img", Patch{Fill: &fill, X: &x}))

	assert.Equal(t, 40.0, img.X)
	assert.Equal(t, "data:image/png;base64,AAAA", img.Src)
}

func TestPatchText(t *testing.T) {
	doc := NewSampleDocument(presets[PresetLetter], seqIDs())
	title := doc.Get("el_2").(*TextElement)

	weight, content := FontWeightNormal, "Diploma"
	doc.Update("el_2", Patch{FontWeight: &weight, Content: &content})

	assert.Equal(t, FontWeightNormal, title.FontWeight)
	assert.Equal(t, "Diploma", title.Content)
}

func TestRoundTripIsContentEqual(t *testing.T) {
	doc := NewSampleDocument(presets[PresetLetter], seqIDs())
	doc.BackgroundImage = &ImageFill{Src: "/assets/bg.png", NaturalWidth: 2000, NaturalHeight: 1000, Scale: 0.816, Left: -288, Top: 0}
	doc.Add(&ImageElement{
		Common: Common{ID: "logo", X: 30, Y: 40, ScaleX: 0.5, ScaleY: 0.5, Rotation: 15, Selectable: true},
		Src:    "/assets/logo.png", NaturalWidth: 200, NaturalHeight: 100,
	})

	data, err := Marshal(doc)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, doc.IDs(), got.IDs())
	assert.Equal(t, doc, got)
	assert.True(t, Equal(doc, got))
}

func TestMarshalShape(t *testing.T) {
	doc := Blank(presets[PresetLetter])
	data, err := Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"width":1056,"height":816,"backgroundColor":"#ffffff","elements":[]}`, string(data))

	doc.Add(rect("r1"))
	data, err = Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"elements":[{"type":"shape","id":"r1"`)
}

func TestUnmarshalRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			"unknown type",
			`{"width":10,"height":10,"backgroundColor":"#fff","elements":[{"type":"video","id":"a"}]}`,
			"unknown element type",
		},
		{
			"duplicate ids",
			`{"width":10,"height":10,"backgroundColor":"#fff","elements":[
				{"type":"shape","id":"a","scaleX":1,"scaleY":1,"kind":"rect","width":1,"height":1,"fill":"#000"},
				{"type":"shape","id":"a","scaleX":1,"scaleY":1,"kind":"rect","width":1,"height":1,"fill":"#000"}]}`,
			"duplicate id",
		},
		{
			"bad color",
			`{"width":10,"height":10,"backgroundColor":"blue","elements":[]}`,
			"backgroundColor",
		},
		{
			"zero size",
			`{"width":0,"height":10,"backgroundColor":"#fff","elements":[]}`,
			"width",
		},
		{
			"circle without radius",
			`{"width":10,"height":10,"backgroundColor":"#fff","elements":[
				{"type":"shape","id":"a","scaleX":1,"scaleY":1,"kind":"circle","fill":"#000"}]}`,
			"radius",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Unmarshal([]byte(tt.data))
			assert.Nil(t, doc)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.want)
		})
	}
}

func TestUnmarshalMalformedJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`{"width":`))
	require.Error(t, err)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestCloneIsDeep(t *testing.T) {
	doc := NewSampleDocument(presets[PresetA4], seqIDs())
	cp := doc.Clone()

	cp.Elements[1].Base().X = 999
	cp.Reorder("el_1", ReorderFront)

	assert.NotEqual(t, 999.0, doc.Elements[1].Base().X)
	assert.Equal(t, "el_1", doc.Elements[0].Base().ID)
}

func TestSchema(t *testing.T) {
	text := Schema(ElementTypeText)
	names := make([]string, len(text))
	for i, p := range text {
		names[i] = p.Name
	}
	assert.Contains(t, names, "fontWeight")
	assert.Contains(t, names, "x")
	assert.NotContains(t, names, "radius")

	assert.Len(t, Schema(ElementTypeImage), len(geometrySchema))
	assert.Nil(t, Schema("video"))
}

func TestPresets(t *testing.T) {
	p, err := LookupPreset("a4")
	require.NoError(t, err)
	assert.Equal(t, 1123, p.Width)

	_, err = LookupPreset("legal")
	require.Error(t, err)

	found, ok := PresetFor(1056, 816)
	require.True(t, ok)
	assert.Equal(t, PresetLetter, found.Name)

	assert.Len(t, Presets(), 2)
}

func TestTextSize(t *testing.T) {
	txt := &TextElement{Content: "one\ntwo", FontSize: 10, Width: 100}
	w, h := txt.Size()
	assert.Equal(t, 100.0, w)
	assert.InDelta(t, 23.2, h, 1e-9)

	star := &ShapeElement{Kind: ShapeStar, Radius: 30}
	w, h = star.Size()
	assert.Equal(t, 60.0, w)
	assert.Equal(t, 60.0, h)
}
