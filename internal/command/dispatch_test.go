package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certdesk/certdesk/backend-go/internal/asset"
	"github.com/certdesk/certdesk/backend-go/internal/document"
	"github.com/certdesk/certdesk/backend-go/internal/engine"
	"github.com/certdesk/certdesk/backend-go/internal/export"
)

type harness struct {
	t   *testing.T
	d   *Dispatcher
	seq int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	lib := asset.NewLibrary("")
	d := NewDispatcher(engine.New(engine.Options{}), asset.NewIngestor(asset.DefaultLimits(), lib), lib, nil)
	return &harness{t: t, d: d}
}

func (h *harness) send(typ string, payload any) Reply {
	h.t.Helper()
	h.seq++
	msg := Message{Type: typ, Seq: h.seq}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(h.t, err)
		msg.Payload = data
	}
	return h.d.Handle(msg)
}

func (h *harness) state(r Reply) StatePayload {
	h.t.Helper()
	require.NotEmpty(h.t, r.Messages)
	last := r.Messages[len(r.Messages)-1]
	require.Equal(h.t, TypeEditorState, last.Type, string(last.Payload))
	var s StatePayload
	require.NoError(h.t, json.Unmarshal(last.Payload, &s))
	return s
}

func (h *harness) failure(r Reply) ErrorPayload {
	h.t.Helper()
	require.Len(h.t, r.Messages, 1)
	require.Equal(h.t, TypeError, r.Messages[0].Type)
	var p ErrorPayload
	require.NoError(h.t, json.Unmarshal(r.Messages[0].Payload, &p))
	return p
}

// run executes a reply's job inline and feeds the result back.
func (h *harness) run(r Reply) Reply {
	h.t.Helper()
	require.NotNil(h.t, r.Job)
	return h.d.Handle(r.Job(context.Background()))
}

func pngData(t *testing.T, w, hgt int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, hgt))))
	return buf.Bytes()
}

func center(box *engine.SelectionBox) (float64, float64) {
	var x, y float64
	for _, c := range box.Corners {
		x += c[0] / 4
		y += c[1] / 4
	}
	return x, y
}

func TestCommandsRequireInit(t *testing.T) {
	h := newHarness(t)
	p := h.failure(h.send(TypeUndo, nil))
	assert.Equal(t, CodeBadRequest, p.Code)
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	s := h.state(h.send(TypeInit, nil))
	assert.Equal(t, 1056, s.Frame.Width)
	assert.Len(t, s.Frame.Commands, 1)
	assert.False(t, s.CanUndo)

	s = h.state(h.send(TypeInit, InitPayload{Sample: true}))
	assert.Len(t, s.Frame.Commands, 5)
	assert.False(t, s.CanUndo)

	doc, err := document.Marshal(document.Blank(document.Preset{Width: 300, Height: 200}))
	require.NoError(t, err)
	s = h.state(h.send(TypeInit, InitPayload{Document: doc}))
	assert.Equal(t, 300, s.Frame.Width)
}

func TestStateEchoesSeq(t *testing.T) {
	h := newHarness(t)
	r := h.send(TypeInit, nil)
	assert.Equal(t, h.seq, r.Messages[0].Seq)
}

func TestAddUndoRedo(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)

	s := h.state(h.send(TypeAdd, AddPayload{Type: document.ElementTypeText, Content: "Certificate"}))
	require.NotEmpty(t, s.Created)
	assert.Equal(t, s.Created, s.ActiveID)
	assert.Len(t, s.Frame.Commands, 2)
	assert.True(t, s.CanUndo)

	s = h.state(h.send(TypeUndo, nil))
	assert.Len(t, s.Frame.Commands, 1)
	assert.True(t, s.CanRedo)

	s = h.state(h.send(TypeRedo, nil))
	assert.Len(t, s.Frame.Commands, 2)
}

func TestAddRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)

	assert.Equal(t, CodeBadRequest, h.failure(h.send(TypeAdd, AddPayload{Type: document.ElementTypeShape, Shape: "hexagon"})).Code)
	assert.Equal(t, CodeBadRequest, h.failure(h.send(TypeAdd, AddPayload{Type: "video"})).Code)
	assert.Equal(t, CodeBadRequest, h.failure(h.send(TypeAdd, AddPayload{Type: document.ElementTypeImage})).Code)
	assert.Equal(t, CodeBadRequest, h.failure(h.d.Handle(Message{Type: TypeAdd, Payload: json.RawMessage(`{"type":`)})).Code)
}

func TestUpdateValidation(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)
	h.send(TypeAdd, AddPayload{Type: document.ElementTypeShape, Shape: document.ShapeRect})

	bad := "red"
	p := h.failure(h.send(TypeUpdate, document.Patch{Fill: &bad}))
	assert.Equal(t, CodeValidation, p.Code)
	assert.NotEmpty(t, p.Problems)

	good := "#ff0000"
	s := h.state(h.send(TypeUpdate, document.Patch{Fill: &good}))
	assert.Equal(t, good, s.Frame.Commands[1].Fill)
}

func TestPointerDrag(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)
	h.send(TypeViewportLayout, LayoutPayload{Width: 1200, Height: 900})
	s := h.state(h.send(TypeAdd, AddPayload{Type: document.ElementTypeShape, Shape: document.ShapeRect}))
	require.NotNil(t, s.Frame.Selection)
	startX := s.Frame.Selection.Corners[0][0]
	cx, cy := center(s.Frame.Selection)

	s = h.state(h.send(TypePointerDown, PointPayload{X: cx, Y: cy}))
	assert.NotEmpty(t, s.ActiveID)
	h.send(TypePointerMove, DeltaPayload{DX: 50})
	s = h.state(h.send(TypePointerUp, nil))

	assert.InDelta(t, startX+50, s.Frame.Selection.Corners[0][0], 1e-6)
	assert.Empty(t, s.Frame.Guides)

	s = h.state(h.send(TypeUndo, nil))
	assert.Equal(t, 2, len(s.Frame.Commands))
}

func TestCloneByKey(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)
	first := h.state(h.send(TypeAdd, AddPayload{Type: document.ElementTypeShape, Shape: document.ShapeStar})).Created

	s := h.state(h.send(TypeKey, engine.Key{Name: "d", Ctrl: true}))
	assert.NotEmpty(t, s.Created)
	assert.NotEqual(t, first, s.Created)
	assert.Len(t, s.Frame.Commands, 3)

	s = h.state(h.send(TypeKey, engine.Key{Name: "Delete"}))
	assert.Len(t, s.Frame.Commands, 2)
	assert.Empty(t, s.Created)
}

func TestReorderAndResize(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)
	a := h.state(h.send(TypeAdd, AddPayload{Type: document.ElementTypeShape, Shape: document.ShapeRect})).Created
	h.send(TypeAdd, AddPayload{Type: document.ElementTypeShape, Shape: document.ShapeCircle})
	h.send(TypeSelect, SelectPayload{ID: a})

	s := h.state(h.send(TypeReorder, ReorderPayload{Op: document.ReorderFront}))
	assert.Equal(t, a, s.Frame.Commands[2].ObjectID)

	assert.Equal(t, CodeBadRequest, h.failure(h.send(TypeReorder, ReorderPayload{Op: "sideways"})).Code)
	assert.Equal(t, CodeBadRequest, h.failure(h.send(TypeResize, ResizePayload{Handle: engine.HandleRotate})).Code)

	s = h.state(h.send(TypeRotate, RotatePayload{Degrees: -90}))
	assert.True(t, s.CanUndo)

	s = h.state(h.send(TypeSelect, SelectPayload{}))
	assert.Empty(t, s.ActiveID)
	assert.Nil(t, s.Frame.Selection)
}

func TestBackground(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)

	bad := "blue"
	assert.Equal(t, CodeValidation, h.failure(h.send(TypeBackground, BackgroundPayload{Color: &bad})).Code)

	good := "#0f172a"
	s := h.state(h.send(TypeBackground, BackgroundPayload{Color: &good}))
	assert.Equal(t, good, s.Frame.Commands[0].Fill)

	s = h.state(h.send(TypeBackground, BackgroundPayload{Image: &document.ImageFill{Src: "data:x", NaturalWidth: 10, NaturalHeight: 10, Scale: 2}}))
	assert.Equal(t, "image", s.Frame.Commands[1].Op)

	s = h.state(h.send(TypeBackground, BackgroundPayload{ClearImage: true}))
	assert.Len(t, s.Frame.Commands, 1)
}

func TestBackgroundFailureLeavesDocumentUntouched(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)
	before := h.d.Editor().Document().Clone()

	color := "#0f172a"
	p := h.failure(h.send(TypeBackground, BackgroundPayload{Color: &color, Image: &document.ImageFill{Src: "x", Scale: 1}}))
	assert.Equal(t, CodeValidation, p.Code)
	assert.True(t, document.Equal(before, h.d.Editor().Document()))
	assert.False(t, h.d.Editor().CanUndo())

	h.state(h.send(TypeAdd, AddPayload{Type: document.ElementTypeText, Content: "a"}))
	s := h.state(h.send(TypeUndo, nil))
	assert.False(t, s.CanUndo)
	assert.Len(t, s.Frame.Commands, 1)
}

func TestSaveAndLoad(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, InitPayload{Sample: true})

	r := h.send(TypeSave, nil)
	require.Len(t, r.Messages, 2)
	assert.Equal(t, TypeSaved, r.Messages[0].Type)
	var saved SavedPayload
	require.NoError(t, json.Unmarshal(r.Messages[0].Payload, &saved))
	_, err := document.Unmarshal(saved.Document)
	require.NoError(t, err)

	h.send(TypePreset, PresetPayload{Name: document.PresetA4})
	s := h.state(h.send(TypeLoad, LoadPayload{Document: saved.Document}))
	assert.Equal(t, 1056, s.Frame.Width)
	assert.Len(t, s.Frame.Commands, 5)
	assert.False(t, s.CanUndo)

	assert.Equal(t, CodeValidation, h.failure(h.send(TypeLoad, LoadPayload{Document: json.RawMessage(`{"width":0,"height":1,"backgroundColor":"#fff","elements":[]}`)})).Code)
	assert.Equal(t, CodeBadRequest, h.failure(h.send(TypeLoad, LoadPayload{Document: json.RawMessage(`"nope"`)})).Code)
	assert.Equal(t, CodeBadRequest, h.failure(h.send(TypeLoad, LoadPayload{})).Code)
}

func TestPreset(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)
	s := h.state(h.send(TypePreset, PresetPayload{Name: document.PresetA4}))
	assert.Equal(t, 1123, s.Frame.Width)
	assert.Equal(t, CodeBadRequest, h.failure(h.send(TypePreset, PresetPayload{Name: "tabloid"})).Code)
}

func TestAssetIngest(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)

	p := h.failure(h.send(TypeAssetIngest, IngestPayload{Kind: asset.KindElement, Name: "a.txt", MIME: "text/plain", Data: []byte("x")}))
	assert.Equal(t, CodeValidation, p.Code)

	r := h.send(TypeAssetIngest, IngestPayload{Kind: asset.KindElement, Name: "wide.png", MIME: "image/png", Data: pngData(t, 720, 100)})
	assert.Empty(t, r.Messages)
	s := h.state(h.run(r))
	require.NotEmpty(t, s.Created)
	img := s.Frame.Commands[1]
	assert.Equal(t, "image", img.Op)
	assert.Equal(t, 720.0, img.Width)
	assert.InDelta(t, 0.5, img.Transform[0], 1e-9)

	r = h.send(TypeAssetIngest, IngestPayload{Kind: asset.KindBackground, Name: "bg.png", MIME: "image/png", Data: pngData(t, 528, 408)})
	s = h.state(h.run(r))
	assert.Equal(t, "image", s.Frame.Commands[1].Op)
	assert.Empty(t, s.Created)
}

func TestAssetDecodeFailure(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)
	r := h.send(TypeAssetIngest, IngestPayload{Kind: asset.KindElement, Name: "junk.png", MIME: "image/png", Data: []byte("junk")})
	p := h.failure(h.run(r))
	assert.Equal(t, CodeDecode, p.Code)
}

func TestForgedInternalMessages(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, nil)
	assert.Equal(t, CodeBadRequest, h.failure(h.send(typeAssetReady, nil)).Code)
	assert.Equal(t, CodeBadRequest, h.failure(h.send(typeExportReady, nil)).Code)
	assert.Equal(t, CodeBadRequest, h.failure(h.send("object.teleport", nil)).Code)
}

func TestExportCommand(t *testing.T) {
	h := newHarness(t)
	h.send(TypeInit, InitPayload{Sample: true})

	r := h.send(TypeExport, ExportPayload{Format: export.FormatTemplate, Name: "award"})
	r = h.run(r)
	require.Len(t, r.Messages, 2)
	assert.Equal(t, TypeExported, r.Messages[0].Type)

	var out ExportedPayload
	require.NoError(t, json.Unmarshal(r.Messages[0].Payload, &out))
	assert.Equal(t, "award-template.json", out.Filename)
	_, err := document.Unmarshal(out.Data)
	assert.NoError(t, err)

	assert.Equal(t, CodeExport, h.failure(h.send(TypeExport, ExportPayload{Format: "svg"})).Code)
}

func TestErrorMessageCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{&document.ValidationError{Problems: []string{"x"}}, CodeValidation},
		{&asset.ValidationError{Name: "a", Reason: "b"}, CodeValidation},
		{&asset.DecodeError{Name: "a", TimedOut: true, Err: context.DeadlineExceeded}, CodeDecode},
		{&export.Error{Format: export.FormatPDF, Err: errors.New("boom")}, CodeExport},
		{engine.ErrNotInitialized, CodeBadRequest},
		{errors.New("disk full"), CodeInternal},
	}
	for _, tt := range tests {
		msg := ErrorMessage(7, tt.err)
		var p ErrorPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.Equal(t, tt.code, p.Code, tt.err.Error())
		assert.Equal(t, int64(7), msg.Seq)
	}
}
