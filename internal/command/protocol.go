package command

import (
	"encoding/json"

	"github.com/certdesk/certdesk/backend-go/internal/asset"
	"github.com/certdesk/certdesk/backend-go/internal/document"
	"github.com/certdesk/certdesk/backend-go/internal/engine"
	"github.com/certdesk/certdesk/backend-go/internal/export"
)

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// set only on internal messages produced by a Job
	ready    *asset.Result
	exported *ExportedPayload
	err      error
}

const (
	// Connection
	TypeWelcome = "welcome"
	TypeError   = "error"

	// Editor state, sent after every accepted command
	TypeEditorState = "editor.state"
	TypeSaved       = "document.saved"

	// Commands
	TypeInit           = "editor.init"
	TypePointerDown    = "pointer.down"
	TypePointerMove    = "pointer.move"
	TypePointerUp      = "pointer.up"
	TypeSelect         = "element.select"
	TypeAdd            = "element.add"
	TypeUpdate         = "element.update"
	TypeClone          = "element.clone"
	TypeDelete         = "element.delete"
	TypeReorder        = "element.reorder"
	TypeResize         = "element.resize"
	TypeRotate         = "element.rotate"
	TypeUndo           = "history.undo"
	TypeRedo           = "history.redo"
	TypeKey            = "key"
	TypeBackground     = "background.set"
	TypeAssetIngest    = "asset.ingest"
	TypeSave           = "document.save"
	TypeLoad           = "document.load"
	TypePreset         = "preset.set"
	TypeViewportLayout = "viewport.layout"
	TypeExport         = "document.export"
	TypeExported       = "document.exported"

	// Job results re-entering the event loop
	typeAssetReady  = "asset.ready"
	typeExportReady = "export.ready"
)

// Error codes
const (
	CodeValidation = "validation"
	CodeDecode     = "decode"
	CodeExport     = "export"
	CodeBadRequest = "bad_request"
	CodeInternal   = "internal"
)

type InitPayload struct {
	// Document is an optional canonical document to open.
	Document json.RawMessage `json:"document,omitempty"`
	// Sample opens the starter certificate instead of a blank canvas.
	Sample bool `json:"sample,omitempty"`
}

type PointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type DeltaPayload struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type SelectPayload struct {
	ID string `json:"id"`
}

type AddPayload struct {
	Type    document.ElementType `json:"type"`
	Shape   document.ShapeKind   `json:"shape,omitempty"`
	Content string               `json:"content,omitempty"`

	// Pre-decoded image reference
	Src           string  `json:"src,omitempty"`
	NaturalWidth  int     `json:"naturalWidth,omitempty"`
	NaturalHeight int     `json:"naturalHeight,omitempty"`
	Scale         float64 `json:"scale,omitempty"`
}

type ReorderPayload struct {
	Op document.ReorderOp `json:"op"`
}

type ResizePayload struct {
	Handle engine.Handle `json:"handle"`
	DX     float64       `json:"dx"`
	DY     float64       `json:"dy"`
}

type RotatePayload struct {
	Degrees float64 `json:"degrees"`
}

type BackgroundPayload struct {
	Color      *string             `json:"color,omitempty"`
	Image      *document.ImageFill `json:"image,omitempty"`
	ClearImage bool                `json:"clearImage,omitempty"`
}

type IngestPayload struct {
	Kind asset.Kind `json:"kind"`
	Name string     `json:"name"`
	MIME string     `json:"mime"`
	// Data is base64 in JSON.
	Data []byte `json:"data"`
}

type LoadPayload struct {
	Document json.RawMessage `json:"document"`
}

type PresetPayload struct {
	Name string `json:"name"`
}

type LayoutPayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type StatePayload struct {
	Frame    engine.Frame `json:"frame"`
	ActiveID string       `json:"activeId,omitempty"`
	CanUndo  bool         `json:"canUndo"`
	CanRedo  bool         `json:"canRedo"`
	// Created is the id of an element the command created, if any.
	Created string `json:"created,omitempty"`
}

type ExportPayload struct {
	Format export.Format `json:"format"`
	Name   string        `json:"name,omitempty"`
}

type ExportedPayload struct {
	Format      export.Format `json:"format"`
	Filename    string        `json:"filename"`
	ContentType string        `json:"contentType"`
	Data        []byte        `json:"data"`
}

type SavedPayload struct {
	Document json.RawMessage `json:"document"`
}

type ErrorPayload struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Problems []string `json:"problems,omitempty"`
}

type WelcomePayload struct {
	SessionID string            `json:"sessionId"`
	Presets   []document.Preset `json:"presets"`
	Fonts     []string          `json:"fonts"`
}

// Welcome greets a freshly connected session.
func Welcome(sessionID string) Message {
	return encode(TypeWelcome, 0, WelcomePayload{
		SessionID: sessionID,
		Presets:   document.Presets(),
		Fonts:     document.FontFamilies(),
	})
}
