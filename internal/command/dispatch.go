package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/certdesk/certdesk/backend-go/internal/asset"
	"github.com/certdesk/certdesk/backend-go/internal/document"
	"github.com/certdesk/certdesk/backend-go/internal/engine"
	"github.com/certdesk/certdesk/backend-go/internal/export"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadPayload     = errors.New("bad payload")
	ErrUnavailable    = errors.New("command unavailable")
)

// Job is blocking work a command hands off the event loop. It must not
// touch the editor; the message it returns goes back through Handle.
type Job func(ctx context.Context) Message

// Reply is what Handle produces for one message.
type Reply struct {
	Messages []Message
	Job      Job
}

// Dispatcher maps protocol messages onto one editor. Handle must be called
// from a single goroutine.
type Dispatcher struct {
	editor   *engine.Editor
	ingestor *asset.Ingestor
	resolver export.Resolver
	log      *slog.Logger
}

// NewDispatcher wires an editor to its asset ingestor and image resolver.
// Either may be nil, which disables asset.ingest or image export.
func NewDispatcher(editor *engine.Editor, ingestor *asset.Ingestor, resolver export.Resolver, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{editor: editor, ingestor: ingestor, resolver: resolver, log: log}
}

func (d *Dispatcher) Editor() *engine.Editor { return d.editor }

type result struct {
	created string
	job     Job
	extra   []Message
}

// Handle applies msg. Accepted commands answer with editor.state (plus any
// extra messages); failures answer with a single error message and leave
// the document untouched.
func (d *Dispatcher) Handle(msg Message) Reply {
	res, err := d.apply(msg)
	if err != nil {
		d.log.Debug("command rejected", "type", msg.Type, "seq", msg.Seq, "error", err)
		return Reply{Messages: []Message{ErrorMessage(msg.Seq, err)}}
	}
	if res.job != nil {
		return Reply{Messages: res.extra, Job: res.job}
	}
	return Reply{Messages: append(res.extra, d.State(msg.Seq, res.created))}
}

// State snapshots the editor for the client.
func (d *Dispatcher) State(seq int64, created string) Message {
	return encode(TypeEditorState, seq, StatePayload{
		Frame:    d.editor.Render(),
		ActiveID: d.editor.ActiveID(),
		CanUndo:  d.editor.CanUndo(),
		CanRedo:  d.editor.CanRedo(),
		Created:  created,
	})
}

func (d *Dispatcher) apply(msg Message) (result, error) {
	if msg.Type == TypeInit {
		return result{}, d.init(msg)
	}
	if !d.editor.Initialized() {
		return result{}, engine.ErrNotInitialized
	}

	ed := d.editor
	switch msg.Type {
	case TypePointerDown:
		p, err := decode[PointPayload](msg)
		if err != nil {
			return result{}, err
		}
		ed.PointerDown(p.X, p.Y)

	case TypePointerMove:
		p, err := decode[DeltaPayload](msg)
		if err != nil {
			return result{}, err
		}
		ed.PointerMove(p.DX, p.DY)

	case TypePointerUp:
		ed.PointerUp()

	case TypeSelect:
		p, err := decode[SelectPayload](msg)
		if err != nil {
			return result{}, err
		}
		if p.ID == "" {
			ed.ClearSelection()
		} else {
			ed.Select(p.ID)
		}

	case TypeAdd:
		return d.add(msg)

	case TypeUpdate:
		p, err := decode[document.Patch](msg)
		if err != nil {
			return result{}, err
		}
		return result{}, ed.UpdateActive(p)

	case TypeClone:
		id, _ := ed.Clone()
		return result{created: id}, nil

	case TypeDelete:
		ed.DeleteActive()

	case TypeReorder:
		p, err := decode[ReorderPayload](msg)
		if err != nil {
			return result{}, err
		}
		if !p.Op.Valid() {
			return result{}, fmt.Errorf("%w: reorder op %q", ErrBadPayload, p.Op)
		}
		ed.ReorderActive(p.Op)

	case TypeResize:
		p, err := decode[ResizePayload](msg)
		if err != nil {
			return result{}, err
		}
		if !p.Handle.Valid() || p.Handle == engine.HandleRotate {
			return result{}, fmt.Errorf("%w: resize handle %q", ErrBadPayload, p.Handle)
		}
		if ed.ResizeActive(p.Handle, p.DX, p.DY) {
			ed.EndDrag()
		}

	case TypeRotate:
		p, err := decode[RotatePayload](msg)
		if err != nil {
			return result{}, err
		}
		if ed.RotateActive(p.Degrees) {
			ed.EndDrag()
		}

	case TypeUndo:
		ed.Undo()

	case TypeRedo:
		ed.Redo()

	case TypeKey:
		p, err := decode[engine.Key](msg)
		if err != nil {
			return result{}, err
		}
		var created string
		before := ed.ActiveID()
		ed.HandleKey(p)
		if id := ed.ActiveID(); id != before && id != "" {
			created = id
		}
		return result{created: created}, nil

	case TypeBackground:
		return result{}, d.background(msg)

	case TypeAssetIngest:
		return d.ingest(msg)

	case typeAssetReady:
		return d.ingested(msg)

	case TypeSave:
		if err := ed.Save(); err != nil {
			return result{}, err
		}
		data, err := ed.Canonical()
		if err != nil {
			return result{}, err
		}
		return result{extra: []Message{encode(TypeSaved, msg.Seq, SavedPayload{Document: data})}}, nil

	case TypeLoad:
		p, err := decode[LoadPayload](msg)
		if err != nil {
			return result{}, err
		}
		return result{}, load(ed, p.Document)

	case TypePreset:
		p, err := decode[PresetPayload](msg)
		if err != nil {
			return result{}, err
		}
		if err := ed.SetPreset(p.Name); err != nil {
			return result{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}

	case TypeViewportLayout:
		p, err := decode[LayoutPayload](msg)
		if err != nil {
			return result{}, err
		}
		ed.Layout(p.Width, p.Height)

	case TypeExport:
		return d.export(msg)

	case typeExportReady:
		if msg.err != nil {
			return result{}, msg.err
		}
		if msg.exported == nil {
			return result{}, fmt.Errorf("%w: %s", ErrUnknownCommand, msg.Type)
		}
		return result{extra: []Message{encode(TypeExported, msg.Seq, msg.exported)}}, nil

	default:
		return result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Type)
	}
	return result{}, nil
}

func (d *Dispatcher) init(msg Message) error {
	p, err := decode[InitPayload](msg)
	if err != nil {
		return err
	}
	if err := d.editor.Init(); err != nil {
		return err
	}
	switch {
	case len(p.Document) > 0 && !bytes.Equal(p.Document, []byte("null")):
		return load(d.editor, p.Document)
	case p.Sample:
		return d.editor.LoadSample()
	}
	return nil
}

func load(ed *engine.Editor, raw json.RawMessage) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: missing document", ErrBadPayload)
	}
	err := ed.Load(raw)
	var verr *document.ValidationError
	if err != nil && !errors.As(err, &verr) {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return err
}

func (d *Dispatcher) add(msg Message) (result, error) {
	p, err := decode[AddPayload](msg)
	if err != nil {
		return result{}, err
	}
	switch p.Type {
	case document.ElementTypeText:
		return result{created: d.editor.AddText(p.Content)}, nil
	case document.ElementTypeShape:
		id, ok := d.editor.AddShape(p.Shape)
		if !ok {
			return result{}, fmt.Errorf("%w: shape kind %q", ErrBadPayload, p.Shape)
		}
		return result{created: id}, nil
	case document.ElementTypeImage:
		id, ok := d.editor.AddImage(p.Src, p.NaturalWidth, p.NaturalHeight, p.Scale)
		if !ok {
			return result{}, fmt.Errorf("%w: image needs src and natural size", ErrBadPayload)
		}
		return result{created: id}, nil
	}
	return result{}, fmt.Errorf("%w: element type %q", ErrBadPayload, p.Type)
}

func (d *Dispatcher) background(msg Message) error {
	p, err := decode[BackgroundPayload](msg)
	if err != nil {
		return err
	}
	return d.editor.SetBackground(p.Color, p.Image, p.ClearImage)
}

// ingest validates on the loop and schedules the decode off it.
func (d *Dispatcher) ingest(msg Message) (result, error) {
	if d.ingestor == nil {
		return result{}, fmt.Errorf("%w: %s", ErrUnavailable, msg.Type)
	}
	p, err := decode[IngestPayload](msg)
	if err != nil {
		return result{}, err
	}
	f := asset.File{Name: p.Name, MIME: p.MIME, Data: p.Data}
	if err := d.ingestor.Validate(f, p.Kind); err != nil {
		return result{}, err
	}

	w, h := d.editor.Size()
	ingestor, seq, kind := d.ingestor, msg.Seq, p.Kind
	return result{job: func(ctx context.Context) Message {
		res, err := ingestor.Ingest(ctx, f, kind, w, h)
		return Message{Type: typeAssetReady, Seq: seq, ready: res, err: err}
	}}, nil
}

func (d *Dispatcher) ingested(msg Message) (result, error) {
	if msg.err != nil {
		return result{}, msg.err
	}
	res := msg.ready
	if res == nil {
		return result{}, fmt.Errorf("%w: %s", ErrUnknownCommand, msg.Type)
	}
	if res.Kind == asset.KindBackground {
		// the canvas may have changed size while decoding
		w, h := d.editor.Size()
		res.Place(float64(w), float64(h))
		return result{}, d.editor.SetBackgroundImage(res.Fill())
	}
	id, _ := d.editor.AddImage(res.Src, res.NaturalWidth, res.NaturalHeight, res.Scale)
	return result{created: id}, nil
}

// export snapshots the document on the loop and renders it off it.
func (d *Dispatcher) export(msg Message) (result, error) {
	p, err := decode[ExportPayload](msg)
	if err != nil {
		return result{}, err
	}
	if !p.Format.Valid() {
		return result{}, &export.Error{Format: p.Format, Err: export.ErrUnknownFormat}
	}
	doc := d.editor.Document()
	resolver, seq := d.resolver, msg.Seq
	return result{job: func(ctx context.Context) Message {
		var buf bytes.Buffer
		if err := export.Export(ctx, &buf, p.Format, doc, resolver); err != nil {
			return Message{Type: typeExportReady, Seq: seq, err: err}
		}
		return Message{Type: typeExportReady, Seq: seq, exported: &ExportedPayload{
			Format:      p.Format,
			Filename:    export.Filename(p.Name, p.Format),
			ContentType: p.Format.ContentType(),
			Data:        buf.Bytes(),
		}}
	}}, nil
}

func decode[T any](msg Message) (T, error) {
	var p T
	if len(msg.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: %s: %v", ErrBadPayload, msg.Type, err)
	}
	return p, nil
}

func encode(typ string, seq int64, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal payload", "type", typ, "error", err)
		return ErrorMessage(seq, err)
	}
	return Message{Type: typ, Seq: seq, Payload: data}
}

// ErrorMessage classifies err into a protocol error.
func ErrorMessage(seq int64, err error) Message {
	p := ErrorPayload{Code: CodeInternal, Message: err.Error()}

	var docErr *document.ValidationError
	var assetErr *asset.ValidationError
	var decodeErr *asset.DecodeError
	var exportErr *export.Error
	switch {
	case errors.As(err, &docErr):
		p.Code, p.Problems = CodeValidation, docErr.Problems
	case errors.As(err, &assetErr):
		p.Code = CodeValidation
	case errors.As(err, &decodeErr):
		p.Code = CodeDecode
	case errors.As(err, &exportErr):
		p.Code = CodeExport
	case errors.Is(err, ErrBadPayload), errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrUnavailable),
		errors.Is(err, engine.ErrNotInitialized), errors.Is(err, engine.ErrDisposed):
		p.Code = CodeBadRequest
	}

	data, _ := json.Marshal(p)
	return Message{Type: TypeError, Seq: seq, Payload: data}
}
