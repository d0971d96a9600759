package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/certdesk/certdesk/backend-go/internal/document"
)

var (
	ErrNotInitialized = errors.New("editor not initialized")
	ErrDisposed       = errors.New("editor disposed")
)

// CloneOffset is the logical offset applied to a cloned element.
const CloneOffset = 12.0

// MaxImageBox bounds inserted images, in logical units.
const MaxImageBox = 360.0

// Options configures an Editor session.
type Options struct {
	Preset document.Preset
	// Initial is an optional canonical document to start from.
	Initial []byte

	SnapThreshold float64
	HistoryDepth  int

	// NewID supplies fresh element ids.
	NewID func() string
	// OnSave receives the canonical document on an explicit save.
	OnSave func(canonical []byte) error
	Logger *slog.Logger
}

type pointerMode int

const (
	pointerIdle pointerMode = iota
	pointerMove
	pointerResize
	pointerRotate
)

// drag tracks one pointer gesture from press to release.
type drag struct {
	mode   pointerMode
	handle Handle
	// raw is the unsnapped position, accumulated across frames.
	rawX, rawY float64
	// px, py is the pointer in device space.
	px, py float64
	// startAngle and startRotation anchor a rotate gesture.
	startAngle, startRotation float64
}

// Editor owns one editing session: the document, the pinned viewport, the
// history stacks and the active selection. It is not safe for concurrent
// use; the host serializes calls onto one goroutine.
type Editor struct {
	opts Options
	log  *slog.Logger

	doc      *document.Document
	pin      *Pin
	history  *History
	activeID string
	drag     *drag
	guides   []Guide
	// pending marks a live mutation (resize, rotate) awaiting commit.
	pending bool

	disposed bool
}

// New creates an editor. Call Init before use.
func New(opts Options) *Editor {
	if opts.SnapThreshold <= 0 {
		opts.SnapThreshold = DefaultSnapThreshold
	}
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = DefaultHistoryDepth
	}
	if opts.Preset.Width == 0 {
		opts.Preset, _ = document.LookupPreset(document.PresetLetter)
	}
	if opts.NewID == nil {
		n := 0
		opts.NewID = func() string {
			n++
			return fmt.Sprintf("el_%d", n)
		}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Editor{opts: opts, log: log}
}

// Init builds the initial document and seeds the undo floor.
func (e *Editor) Init() error {
	if e.disposed {
		return ErrDisposed
	}
	doc := document.Blank(e.opts.Preset)
	if len(e.opts.Initial) > 0 {
		loaded, err := document.Unmarshal(e.opts.Initial)
		if err != nil {
			return fmt.Errorf("load initial document: %w", err)
		}
		doc = loaded
	}
	e.history = NewHistory(e.opts.HistoryDepth)
	if err := e.history.Reset(doc); err != nil {
		return err
	}
	e.doc = doc
	e.pin = NewPin(float64(doc.Width), float64(doc.Height))
	e.activeID = ""
	e.drag = nil
	e.guides = nil
	e.pending = false
	return nil
}

// Dispose releases the session. Every later call is a no-op.
func (e *Editor) Dispose() {
	e.disposed = true
	e.doc = nil
	e.history = nil
	e.drag = nil
	e.guides = nil
	e.activeID = ""
}

func (e *Editor) ready() bool {
	return !e.disposed && e.doc != nil
}

// Initialized reports whether Init has run and Dispose has not.
func (e *Editor) Initialized() bool { return e.ready() }

// Size returns the logical canvas size, or zeros before Init.
func (e *Editor) Size() (int, int) {
	if !e.ready() {
		return 0, 0
	}
	return e.doc.Width, e.doc.Height
}

func (e *Editor) commit() {
	if _, err := e.history.Commit(e.doc); err != nil {
		e.log.Error("commit snapshot", "error", err)
	}
}

func (e *Editor) active() document.Element {
	if e.activeID == "" {
		return nil
	}
	return e.doc.Get(e.activeID)
}

// --- Viewport ---

// Layout reports the container size. The first usable size pins the
// viewport; later sizes re-apply the pinned transform.
func (e *Editor) Layout(containerW, containerH float64) Viewport {
	if !e.ready() {
		return Viewport{Scale: 1}
	}
	vp, _ := e.pin.Layout(containerW, containerH)
	return vp
}

func (e *Editor) Viewport() Viewport {
	if !e.ready() {
		return Viewport{Scale: 1}
	}
	return e.pin.Viewport()
}

// --- Selection ---

// SelectAt selects the topmost selectable element under a device point,
// or clears the selection. It returns the new active id.
func (e *Editor) SelectAt(x, y float64) string {
	if !e.ready() {
		return ""
	}
	lx, ly := e.pin.Viewport().ToLogical(x, y)
	e.activeID = HitTest(e.doc, lx, ly)
	return e.activeID
}

// Select makes id active if it names a selectable element.
func (e *Editor) Select(id string) bool {
	if !e.ready() {
		return false
	}
	el := e.doc.Get(id)
	if el == nil || !el.Base().Selectable {
		return false
	}
	e.activeID = id
	return true
}

func (e *Editor) ClearSelection() {
	e.activeID = ""
	e.drag = nil
	e.guides = nil
}

func (e *Editor) ActiveID() string { return e.activeID }

// --- Pointer gestures ---

// PointerDown starts a gesture at a device point: a handle of the active
// element starts a resize or rotate, anything else selects and starts a move.
func (e *Editor) PointerDown(x, y float64) string {
	if !e.ready() {
		return ""
	}
	if el := e.active(); el != nil {
		if h, ok := handleAt(selectionBox(el, e.pin.Viewport()), x, y); ok {
			d := &drag{mode: pointerResize, handle: h, px: x, py: y}
			if h == HandleRotate {
				d.mode = pointerRotate
				d.startAngle = e.pointerAngle(el, x, y)
				d.startRotation = el.Base().Rotation
			}
			e.drag = d
			return e.activeID
		}
	}
	if id := e.SelectAt(x, y); id != "" {
		e.drag = &drag{mode: pointerMove, px: x, py: y}
		c := e.active().Base()
		e.drag.rawX, e.drag.rawY = c.X, c.Y
	}
	return e.activeID
}

// PointerMove continues the current gesture by a device delta.
func (e *Editor) PointerMove(dx, dy float64) {
	if !e.ready() || e.drag == nil {
		return
	}
	e.drag.px += dx
	e.drag.py += dy
	switch e.drag.mode {
	case pointerMove:
		e.MoveActiveBy(dx, dy)
	case pointerResize:
		e.ResizeActive(e.drag.handle, dx, dy)
	case pointerRotate:
		if el := e.active(); el != nil {
			delta := e.pointerAngle(el, e.drag.px, e.drag.py) - e.drag.startAngle
			e.RotateActive(e.drag.startRotation + delta)
		}
	}
}

// PointerUp ends the gesture.
func (e *Editor) PointerUp() {
	e.EndDrag()
}

func (e *Editor) pointerAngle(el document.Element, x, y float64) float64 {
	cx, cy := Bounds(el).Center()
	dcx, dcy := e.pin.Viewport().ToDevice(cx, cy)
	return math.Atan2(y-dcy, x-dcx) * 180 / math.Pi
}

// --- Manipulation ---

// MoveActiveBy drags the active element by a device delta. The unsnapped
// position accumulates across calls, so a drag can leave a snap target;
// each frame is snapped afresh. Nothing is committed until EndDrag.
func (e *Editor) MoveActiveBy(dx, dy float64) bool {
	if !e.ready() {
		return false
	}
	el := e.active()
	if el == nil {
		return false
	}
	c := el.Base()
	if e.drag == nil || e.drag.mode != pointerMove {
		e.drag = &drag{mode: pointerMove, rawX: c.X, rawY: c.Y}
	}
	ldx, ldy := e.pin.Viewport().DeltaToLogical(dx, dy)
	e.drag.rawX += ldx
	e.drag.rawY += ldy

	box := Bounds(el).Translate(e.drag.rawX-c.X, e.drag.rawY-c.Y)
	snap := Snap(box, float64(e.doc.Width), float64(e.doc.Height), e.opts.SnapThreshold)
	c.X = e.drag.rawX + snap.DX
	c.Y = e.drag.rawY + snap.DY
	e.guides = snap.Guides
	return true
}

// ResizeActive drags a bounding-box handle by a device delta. Resizes are
// never snapped.
func (e *Editor) ResizeActive(h Handle, dx, dy float64) bool {
	if !e.ready() || h == HandleRotate || !h.Valid() {
		return false
	}
	el := e.active()
	if el == nil {
		return false
	}
	ldx, ldy := e.pin.Viewport().DeltaToLogical(dx, dy)
	resize(el, h, ldx, ldy)
	e.pending = true
	return true
}

// RotateActive sets the active element's rotation in degrees.
func (e *Editor) RotateActive(deg float64) bool {
	if !e.ready() {
		return false
	}
	el := e.active()
	if el == nil {
		return false
	}
	el.Base().Rotation = NormalizeDegrees(deg)
	e.pending = true
	return true
}

// EndDrag settles a gesture: the mutation is committed and guides clear.
func (e *Editor) EndDrag() {
	if !e.ready() {
		return
	}
	if e.drag != nil || e.pending {
		e.commit()
	}
	e.drag = nil
	e.pending = false
	e.guides = nil
}

// Clone duplicates the active element directly above itself, offset by
// CloneOffset, and selects the copy.
func (e *Editor) Clone() (string, bool) {
	if !e.ready() {
		return "", false
	}
	src := e.active()
	if src == nil {
		return "", false
	}
	cp := src.Clone()
	c := cp.Base()
	c.ID = e.opts.NewID()
	c.X += CloneOffset
	c.Y += CloneOffset
	if !e.doc.InsertAfter(src.Base().ID, cp) {
		return "", false
	}
	e.activeID = c.ID
	e.commit()
	return c.ID, true
}

func (e *Editor) ReorderActive(op document.ReorderOp) bool {
	if !e.ready() || e.active() == nil {
		return false
	}
	if !e.doc.Reorder(e.activeID, op) {
		return false
	}
	e.commit()
	return true
}

func (e *Editor) DeleteActive() bool {
	if !e.ready() || e.active() == nil {
		return false
	}
	e.doc.Remove(e.activeID)
	e.activeID = ""
	e.drag = nil
	e.guides = nil
	e.commit()
	return true
}

// UpdateActive applies a property patch. The result must still validate;
// otherwise the element is left untouched.
func (e *Editor) UpdateActive(p document.Patch) error {
	if !e.ready() {
		return nil
	}
	el := e.active()
	if el == nil {
		return nil
	}
	cp := el.Clone()
	p.Apply(cp)
	if err := validateElement(cp); err != nil {
		return err
	}
	p.Apply(el)
	if !el.Base().Selectable {
		e.activeID = ""
		e.drag = nil
		e.guides = nil
	}
	e.commit()
	return nil
}

func validateElement(el document.Element) error {
	probe := &document.Document{Width: 1, Height: 1, BackgroundColor: document.DefaultBackground, Elements: document.Elements{el}}
	return document.Validate(probe)
}

// --- Creation ---

func (e *Editor) place(el document.Element) string {
	w, h := el.Size()
	c := el.Base()
	c.ID = e.opts.NewID()
	if c.ScaleX == 0 {
		c.ScaleX = 1
	}
	if c.ScaleY == 0 {
		c.ScaleY = 1
	}
	c.Selectable = true
	c.X = (float64(e.doc.Width) - w*math.Abs(c.ScaleX)) / 2
	c.Y = (float64(e.doc.Height) - h*math.Abs(c.ScaleY)) / 2
	e.doc.Add(el)
	e.activeID = c.ID
	e.commit()
	return c.ID
}

// AddText inserts a text box centered on the canvas and selects it.
func (e *Editor) AddText(content string) string {
	if !e.ready() {
		return ""
	}
	if content == "" {
		content = "New text"
	}
	return e.place(&document.TextElement{
		Content:    content,
		FontFamily: document.FontFamilies()[0],
		FontSize:   32,
		FontWeight: document.FontWeightNormal,
		FontStyle:  document.FontStyleNormal,
		Fill:       "#111827",
		TextAlign:  document.AlignCenter,
		Width:      320,
	})
}

// AddShape inserts a default-sized shape of the given kind.
func (e *Editor) AddShape(kind document.ShapeKind) (string, bool) {
	if !e.ready() {
		return "", false
	}
	s := &document.ShapeElement{Kind: kind, Fill: "#2563eb"}
	switch kind {
	case document.ShapeRect:
		s.Width, s.Height = 160, 100
	case document.ShapeTriangle:
		s.Width, s.Height = 120, 104
	case document.ShapeCircle:
		s.Radius = 60
	case document.ShapeStar:
		s.Radius, s.Points = 60, 5
	case document.ShapePolygon:
		s.Radius, s.Points = 60, 6
	default:
		return "", false
	}
	return e.place(s), true
}

// AddImage inserts decoded image data at the given uniform scale.
func (e *Editor) AddImage(src string, naturalW, naturalH int, scale float64) (string, bool) {
	if !e.ready() || src == "" || naturalW <= 0 || naturalH <= 0 {
		return "", false
	}
	if scale <= 0 {
		scale = FitScale(float64(naturalW), float64(naturalH), MaxImageBox, MaxImageBox)
	}
	return e.place(&document.ImageElement{
		Common:        document.Common{ScaleX: scale, ScaleY: scale},
		Src:           src,
		NaturalWidth:  naturalW,
		NaturalHeight: naturalH,
	}), true
}

// FitScale shrinks w×h proportionally into a box; it never upscales.
func FitScale(w, h, boxW, boxH float64) float64 {
	return min(boxW/w, boxH/h, 1)
}

// --- Background ---

func (e *Editor) SetBackgroundColor(color string) error {
	return e.SetBackground(&color, nil, false)
}

// SetBackgroundImage installs a cover-fit background fill.
func (e *Editor) SetBackgroundImage(fill document.ImageFill) error {
	return e.SetBackground(nil, &fill, false)
}

// SetBackground changes the color and the image fill as one history entry.
// Nil parts are kept; clearImage wins over fill. Both parts are validated
// before either is applied.
func (e *Editor) SetBackground(color *string, fill *document.ImageFill, clearImage bool) error {
	if !e.ready() {
		return nil
	}
	next := e.doc.BackgroundColor
	if color != nil {
		next = *color
	}
	img := e.doc.BackgroundImage
	switch {
	case clearImage:
		img = nil
	case fill != nil:
		f := *fill
		img = &f
	}

	probe := &document.Document{Width: e.doc.Width, Height: e.doc.Height, BackgroundColor: next, BackgroundImage: img}
	if err := document.Validate(probe); err != nil {
		return err
	}
	e.doc.BackgroundColor = next
	e.doc.BackgroundImage = img
	e.commit()
	return nil
}

func (e *Editor) ClearBackgroundImage() bool {
	if !e.ready() || e.doc.BackgroundImage == nil {
		return false
	}
	e.doc.BackgroundImage = nil
	e.commit()
	return true
}

// --- Document lifecycle ---

// SetPreset replaces the document with a blank one of the new size and
// unpins the viewport. History restarts from the blank document.
func (e *Editor) SetPreset(name string) error {
	if !e.ready() {
		return ErrNotInitialized
	}
	p, err := document.LookupPreset(name)
	if err != nil {
		return err
	}
	e.opts.Preset = p
	if err := e.install(document.Blank(p), true); err != nil {
		return err
	}
	e.pin.Reset(float64(p.Width), float64(p.Height))
	return nil
}

// LoadSample replaces the document with the starter certificate for the
// current preset. History restarts from it.
func (e *Editor) LoadSample() error {
	if !e.ready() {
		return ErrNotInitialized
	}
	return e.install(document.NewSampleDocument(e.opts.Preset, e.opts.NewID), true)
}

// Load replaces the document with a canonical one, which becomes the new
// undo floor.
func (e *Editor) Load(canonical []byte) error {
	if !e.ready() {
		return ErrNotInitialized
	}
	doc, err := document.Unmarshal(canonical)
	if err != nil {
		return err
	}
	return e.install(doc, true)
}

func (e *Editor) install(doc *document.Document, resetHistory bool) error {
	if resetHistory {
		if err := e.history.Reset(doc); err != nil {
			return err
		}
	}
	if doc.Width != e.doc.Width || doc.Height != e.doc.Height {
		e.pin.Reset(float64(doc.Width), float64(doc.Height))
	}
	e.doc = doc
	e.activeID = ""
	e.drag = nil
	e.guides = nil
	e.pending = false
	return nil
}

func (e *Editor) Undo() bool {
	if !e.ready() {
		return false
	}
	doc, ok := e.history.Undo()
	if !ok {
		return false
	}
	return e.install(doc, false) == nil
}

func (e *Editor) Redo() bool {
	if !e.ready() {
		return false
	}
	doc, ok := e.history.Redo()
	if !ok {
		return false
	}
	return e.install(doc, false) == nil
}

func (e *Editor) CanUndo() bool { return e.ready() && e.history.CanUndo() }
func (e *Editor) CanRedo() bool { return e.ready() && e.history.CanRedo() }

// Canonical returns the canonical encoding of the live document.
func (e *Editor) Canonical() ([]byte, error) {
	if !e.ready() {
		return nil, ErrNotInitialized
	}
	return document.Marshal(e.doc)
}

// Document returns a deep copy of the live document.
func (e *Editor) Document() *document.Document {
	if !e.ready() {
		return nil
	}
	return e.doc.Clone()
}

// Save hands the canonical document to the OnSave callback.
func (e *Editor) Save() error {
	data, err := e.Canonical()
	if err != nil {
		return err
	}
	if e.opts.OnSave == nil {
		return nil
	}
	if err := e.opts.OnSave(data); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	e.log.Debug("document saved", "bytes", len(data), "elements", len(e.doc.Elements))
	return nil
}

// Guides returns the transient snap guides of the current drag.
func (e *Editor) Guides() []Guide { return e.guides }

// Render compiles the current frame in device space.
func (e *Editor) Render() Frame {
	if !e.ready() {
		return Frame{Viewport: Viewport{Scale: 1}, Commands: []DrawCommand{}, Guides: []GuideLine{}}
	}
	vp := e.pin.Viewport()
	f := Frame{
		Viewport: vp,
		Width:    e.doc.Width,
		Height:   e.doc.Height,
		Commands: CompileDrawCommands(e.doc, vp),
		Guides:   compileGuides(e.guides, vp, float64(e.doc.Width), float64(e.doc.Height)),
	}
	if el := e.active(); el != nil {
		f.Selection = selectionBox(el, vp)
	}
	return f
}
