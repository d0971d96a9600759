package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/certdesk/certdesk/backend-go/internal/document"
	"github.com/certdesk/certdesk/backend-go/internal/engine"
	"github.com/certdesk/certdesk/backend-go/internal/typeid"
)

// Kind is what an ingested image becomes.
type Kind string

const (
	KindElement    Kind = "element"
	KindBackground Kind = "background"
)

func (k Kind) Valid() bool { return k == KindElement || k == KindBackground }

// File is an externally supplied image, already read into memory.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Limits bound what Ingest accepts and how long it waits.
type Limits struct {
	ElementMaxBytes    int64
	BackgroundMaxBytes int64
	// FallbackAfter starts the fallback decoder if the primary has not
	// settled by then.
	FallbackAfter time.Duration
	// Timeout fails the whole operation.
	Timeout time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		ElementMaxBytes:    5 << 20,
		BackgroundMaxBytes: 10 << 20,
		FallbackAfter:      1500 * time.Millisecond,
		Timeout:            8 * time.Second,
	}
}

func (l Limits) maxBytes(k Kind) int64 {
	if k == KindBackground {
		return l.BackgroundMaxBytes
	}
	return l.ElementMaxBytes
}

// ValidationError rejects a file before any decode is attempted.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid image %q: %s", e.Name, e.Reason)
}

// DecodeError reports a decode that failed or timed out. The document is
// never touched when one is returned.
type DecodeError struct {
	Name     string
	TimedOut bool
	Trace    []State
	Err      error
}

func (e *DecodeError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("decode image %q: timed out", e.Name)
	}
	return fmt.Sprintf("decode image %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// State is a step in the life of one ingestion operation.
type State string

const (
	StatePending           State = "pending"
	StatePrimarySucceeded  State = "primary-succeeded"
	StatePrimaryFailed     State = "primary-failed"
	StatePrimaryTimedOut   State = "primary-timed-out"
	StateFallbackPending   State = "fallback-pending"
	StateFallbackSucceeded State = "fallback-succeeded"
	StateFallbackFailed    State = "fallback-failed"
	StateFailed            State = "failed"
	StateSettled           State = "settled"
)

// Decoder turns encoded bytes into pixels.
type Decoder func(io.Reader) (image.Image, error)

func sniff(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

var primaryDecoders = map[string]Decoder{
	"image/png":  png.Decode,
	"image/jpeg": jpeg.Decode,
	"image/jpg":  jpeg.Decode,
	"image/gif":  gif.Decode,
	"image/webp": webp.Decode,
	"image/bmp":  bmp.Decode,
	"image/tiff": tiff.Decode,
}

// Result is a decoded image together with its placement on the canvas.
type Result struct {
	ID    string
	Kind  Kind
	Name  string
	Image image.Image
	// Src is a data URL carrying the original bytes.
	Src           string
	NaturalWidth  int
	NaturalHeight int
	// Scale is uniform. Left and Top are only set for backgrounds.
	Scale float64
	Left  float64
	Top   float64
	// Path is "primary" or "fallback".
	Path  string
	Trace []State
}

// Fill returns the background fill for a background result.
func (r *Result) Fill() document.ImageFill {
	return document.ImageFill{
		Src:           r.Src,
		NaturalWidth:  r.NaturalWidth,
		NaturalHeight: r.NaturalHeight,
		Scale:         r.Scale,
		Left:          r.Left,
		Top:           r.Top,
	}
}

type Option func(*Ingestor)

// WithDecoder overrides the primary decoder for a MIME type.
func WithDecoder(mime string, d Decoder) Option {
	return func(in *Ingestor) { in.primary[mime] = d }
}

// WithFallback overrides the fallback decoder.
func WithFallback(d Decoder) Option {
	return func(in *Ingestor) { in.fallback = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(in *Ingestor) { in.log = l }
}

// Ingestor validates and decodes images into placeable results.
type Ingestor struct {
	limits   Limits
	primary  map[string]Decoder
	fallback Decoder
	library  *Library
	log      *slog.Logger
}

// NewIngestor creates an ingestor. Decoded images are cached in lib when
// it is non-nil.
func NewIngestor(limits Limits, lib *Library, opts ...Option) *Ingestor {
	in := &Ingestor{
		limits:   limits,
		primary:  make(map[string]Decoder, len(primaryDecoders)),
		fallback: sniff,
		library:  lib,
		log:      slog.Default(),
	}
	for mime, d := range primaryDecoders {
		in.primary[mime] = d
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func mediaType(mime string) string {
	mt, _, _ := strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// Validate checks type and size. It never decodes.
func (in *Ingestor) Validate(f File, kind Kind) error {
	if !kind.Valid() {
		return &ValidationError{Name: f.Name, Reason: fmt.Sprintf("unknown target kind %q", kind)}
	}
	mt := mediaType(f.MIME)
	if !strings.HasPrefix(mt, "image/") {
		return &ValidationError{Name: f.Name, Reason: fmt.Sprintf("%q is not an image type", f.MIME)}
	}
	if _, ok := in.primary[mt]; !ok {
		return &ValidationError{Name: f.Name, Reason: fmt.Sprintf("unsupported image type %q", mt)}
	}
	if len(f.Data) == 0 {
		return &ValidationError{Name: f.Name, Reason: "empty file"}
	}
	if limit := in.limits.maxBytes(kind); int64(len(f.Data)) > limit {
		return &ValidationError{Name: f.Name, Reason: fmt.Sprintf("%d bytes exceeds the %s limit of %d", len(f.Data), kind, limit)}
	}
	return nil
}

// Ingest validates f, decodes it and computes its placement on a canvas
// of the given logical size. It blocks until the operation settles.
func (in *Ingestor) Ingest(ctx context.Context, f File, kind Kind, canvasW, canvasH int) (*Result, error) {
	if err := in.Validate(f, kind); err != nil {
		return nil, err
	}
	op := &operation{id: typeid.NewIngestID(), name: f.Name, done: make(chan outcome, 1)}
	op.record(StatePending)

	ctx, cancel := context.WithTimeout(ctx, in.limits.Timeout)
	defer cancel()

	launchFallback := func(from State) {
		op.startFallback(from, func() { go op.attempt(pathFallback, in.fallback, f.Data) })
	}
	op.onPrimaryFailed = func() { launchFallback(StatePrimaryFailed) }

	go op.attempt(pathPrimary, in.primary[mediaType(f.MIME)], f.Data)
	timer := time.AfterFunc(in.limits.FallbackAfter, func() { launchFallback(StatePrimaryTimedOut) })
	defer timer.Stop()

	var out outcome
	select {
	case out = <-op.done:
	case <-ctx.Done():
		op.settle(outcome{err: ctx.Err(), timedOut: errors.Is(ctx.Err(), context.DeadlineExceeded)}, StateFailed, StateSettled)
		out = <-op.done
	}

	trace := op.trace()
	if out.err != nil {
		in.log.Warn("ingest image failed", "op", op.id, "name", f.Name, "error", out.err)
		return nil, &DecodeError{Name: f.Name, TimedOut: out.timedOut, Trace: trace, Err: out.err}
	}

	b := out.img.Bounds()
	res := &Result{
		ID:            op.id,
		Kind:          kind,
		Name:          f.Name,
		Image:         out.img,
		Src:           DataURL(mediaType(f.MIME), f.Data),
		NaturalWidth:  b.Dx(),
		NaturalHeight: b.Dy(),
		Path:          out.path,
		Trace:         trace,
	}
	res.Place(float64(canvasW), float64(canvasH))
	if in.library != nil {
		in.library.Put(res.Src, out.img)
	}
	in.log.Debug("image ingested", "op", op.id, "name", f.Name, "kind", kind, "path", out.path,
		"width", res.NaturalWidth, "height", res.NaturalHeight)
	return res, nil
}

// Place computes the uniform scale, and for backgrounds the cover offset,
// for a canvas of the given logical size.
func (r *Result) Place(canvasW, canvasH float64) {
	w, h := float64(r.NaturalWidth), float64(r.NaturalHeight)
	if w <= 0 || h <= 0 {
		return
	}
	switch r.Kind {
	case KindElement:
		r.Scale = engine.FitScale(w, h, engine.MaxImageBox, engine.MaxImageBox)
	case KindBackground:
		r.Scale = max(canvasW/w, canvasH/h)
		r.Left = (canvasW - w*r.Scale) / 2
		r.Top = (canvasH - h*r.Scale) / 2
	}
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

const (
	pathPrimary  = "primary"
	pathFallback = "fallback"
)

type outcome struct {
	img      image.Image
	path     string
	err      error
	timedOut bool
}

// operation is one ingestion. The first path to call settle wins; every
// later result is dropped.
type operation struct {
	id   string
	name string
	done chan outcome

	settled atomic.Bool

	mu              sync.Mutex
	states          []State
	fallbackStarted bool
	primaryFailed   bool
	fallbackFailed  bool
	onPrimaryFailed func()
}

func (op *operation) record(s State) {
	op.mu.Lock()
	op.states = append(op.states, s)
	op.mu.Unlock()
}

func (op *operation) trace() []State {
	op.mu.Lock()
	defer op.mu.Unlock()
	return append([]State(nil), op.states...)
}

// settle records states and publishes o if nothing has settled yet.
func (op *operation) settle(o outcome, states ...State) bool {
	if !op.settled.CompareAndSwap(false, true) {
		return false
	}
	op.mu.Lock()
	op.states = append(op.states, states...)
	op.mu.Unlock()
	op.done <- o
	return true
}

func (op *operation) startFallback(from State, launch func()) {
	if op.settled.Load() {
		return
	}
	op.mu.Lock()
	if op.fallbackStarted {
		op.mu.Unlock()
		return
	}
	op.fallbackStarted = true
	op.states = append(op.states, from, StateFallbackPending)
	op.mu.Unlock()
	launch()
}

func (op *operation) attempt(path string, dec Decoder, data []byte) {
	img, err := decodeSafely(dec, data)
	if err == nil {
		succeeded := StatePrimarySucceeded
		if path == pathFallback {
			succeeded = StateFallbackSucceeded
		}
		op.settle(outcome{img: img, path: path}, succeeded, StateSettled)
		return
	}

	op.mu.Lock()
	var bothFailed bool
	if path == pathPrimary {
		op.primaryFailed = true
		bothFailed = op.fallbackFailed
	} else {
		op.fallbackFailed = true
		op.states = append(op.states, StateFallbackFailed)
		bothFailed = op.primaryFailed
	}
	onPrimaryFailed := op.onPrimaryFailed
	op.mu.Unlock()

	if bothFailed {
		op.settle(outcome{err: err}, StateSettled)
		return
	}
	if path == pathPrimary && onPrimaryFailed != nil {
		onPrimaryFailed()
	}
}

// decodeSafely turns decoder panics on malformed input into errors.
func decodeSafely(dec Decoder, data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	img, err = dec(bytes.NewReader(data))
	if err == nil && img == nil {
		err = errors.New("decoder returned no image")
	}
	return img, err
}
