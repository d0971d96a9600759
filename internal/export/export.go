package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/certdesk/certdesk/backend-go/internal/document"
)

type Format string

const (
	FormatPNG      Format = "png"
	FormatPDF      Format = "pdf"
	FormatTemplate Format = "template"
)

func (f Format) Valid() bool {
	switch f {
	case FormatPNG, FormatPDF, FormatTemplate:
		return true
	}
	return false
}

// ContentType is the media type of an exported file.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/json"
}

var (
	ErrEmptyDocument = errors.New("document has no drawable area")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Error reports a failed export. The document is left untouched.
type Error struct {
	Format Format
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export %s: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PNG encodes a rasterized document.
func PNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

// pointsPerPixel converts CSS pixels at 96 DPI to PDF points.
const pointsPerPixel = 0.75

// PDF writes a single page sized to doc with img placed full-bleed.
func PDF(w io.Writer, doc *document.Document, img image.Image) error {
	pw, ph := float64(doc.Width)*pointsPerPixel, float64(doc.Height)*pointsPerPixel
	orientation, size := "P", gofpdf.SizeType{Wd: pw, Ht: ph}
	if pw > ph {
		orientation, size = "L", gofpdf.SizeType{Wd: ph, Ht: pw}
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           size,
	})
	pdf.SetCreator("certdesk", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	var buf bytes.Buffer
	if err := PNG(&buf, img); err != nil {
		return fmt.Errorf("encode page image: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, &buf)
	pdf.ImageOptions("page", 0, 0, pw, ph, false, opts, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return pdf.Output(w)
}

// Template writes the canonical document as a reusable template file.
func Template(w io.Writer, doc *document.Document) error {
	data, err := document.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Filename returns the download name for an export of the given format.
func Filename(name string, f Format) string {
	switch f {
	case FormatTemplate:
		return TemplateFilename(name)
	case FormatPDF:
		return sanitize(name, "certificate") + ".pdf"
	}
	return sanitize(name, "certificate") + ".png"
}

// TemplateFilename returns the download name for a template file.
func TemplateFilename(name string) string {
	return sanitize(name, "certificate") + "-template.json"
}

func sanitize(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

// Export renders doc in format f to w. Every failure is an *Error.
func Export(ctx context.Context, w io.Writer, f Format, doc *document.Document, res Resolver) error {
	if !f.Valid() {
		return &Error{Format: f, Err: ErrUnknownFormat}
	}
	if doc == nil {
		return &Error{Format: f, Err: ErrEmptyDocument}
	}

	var err error
	switch f {
	case FormatTemplate:
		err = Template(w, doc)
	case FormatPNG, FormatPDF:
		var img *image.RGBA
		img, err = Rasterize(ctx, doc, res)
		if err != nil {
			break
		}
		if f == FormatPNG {
			err = PNG(w, img)
		} else {
			err = PDF(w, doc, img)
		}
	}
	if err != nil {
		return &Error{Format: f, Err: err}
	}
	return nil
}
