package asset

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/certdesk/certdesk/backend-go/internal/typeid"
)

// multipart framing allowance on top of the file limit
const formOverhead = 1 << 20

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Kind   Kind    `json:"kind"`
	Name   string  `json:"name"`
	Path   string  `json:"decodePath"`
	Scale  float64 `json:"scale"`
	Left   float64 `json:"left,omitempty"`
	Top    float64 `json:"top,omitempty"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	dir      string
	ingestor *Ingestor
	library  *Library
	limits   Limits
}

// NewHandler creates an asset handler that stores files in dir.
func NewHandler(dir string, ingestor *Ingestor, library *Library, limits Limits) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir, ingestor: ingestor, library: library, limits: limits}
}

// Upload handles POST /assets/upload?kind=element|background with a
// multipart "file" field. canvasWidth and canvasHeight size the
// background placement.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	kind := Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = KindElement
	}
	if !kind.Valid() {
		http.Error(w, "kind must be element or background", http.StatusBadRequest)
		return
	}
	canvasW, _ := strconv.Atoi(r.URL.Query().Get("canvasWidth"))
	canvasH, _ := strconv.Atoi(r.URL.Query().Get("canvasHeight"))

	limit := h.limits.maxBytes(kind)
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	if err := r.ParseMultipartForm(limit + formOverhead); err != nil {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	res, err := h.ingestor.Ingest(r.Context(), File{
		Name: header.Filename,
		MIME: header.Header.Get("Content-Type"),
		Data: data,
	}, kind, canvasW, canvasH)
	if err != nil {
		var verr *ValidationError
		var derr *DecodeError
		switch {
		case errors.As(err, &verr):
			http.Error(w, verr.Error(), http.StatusBadRequest)
		case errors.As(err, &derr) && derr.TimedOut:
			http.Error(w, derr.Error(), http.StatusGatewayTimeout)
		default:
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		}
		return
	}

	assetID := typeid.NewAssetID()
	filename := assetID + ".png"
	filePath := filepath.Join(h.dir, filename)

	out, err := os.Create(filePath)
	if err != nil {
		slog.Error("create asset file", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if err := png.Encode(out, res.Image); err != nil {
		slog.Error("encode png", "error", err)
		os.Remove(filePath)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}

	url := URLPrefix + filename
	h.library.Put(url, res.Image)

	resp := UploadResponse{
		ID:     assetID,
		URL:    url,
		Width:  res.NaturalWidth,
		Height: res.NaturalHeight,
		Kind:   kind,
		Name:   header.Filename,
		Path:   res.Path,
		Scale:  res.Scale,
		Left:   res.Left,
		Top:    res.Top,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix(URLPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}
