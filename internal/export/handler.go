package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/certdesk/certdesk/backend-go/internal/document"
)

const maxDocumentSize = 32 << 20 // canonical documents carry data URLs

type Handler struct {
	resolver Resolver
}

func NewHandler(resolver Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Export handles POST /export/{format}?name= with a canonical document body.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := Format(mux.Vars(r)["format"])
	if !format.Valid() {
		http.Error(w, "invalid format: must be png, pdf, or template", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	doc, err := document.Unmarshal(body)
	if err != nil {
		var verr *document.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "invalid document: "+err.Error(), http.StatusBadRequest)
		return
	}

	slog.Info("export started", "format", format, "elements", len(doc.Elements))

	var out bytes.Buffer
	if err := Export(r.Context(), &out, format, doc, h.resolver); err != nil {
		slog.Error("export failed", "format", format, "error", err)
		http.Error(w, fmt.Sprintf("export failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, Filename(r.URL.Query().Get("name"), format)))
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	out.WriteTo(w)

	slog.Info("export complete", "format", format, "size", out.Len())
}
