package fake

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/kraal-market/client/internal/platform/httpx"
)

const maxUploadBytes = 8 << 20

var uploadKinds = map[string]bool{
	"listing-media":     true,
	"buy-request-image": true,
	"vet-certificate":   true,
	"avatar":            true,
}

func (s *Server) uploadRoutes(r chi.Router) {
	r.Use(s.requireAuth)
	r.Post("/{kind}", s.createUpload)
}

// createUpload accepts a multipart "file" part on POST /upload/{kind}. The
// fake discards the bytes and answers with CDN-shaped metadata.
func (s *Server) createUpload(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !uploadKinds[kind] {
		httpx.WriteError(r.Context(), w, httpx.NewError("unknown_kind", fmt.Sprintf("no upload route for kind %s", kind), http.StatusBadRequest))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed multipart form", http.StatusBadRequest))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "file part is required", http.StatusBadRequest))
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "could not read file part", http.StatusBadRequest))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := newID("upl")
	fileName := url.PathEscape(path.Base(header.Filename))
	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"id":           id,
		"url":          fmt.Sprintf("https://cdn.kraal.test/%s/%s/%s", kind, id, fileName),
		"content_type": contentType,
		"size":         size,
		"created_at":   renderTime(s.now()),
	})
}
