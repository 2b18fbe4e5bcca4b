package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kraal-market/client/internal/domain"
)

// ErrUploadInvalidInput flags upload input rejected before any network call.
var ErrUploadInvalidInput = errors.New("api client: invalid upload input")

// UploadInput describes one media file headed for a listing, buy request, or
// profile.
type UploadInput struct {
	FileName    string
	ContentType string
	// Kind picks the upload route: "listing-media", "buy-request-image",
	// "vet-certificate", or "avatar".
	Kind string
	Data io.Reader
}

// UploadMedia streams a file to POST /upload/{kind} as multipart form data
// and returns the stored asset's metadata.
func (c *Client) UploadMedia(ctx context.Context, input UploadInput) (domain.Upload, error) {
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" || input.Data == nil {
		return domain.Upload{}, fmt.Errorf("%w: file name and data are required", ErrUploadInvalidInput)
	}
	kind := defaultString(strings.TrimSpace(input.Kind), "listing-media")

	form := &multipartForm{
		fileField:   "file",
		fileName:    fileName,
		contentType: defaultString(input.ContentType, "application/octet-stream"),
		file:        input.Data,
	}

	var payload uploadPayload
	req := apiRequest{method: http.MethodPost, path: "/upload/" + url.PathEscape(kind), form: form}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.Upload{}, fmt.Errorf("uploads: %s: %w", fileName, err)
	}
	return payload.toDomain(), nil
}

type uploadPayload struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"created_at"`
}

func (p uploadPayload) toDomain() domain.Upload {
	return domain.Upload{
		ID:          strings.TrimSpace(p.ID),
		URL:         strings.TrimSpace(p.URL),
		ContentType: strings.TrimSpace(p.ContentType),
		Size:        p.Size,
		CreatedAt:   parseTime(p.CreatedAt),
	}
}
