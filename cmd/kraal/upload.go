package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/kraal-market/client/internal/api"
)

func uploadCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("upload", "kraal upload [--kind listing-media] <file>")
	kind := fs.String("kind", "listing-media", "asset kind (listing-media, buy-request-image, vet-certificate, avatar)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("file path is required")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	upload, err := a.client.UploadMedia(ctx, api.UploadInput{
		FileName:    filepath.Base(path),
		ContentType: contentType,
		Kind:        *kind,
		Data:        f,
	})
	if err != nil {
		return err
	}

	fmt.Printf("uploaded %s (%d bytes)\n", upload.ID, upload.Size)
	fmt.Printf("  %s\n", upload.URL)
	return nil
}
