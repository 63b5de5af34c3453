// Package storage keeps accepted documents as downloadable artifacts.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

type Storage interface {
	UploadFile(ctx context.Context, filename string, content io.Reader, contentType string) (*UploadResult, error)
	GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
	DeleteFile(ctx context.Context, key string) error
}

type UploadResult struct {
	Key         string
	URL         string
	ContentType string
	Size        int
}

// detectContentType sniffs data when the caller did not supply a type.
func detectContentType(data []byte, contentType string) string {
	if contentType != "" {
		return contentType
	}
	return mimetype.Detect(data).String()
}
