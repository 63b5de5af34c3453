package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LocalStorage struct {
	baseDir string
	baseURL string
	now     func() time.Time
}

func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// Dir is the directory served under the public base URL.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

func (s *LocalStorage) UploadFile(ctx context.Context, filename string, content io.Reader, contentType string) (*UploadResult, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	key := generateKey(filename, s.now())
	filePath := filepath.Join(s.baseDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory structure: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	contentType = detectContentType(data, contentType)
	slog.Info("artifact stored locally", "key", key, "path", filePath, "size", len(data), "content_type", contentType)

	return &UploadResult{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: contentType,
		Size:        len(data),
	}, nil
}

// GetPresignedURL returns the plain public URL; local files do not expire.
func (s *LocalStorage) GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return s.baseURL + "/" + key, nil
}

func (s *LocalStorage) DeleteFile(ctx context.Context, key string) error {
	filePath := filepath.Join(s.baseDir, filepath.FromSlash(key))

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	slog.Debug("artifact deleted from local storage", "key", key, "path", filePath)
	return nil
}

func generateKey(filename string, now time.Time) string {
	ext := filepath.Ext(filename)
	basename := strings.TrimSuffix(filepath.Base(filename), ext)

	safeBasename := strings.ReplaceAll(basename, " ", "_")
	if safeBasename == "" || safeBasename == "." {
		safeBasename = "page"
	}

	uniqueID := uuid.New().String()[:8]
	return fmt.Sprintf("pages/%s/%s_%s%s", now.Format("2006/01/02"), safeBasename, uniqueID, ext)
}
