package storage

import (
	"context"
	"fmt"
	"strings"

	appconfig "github.com/fedutinova/pagegen/internal/config"
)

// NewStorage returns the artifact sink selected by STORAGE_MODE. Mode "none"
// yields a nil Storage and artifacts are not kept.
func NewStorage(ctx context.Context, cfg appconfig.Config) (Storage, error) {
	switch strings.ToLower(cfg.StorageMode) {
	case "", "none", "off":
		return nil, nil
	case "s3", "aws", "localstack":
		return NewS3Storage(ctx, cfg)
	case "local", "filesystem":
		return NewLocalStorage(cfg.LocalStorageDir, cfg.LocalStorageURL)
	default:
		return nil, fmt.Errorf("unknown STORAGE_MODE %q", cfg.StorageMode)
	}
}

func GetStorageType(cfg appconfig.Config) string {
	switch strings.ToLower(cfg.StorageMode) {
	case "s3", "aws", "localstack":
		if isLocalStack(cfg.S3Endpoint) {
			return "LocalStack S3"
		}
		return "AWS S3"
	case "local", "filesystem":
		return "Local Filesystem"
	default:
		return "disabled"
	}
}

func isLocalStack(endpoint string) bool {
	return endpoint != "" && (strings.Contains(endpoint, "localstack") || strings.Contains(endpoint, ":4566"))
}

// IsLocalMode reports whether artifacts are written to the local filesystem
// and must be served by this process.
func IsLocalMode(cfg appconfig.Config) bool {
	switch strings.ToLower(cfg.StorageMode) {
	case "local", "filesystem":
		return true
	}
	return false
}
