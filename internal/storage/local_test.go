package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	appconfig "github.com/fedutinova/pagegen/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:8080/files/")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	page := "<!doctype html>\n<html lang=\"en\"><head><title>x</title></head><body><p>hi</p></body></html>"
	res, err := s.UploadFile(context.Background(), "job 42.html", strings.NewReader(page), "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "pages/2025/03/01/job_42_"), res.Key)
	assert.True(t, strings.HasSuffix(res.Key, ".html"))
	assert.Equal(t, "http://localhost:8080/files/"+res.Key, res.URL)
	assert.Equal(t, len(page), res.Size)
	assert.True(t, strings.HasPrefix(res.ContentType, "text/html"), res.ContentType)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(res.Key)))
	require.NoError(t, err)
	assert.Equal(t, page, string(data))

	url, err := s.GetPresignedURL(context.Background(), res.Key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, res.URL, url)

	require.NoError(t, s.DeleteFile(context.Background(), res.Key))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(res.Key)))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, s.DeleteFile(context.Background(), res.Key))
}

func TestLocalStorage_KeepsExplicitContentType(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://x")
	require.NoError(t, err)

	res, err := s.UploadFile(context.Background(), "a.html", strings.NewReader("plain"), "text/html; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", res.ContentType)
}

func TestNewStorage_Modes(t *testing.T) {
	st, err := NewStorage(context.Background(), appconfig.Config{StorageMode: "none"})
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = NewStorage(context.Background(), appconfig.Config{StorageMode: "local", LocalStorageDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, st)

	_, err = NewStorage(context.Background(), appconfig.Config{StorageMode: "ftp"})
	assert.Error(t, err)

	assert.Equal(t, "LocalStack S3", GetStorageType(appconfig.Config{StorageMode: "s3", S3Endpoint: "http://localstack:4566"}))
	assert.Equal(t, "AWS S3", GetStorageType(appconfig.Config{StorageMode: "s3"}))
	assert.Equal(t, "disabled", GetStorageType(appconfig.Config{}))
	assert.True(t, IsLocalMode(appconfig.Config{StorageMode: "filesystem"}))
	assert.False(t, IsLocalMode(appconfig.Config{StorageMode: "s3"}))
}
