package s3

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docembed/internal/domain"
)

type object struct {
	body        string
	contentType string
	meta        map[string]string
}

// fakeS3 serves HEAD and GET for path-style /bucket/key requests.
func fakeS3(t *testing.T, objects map[string]object) *httptest.Server {
	t.Helper()
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if !strings.Contains(path, "/") {
			// Bucket check.
			if path == "bucket" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
			return
		}

		obj, ok := objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
					`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			}
			return
		}

		h := w.Header()
		h.Set("Content-Type", obj.contentType)
		h.Set("Content-Length", strconv.Itoa(len(obj.body)))
		h.Set("ETag", `"abc123"`)
		h.Set("Last-Modified", modified.Format(http.TimeFormat))
		for k, v := range obj.meta {
			h.Set("X-Amz-Meta-"+k, v)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(obj.body))
		}
	}))
}

func newTestLoader(t *testing.T, srv *httptest.Server, maxBytes int64) *Loader {
	t.Helper()
	l, err := NewLoader(&Config{
		Endpoint:       srv.URL,
		AccessKey:      "access",
		SecretKey:      "secret",
		Region:         "us-east-1",
		MaxObjectBytes: maxBytes,
		Bucket:         "bucket",
	})
	require.NoError(t, err)
	return l
}

func TestLoad_SplitsPagesWithMetadata(t *testing.T) {
	srv := fakeS3(t, map[string]object{
		"bucket/doc.txt": {
			body:        "first page\fsecond page",
			contentType: "text/plain",
			meta:        map[string]string{"Author": "ada"},
		},
	})
	defer srv.Close()

	pages, err := newTestLoader(t, srv, 0).Load(context.Background(), "bucket", "doc.txt")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, "first page", pages[0].Content)
	assert.Equal(t, "second page", pages[1].Content)
	assert.Equal(t, 1, pages[0].Metadata[MetaPage])
	assert.Equal(t, 2, pages[1].Metadata[MetaPage])

	meta := pages[0].Metadata
	assert.Equal(t, "s3://bucket/doc.txt", meta[MetaSource])
	assert.Equal(t, "text/plain", meta[MetaContentType])
	assert.Equal(t, "2024-05-01T12:00:00Z", meta[MetaLastModified])
	assert.Equal(t, "abc123", meta[MetaETag])
	assert.Equal(t, "ada", meta["author"])
}

func TestLoad_NotFound(t *testing.T) {
	srv := fakeS3(t, nil)
	defer srv.Close()

	_, err := newTestLoader(t, srv, 0).Load(context.Background(), "bucket", "missing.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func TestLoad_TooLarge(t *testing.T) {
	srv := fakeS3(t, map[string]object{
		"bucket/big.txt": {body: strings.Repeat("x", 100), contentType: "text/plain"},
	})
	defer srv.Close()

	_, err := newTestLoader(t, srv, 10).Load(context.Background(), "bucket", "big.txt")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoad_RejectsBinary(t *testing.T) {
	srv := fakeS3(t, map[string]object{
		"bucket/blob.bin": {body: string([]byte{0xff, 0xfe, 0x00}), contentType: "application/octet-stream"},
	})
	defer srv.Close()

	_, err := newTestLoader(t, srv, 0).Load(context.Background(), "bucket", "blob.bin")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHealthCheck(t *testing.T) {
	srv := fakeS3(t, nil)
	defer srv.Close()

	require.NoError(t, newTestLoader(t, srv, 0).HealthCheck(context.Background()))
}

func TestNewLoader_RequiresEndpoint(t *testing.T) {
	_, err := NewLoader(&Config{})
	require.Error(t, err)
}
