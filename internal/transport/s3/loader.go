// Package s3 loads text documents from S3-compatible object storage.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/chunk"
)

// PageBreak separates pages in a stored text document.
const PageBreak = "\f"

// DefaultMaxObjectBytes caps the size of a loaded document.
const DefaultMaxObjectBytes = 32 << 20

// Page metadata keys.
const (
	MetaSource       = "source"
	MetaPage         = "page"
	MetaContentType  = "contentType"
	MetaLastModified = "lastModified"
	MetaETag         = "etag"
)

// Config holds object storage connection settings.
type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	Region         string
	MaxObjectBytes int64
	// Bucket is checked by HealthCheck. Optional.
	Bucket string
	Logger *zap.Logger
}

// Loader reads pre-extracted text objects and splits them into pages.
type Loader struct {
	client   *minio.Client
	maxBytes int64
	bucket   string
	logger   *zap.Logger
}

// NewLoader creates a Loader. Endpoint may carry an http(s):// scheme.
func NewLoader(cfg *Config) (*Loader, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	maxBytes := cfg.MaxObjectBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxObjectBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{client: client, maxBytes: maxBytes, bucket: cfg.Bucket, logger: logger}, nil
}

// Load fetches container/objectKey and returns one Page per form-feed separated section.
func (l *Loader) Load(ctx context.Context, container, objectKey string) ([]chunk.Page, error) {
	info, err := l.client.StatObject(ctx, container, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapError("stat", err)
	}
	if info.Size > l.maxBytes {
		return nil, fmt.Errorf("%w: object is %d bytes, limit %d", domain.ErrInvalidInput, info.Size, l.maxBytes)
	}

	obj, err := l.client.GetObject(ctx, container, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError("get", err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(io.LimitReader(obj, l.maxBytes+1))
	if err != nil {
		return nil, mapError("read", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: object exceeds %d bytes", domain.ErrInvalidInput, l.maxBytes)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: object is not UTF-8 text", domain.ErrInvalidInput)
	}

	base := objectMetadata(container, objectKey, info)
	texts := strings.Split(string(data), PageBreak)
	pages := make([]chunk.Page, len(texts))
	for i, text := range texts {
		meta := make(map[string]any, len(base)+1)
		for k, v := range base {
			meta[k] = v
		}
		meta[MetaPage] = i + 1
		pages[i] = chunk.Page{Content: text, Metadata: meta}
	}

	l.logger.Debug("Object loaded",
		zap.String("container", container),
		zap.String("object_key", objectKey),
		zap.Int("bytes", len(data)),
		zap.Int("pages", len(pages)),
	)
	return pages, nil
}

// HealthCheck verifies the configured bucket is reachable.
func (l *Loader) HealthCheck(ctx context.Context) error {
	if l.bucket == "" {
		return nil
	}
	ok, err := l.client.BucketExists(ctx, l.bucket)
	if err != nil {
		return fmt.Errorf("s3 health check: %w", err)
	}
	if !ok {
		return fmt.Errorf("s3 health check: bucket %q: %w", l.bucket, domain.ErrNotFound)
	}
	return nil
}

func objectMetadata(container, objectKey string, info minio.ObjectInfo) map[string]any {
	meta := make(map[string]any, len(info.UserMetadata)+4)
	for k, v := range info.UserMetadata {
		meta[strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")] = v
	}
	// Object attributes win over user metadata with the same name.
	meta[MetaSource] = "s3://" + container + "/" + objectKey
	if info.ContentType != "" {
		meta[MetaContentType] = info.ContentType
	}
	if !info.LastModified.IsZero() {
		meta[MetaLastModified] = info.LastModified.UTC().Format(time.RFC3339)
	}
	if info.ETag != "" {
		meta[MetaETag] = strings.Trim(info.ETag, `"`)
	}
	return meta
}

func mapError(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("s3 %s: %w: %w", op, domain.ErrNotFound, err)
	}
	return fmt.Errorf("s3 %s: %w", op, err)
}
