package ingest

import (
	"context"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/batch"
	"github.com/kailas-cloud/docembed/internal/domain/chunk"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// DocumentLoader fetches the extracted pages of a stored document.
type DocumentLoader interface {
	Load(ctx context.Context, container, objectKey string) ([]chunk.Page, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// RecordWriter stores vector records in an index.
type RecordWriter interface {
	Upsert(ctx context.Context, index string, records []vector.Record) error
}

// IndexEnsurer creates an index when it is missing.
type IndexEnsurer interface {
	EnsureIndex(ctx context.Context, d vector.IndexDescriptor) error
}

// BatchUpserter embeds and writes chunks in batches.
type BatchUpserter interface {
	UpsertAll(ctx context.Context, index string, chunks []chunk.Chunk, source chunk.Origin) (batch.Report, error)
}
