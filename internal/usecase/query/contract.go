package query

import (
	"context"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs nearest-neighbour queries against an index.
type Searcher interface {
	Query(ctx context.Context, q vector.Query) ([]vector.Match, error)
}
