// Package query implements the read path: similarity search over an index.
package query

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
	"github.com/kailas-cloud/docembed/internal/logger"
	"github.com/kailas-cloud/docembed/internal/metrics"
)

// DefaultTopK is the number of matches requested per query.
const DefaultTopK = 5

// Service answers similarity queries against one index.
type Service struct {
	embed  Embedder
	search Searcher
	index  string
	topK   int
}

// New creates a query service over the named index.
func New(embed Embedder, search Searcher, index string) *Service {
	return &Service{embed: embed, search: search, index: index, topK: DefaultTopK}
}

// WithTopK configures the number of matches requested.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// GetSimilarData returns the chunks most similar to text, most similar first.
// The result always holds at least one match: an index with no hits yields
// the fallback match.
func (s *Service) GetSimilarData(ctx context.Context, text string) (vector.QueryResult, error) {
	return s.GetSimilarDataFrom(ctx, text, "")
}

// GetSimilarDataFrom is GetSimilarData restricted to records of one source
// document ("container/objectKey"). An empty source searches everything.
func (s *Service) GetSimilarDataFrom(ctx context.Context, text, source string) (vector.QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return vector.QueryResult{}, domain.NewValidationError("query", "must not be empty")
	}
	log := logger.FromContext(ctx)

	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(s.index, "error").Inc()
		return vector.QueryResult{}, &domain.QueryError{Index: s.index, Stage: domain.QueryStageEmbed, Err: err}
	}

	matches, err := s.search.Query(ctx, vector.Query{
		Index:           s.index,
		Values:          emb.Embedding,
		TopK:            s.topK,
		IncludeMetadata: true,
		Source:          source,
	})
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues(s.index, "error").Inc()
		return vector.QueryResult{}, &domain.QueryError{Index: s.index, Stage: domain.QueryStageSearch, Err: err}
	}

	if len(matches) == 0 {
		metrics.QueryRequestsTotal.WithLabelValues(s.index, "fallback").Inc()
		log.Debug("Query returned no matches", zap.String("index", s.index))
		matches = []vector.Match{vector.FallbackMatch()}
	} else {
		metrics.QueryRequestsTotal.WithLabelValues(s.index, "match").Inc()
	}

	return vector.QueryResult{Query: text, Matches: matches}, nil
}
