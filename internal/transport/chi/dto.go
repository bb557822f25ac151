package chi

import (
	"github.com/kailas-cloud/docembed/internal/domain/batch"
	"github.com/kailas-cloud/docembed/internal/domain/section"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// ErrorCode is a machine-readable error category.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeRateLimited       ErrorCode = "rate_limited"
	ErrorCodeEmbeddingProvider ErrorCode = "embedding_provider_error"
	ErrorCodeInternal          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Report  *TrainReport `json:"report,omitempty"`
}

// TrainRequest is the body of POST /v1/train.
type TrainRequest struct {
	Container string `json:"container,omitempty"`
	ObjectKey string `json:"objectKey"`
}

// TrainReport summarizes an ingestion run.
type TrainReport struct {
	Index    string        `json:"index"`
	Chunks   int           `json:"chunks"`
	Upserted int           `json:"upserted"`
	Batches  []BatchReport `json:"batches"`
}

// BatchReport is the outcome of one upsert batch.
type BatchReport struct {
	Batch  int          `json:"batch"`
	Start  int          `json:"start"`
	End    int          `json:"end"`
	Status batch.Status `json:"status"`
	IDs    []string     `json:"ids,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// SimilarResponse is the body of GET /v1/similar.
type SimilarResponse struct {
	Query   string         `json:"query"`
	Matches []MatchPayload `json:"matches"`
}

// MatchPayload is one similarity match.
type MatchPayload struct {
	ID       string         `json:"id,omitempty"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// SectionsRequest is the body of POST /v1/sections.
type SectionsRequest struct {
	Blocks   []BlockPayload `json:"blocks"`
	Headings []string       `json:"headings"`
}

// BlockPayload is one labeled block of a structured page.
type BlockPayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SectionsResponse maps requested headings to their collected text.
type SectionsResponse struct {
	Sections map[string][]string `json:"sections"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func reportToDTO(r batch.Report) *TrainReport {
	out := &TrainReport{
		Index:    r.Index,
		Chunks:   r.Chunks,
		Upserted: r.Upserted(),
		Batches:  make([]BatchReport, len(r.Batches)),
	}
	for i, b := range r.Batches {
		br := BatchReport{
			Batch:  b.Index(),
			Start:  b.Start(),
			End:    b.End(),
			Status: b.Status(),
			IDs:    b.IDs(),
		}
		if b.Err() != nil {
			br.Error = safeDomainMessage(b.Err())
		}
		out.Batches[i] = br
	}
	return out
}

func resultToDTO(r vector.QueryResult) SimilarResponse {
	out := SimilarResponse{Query: r.Query, Matches: make([]MatchPayload, len(r.Matches))}
	for i, m := range r.Matches {
		out.Matches[i] = MatchPayload{ID: m.ID, Score: m.Score, Metadata: m.Metadata.Plain()}
	}
	return out
}

func blocksFromDTO(in []BlockPayload) []section.Block {
	out := make([]section.Block, len(in))
	for i, b := range in {
		out[i] = section.Block{Type: section.BlockType(b.Type), Text: b.Text}
	}
	return out
}
