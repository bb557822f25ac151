// Package vector holds the value types exchanged with a vector index.
package vector

import (
	"fmt"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/metadata"
)

// Metric is the similarity function of an index.
type Metric string

// Supported metrics.
const (
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
	MetricDotProduct Metric = "dotproduct"
)

// IsValid checks if the metric is supported.
func (m Metric) IsValid() bool {
	return m == MetricCosine || m == MetricEuclidean || m == MetricDotProduct
}

// Defaults for index creation.
const (
	DefaultDimension = 1536
	DefaultMetric    = MetricCosine
	DefaultRegion    = "us-east-1"
)

// IndexDescriptor names and shapes a vector index.
type IndexDescriptor struct {
	Name      string
	Dimension int
	Metric    Metric
	Region    string
}

// WithDefaults fills zero-valued Dimension, Metric and Region.
func (d IndexDescriptor) WithDefaults() IndexDescriptor {
	if d.Dimension == 0 {
		d.Dimension = DefaultDimension
	}
	if d.Metric == "" {
		d.Metric = DefaultMetric
	}
	if d.Region == "" {
		d.Region = DefaultRegion
	}
	return d
}

// Validate checks the descriptor before any call to the index service.
func (d IndexDescriptor) Validate() error {
	if !domain.IsValidIdentifier(d.Name) {
		return domain.NewValidationError("index", fmt.Sprintf("name %q must match [a-zA-Z0-9_-]+", d.Name))
	}
	if d.Dimension <= 0 {
		return domain.NewValidationError("index", "dimension must be positive")
	}
	if !d.Metric.IsValid() {
		return domain.NewValidationError("index", fmt.Sprintf("unsupported metric %q", d.Metric))
	}
	return nil
}

// Record is one vector with its identifier and Scalar metadata.
type Record struct {
	ID       string
	Values   []float32
	Metadata metadata.Map
}

// Match is one query hit. Higher Score means more similar.
type Match struct {
	ID       string
	Score    float64
	Metadata metadata.Map
}

// NoMatchesMessage is returned as page content when a query finds nothing.
const NoMatchesMessage = "No matches found. Please upload relevant data and try again."

// Metadata keys written on every record.
const (
	KeyContainer   = "container"
	KeyObjectKey   = "objectKey"
	KeyPageContent = "pageContent"
	KeyChunkIndex  = "chunkIndex"
)

// QueryResult holds the matches of a similarity query, most similar first.
// Matches is never empty.
type QueryResult struct {
	Query   string
	Matches []Match
}

// FallbackMatch is the single match reported when an index returns nothing.
func FallbackMatch() Match {
	return Match{
		Score:    0,
		Metadata: metadata.Map{KeyPageContent: metadata.String(NoMatchesMessage)},
	}
}

// Query asks an index for the TopK nearest records to Values.
// Source, when set, restricts matches to one document.
type Query struct {
	Index           string
	Values          []float32
	TopK            int
	IncludeMetadata bool
	Source          string
}
