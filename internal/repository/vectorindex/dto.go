package vectorindex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/docembed/internal/db"
	"github.com/kailas-cloud/docembed/internal/domain/metadata"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// Hash field names of a stored record.
const (
	vectorField   = "__vector"
	metadataField = "__metadata"
	sourceField   = "source"
)

// sourceSeparator splits the source TAG. Object keys never legitimately contain it,
// so a key with commas stays a single tag.
const sourceSeparator = "\x1f"

func buildIndex(name, prefix string, d vector.IndexDescriptor, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(name).
		Prefix(prefix).
		TagWithOpts(sourceField, sourceSeparator, true).
		VectorHNSW(vectorField, d.Dimension, distanceFor(d.Metric), hnsw.M, hnsw.EFConstruct).
		Build()
}

func distanceFor(m vector.Metric) db.DistanceMetric {
	switch m {
	case vector.MetricEuclidean:
		return db.DistanceL2
	case vector.MetricDotProduct:
		return db.DistanceIP
	default:
		return db.DistanceCosine
	}
}

func recordToHash(rec vector.Record) (map[string]string, error) {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata of %s: %w", rec.ID, err)
	}
	return map[string]string{
		vectorField:   db.EncodeVector(rec.Values),
		metadataField: string(meta),
		sourceField:   SourceTag(rec.Metadata.String(vector.KeyContainer), rec.Metadata.String(vector.KeyObjectKey)),
	}, nil
}

// SourceTag is the value of the source TAG for a document, usable as a query filter.
func SourceTag(container, objectKey string) string {
	return normalizeSource(container + "/" + objectKey)
}

func normalizeSource(source string) string {
	return strings.ReplaceAll(source, sourceSeparator, "")
}

func decodeMetadata(raw string) (metadata.Map, error) {
	if raw == "" {
		return metadata.Map{}, nil
	}
	var m metadata.Map
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	return m, nil
}

func descriptorToHash(d vector.IndexDescriptor) map[string]string {
	return map[string]string{
		"name":       d.Name,
		"dimension":  strconv.Itoa(d.Dimension),
		"metric":     string(d.Metric),
		"region":     d.Region,
		"created_at": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
}

func descriptorFromHash(name string, m map[string]string) (vector.IndexDescriptor, error) {
	dim, err := strconv.Atoi(m["dimension"])
	if err != nil {
		return vector.IndexDescriptor{}, fmt.Errorf("parse dimension of %s: %w", name, err)
	}
	if dim <= 0 {
		return vector.IndexDescriptor{}, fmt.Errorf("descriptor of %s: non-positive dimension %d", name, dim)
	}
	return vector.IndexDescriptor{
		Name:      name,
		Dimension: dim,
		Metric:    vector.Metric(m["metric"]),
		Region:    m["region"],
	}, nil
}
