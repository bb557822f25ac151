// Package ingest turns stored documents into vector records.
package ingest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/batch"
	"github.com/kailas-cloud/docembed/internal/domain/chunk"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
	"github.com/kailas-cloud/docembed/internal/logger"
	"github.com/kailas-cloud/docembed/internal/metrics"
)

// TrainingInput names the document to ingest. Container may be empty when a
// default container is configured.
type TrainingInput struct {
	Container string
	ObjectKey string
}

// Service runs the write path: load, chunk, ensure index, upsert.
type Service struct {
	loader           DocumentLoader
	splitter         *chunk.Splitter
	indexes          IndexEnsurer
	upserter         BatchUpserter
	descriptor       vector.IndexDescriptor
	defaultContainer string
}

// New creates an ingestion service writing to the index described by d.
func New(
	loader DocumentLoader, splitter *chunk.Splitter,
	indexes IndexEnsurer, upserter BatchUpserter, d vector.IndexDescriptor,
) *Service {
	return &Service{
		loader:     loader,
		splitter:   splitter,
		indexes:    indexes,
		upserter:   upserter,
		descriptor: d.WithDefaults(),
	}
}

// WithDefaultContainer sets the container used when a request names none.
func (s *Service) WithDefaultContainer(container string) *Service {
	s.defaultContainer = strings.TrimSpace(container)
	return s
}

// IndexName returns the index this service writes to.
func (s *Service) IndexName() string { return s.descriptor.Name }

// TrainEmbeddings ingests one document. Input is validated before any
// network call. Load and provisioning failures are fatal; batch failures are
// reported per batch in the returned Report.
func (s *Service) TrainEmbeddings(ctx context.Context, in TrainingInput) (batch.Report, error) {
	source, err := s.resolve(in)
	if err != nil {
		return batch.Report{}, err
	}
	log := logger.FromContext(ctx).With(
		zap.String("container", source.Container),
		zap.String("object_key", source.ObjectKey),
		zap.String("index", s.descriptor.Name),
	)

	pages, err := s.loader.Load(ctx, source.Container, source.ObjectKey)
	if err != nil {
		return batch.Report{}, fmt.Errorf("load %s/%s: %w", source.Container, source.ObjectKey, err)
	}

	chunks := s.splitter.SplitPages(pages)
	metrics.IngestChunksTotal.WithLabelValues(s.descriptor.Name).Add(float64(len(chunks)))
	if dropped := droppedKeys(chunks); len(dropped) > 0 {
		log.Warn("Non-scalar page metadata dropped", zap.Strings("keys", dropped))
	}
	log.Info("Document chunked", zap.Int("pages", len(pages)), zap.Int("chunks", len(chunks)))

	if err := s.indexes.EnsureIndex(ctx, s.descriptor); err != nil {
		return batch.Report{}, fmt.Errorf("train embeddings: %w", err)
	}

	if len(chunks) == 0 {
		return batch.Report{Index: s.descriptor.Name}, nil
	}

	report, err := s.upserter.UpsertAll(ctx, s.descriptor.Name, chunks, source)
	if err != nil {
		return report, fmt.Errorf("train embeddings: %w", err)
	}
	return report, nil
}

func (s *Service) resolve(in TrainingInput) (chunk.Origin, error) {
	key := strings.TrimSpace(in.ObjectKey)
	if key == "" {
		return chunk.Origin{}, domain.NewValidationError("objectKey", "is required")
	}
	container := strings.TrimSpace(in.Container)
	if container == "" {
		container = s.defaultContainer
	}
	if container == "" {
		return chunk.Origin{}, domain.NewValidationError("container", "is required (no default configured)")
	}
	return chunk.Origin{Container: container, ObjectKey: key}, nil
}

func droppedKeys(chunks []chunk.Chunk) []string {
	var keys []string
	for _, c := range chunks {
		for _, k := range c.DroppedKeys {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}
