// Package provision creates vector indexes on demand.
package provision

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// Service ensures an index exists before records are written to it.
type Service struct {
	indexes IndexService
	logger  *zap.Logger
}

// New creates a provisioning service.
func New(indexes IndexService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{indexes: indexes, logger: logger}
}

// EnsureIndex creates the index unless it already exists. Idempotent.
// A create that loses a race to a concurrent creator counts as success.
// For an existing index the recorded descriptor is checked and restored if missing.
func (s *Service) EnsureIndex(ctx context.Context, d vector.IndexDescriptor) error {
	d = d.WithDefaults()
	if err := d.Validate(); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	names, err := s.indexes.ListIndexNames(ctx)
	if err != nil {
		return &domain.ProvisioningError{Index: d.Name, Err: fmt.Errorf("list indexes: %w", err)}
	}
	if slices.Contains(names, d.Name) {
		if err := s.indexes.EnsureDescriptor(ctx, d); err != nil {
			return &domain.ProvisioningError{Index: d.Name, Err: err}
		}
		return nil
	}

	err = s.indexes.CreateIndex(ctx, d)
	switch {
	case err == nil:
		s.logger.Info("Index created",
			zap.String("index", d.Name),
			zap.Int("dimension", d.Dimension),
			zap.String("metric", string(d.Metric)),
		)
		return nil
	case errors.Is(err, domain.ErrIndexExists):
		s.logger.Debug("Index created concurrently", zap.String("index", d.Name))
		return nil
	default:
		return &domain.ProvisioningError{Index: d.Name, Err: err}
	}
}
