package provision

import (
	"context"

	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// IndexService is the subset of the vector index used for provisioning.
type IndexService interface {
	ListIndexNames(ctx context.Context) ([]string, error)
	CreateIndex(ctx context.Context, d vector.IndexDescriptor) error
	// EnsureDescriptor records d for an existing index if nothing is recorded yet
	// and fails if the recorded dimension differs.
	EnsureDescriptor(ctx context.Context, d vector.IndexDescriptor) error
}
