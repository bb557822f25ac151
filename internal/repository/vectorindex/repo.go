package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kailas-cloud/docembed/internal/db"
	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// store is the consumer interface for the vector index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	ListIndexes(ctx context.Context) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters. Zero values keep server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the vector index service on Redis FT indexes.
// Records of index {name} live under {prefix}{name}: and the index itself is {prefix}{name}:idx.
type Repo struct {
	store  store
	prefix string
	hnsw   HNSWConfig

	mu          sync.RWMutex
	descriptors map[string]vector.IndexDescriptor
}

// New creates a vector index repository. An empty prefix uses domain.DefaultKeyPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{
		store:       s,
		prefix:      prefix,
		descriptors: make(map[string]vector.IndexDescriptor),
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// ListIndexNames returns the logical names of indexes owned by this prefix.
func (r *Repo) ListIndexNames(ctx context.Context) ([]string, error) {
	all, err := r.store.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	names := make([]string, 0, len(all))
	for _, full := range all {
		if name, ok := r.logicalName(full); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// CreateIndex records the descriptor, then runs FT.CREATE.
// Returns domain.ErrIndexExists when the index is already present.
func (r *Repo) CreateIndex(ctx context.Context, d vector.IndexDescriptor) error {
	def, err := buildIndex(r.indexName(d.Name), r.recordPrefix(d.Name), d, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	// An index must never exist without its descriptor: Upsert relies on it.
	if err := r.EnsureDescriptor(ctx, d); err != nil {
		return err
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return domain.ErrIndexExists
		}
		return fmt.Errorf("create index %s: %w", d.Name, err)
	}
	return nil
}

// EnsureDescriptor stores d unless a descriptor is already recorded.
// A recorded descriptor with a different dimension is an error.
func (r *Repo) EnsureDescriptor(ctx context.Context, d vector.IndexDescriptor) error {
	stored, err := r.Describe(ctx, d.Name)
	switch {
	case err == nil:
		if stored.Dimension != d.Dimension {
			return fmt.Errorf("index %s: %w: stored %d, configured %d",
				d.Name, domain.ErrVectorDimMismatch, stored.Dimension, d.Dimension)
		}
		return nil
	case errors.Is(err, domain.ErrNotFound):
		if err := r.store.HSet(ctx, r.descriptorKey(d.Name), descriptorToHash(d)); err != nil {
			return fmt.Errorf("hset descriptor %s: %w", d.Name, err)
		}
		r.remember(d)
		return nil
	default:
		return err
	}
}

// Describe returns the stored descriptor of an index.
func (r *Repo) Describe(ctx context.Context, name string) (vector.IndexDescriptor, error) {
	r.mu.RLock()
	d, ok := r.descriptors[name]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	m, err := r.store.HGetAll(ctx, r.descriptorKey(name))
	if err != nil {
		return vector.IndexDescriptor{}, fmt.Errorf("hgetall descriptor %s: %w", name, err)
	}
	if len(m) == 0 {
		return vector.IndexDescriptor{}, domain.ErrNotFound
	}
	d, err = descriptorFromHash(name, m)
	if err != nil {
		return vector.IndexDescriptor{}, err
	}
	r.remember(d)
	return d, nil
}

// Upsert writes records in one pipelined round-trip. Existing IDs are overwritten.
func (r *Repo) Upsert(ctx context.Context, indexName string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	desc, err := r.Describe(ctx, indexName)
	if err != nil {
		return fmt.Errorf("dimension of %s unknown: %w", indexName, err)
	}
	dim := desc.Dimension

	items := make([]db.HashSetItem, 0, len(records))
	for _, rec := range records {
		if len(rec.Values) != dim {
			return fmt.Errorf("record %s: %w: got %d, want %d", rec.ID, domain.ErrVectorDimMismatch, len(rec.Values), dim)
		}
		fields, err := recordToHash(rec)
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: r.recordPrefix(indexName) + rec.ID, Fields: fields})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset records into %s: %w", indexName, err)
	}
	return nil
}

// Query returns up to TopK matches, most similar first.
func (r *Repo) Query(ctx context.Context, q vector.Query) ([]vector.Match, error) {
	desc, err := r.Describe(ctx, q.Index)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if desc.Dimension > 0 && len(q.Values) != desc.Dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(q.Values), desc.Dimension)
	}

	knn := &db.KNNQuery{
		IndexName:   r.indexName(q.Index),
		VectorField: vectorField,
		Vector:      q.Values,
		K:           q.TopK,
		Distance:    distanceFor(desc.WithDefaults().Metric),
	}
	if q.IncludeMetadata {
		knn.ReturnFields = []string{metadataField}
	} else {
		knn.ReturnFields = []string{sourceField}
	}
	if q.Source != "" {
		knn.Filters = []db.TagFilter{{Field: sourceField, Value: normalizeSource(q.Source)}}
	}

	res, err := r.store.SearchKNN(ctx, knn)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("index %s: %w", q.Index, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}

	prefix := r.recordPrefix(q.Index)
	matches := make([]vector.Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		m := vector.Match{ID: strings.TrimPrefix(e.Key, prefix), Score: e.Score}
		if q.IncludeMetadata {
			meta, err := decodeMetadata(e.Fields[metadataField])
			if err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", e.Key, err)
			}
			m.Metadata = meta
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (r *Repo) remember(d vector.IndexDescriptor) {
	r.mu.Lock()
	r.descriptors[d.Name] = d
	r.mu.Unlock()
}

// Redis key patterns: {prefix}index:{name}, {prefix}{name}:idx, {prefix}{name}:

func (r *Repo) descriptorKey(name string) string {
	return fmt.Sprintf("%sindex:%s", r.prefix, name)
}

func (r *Repo) indexName(name string) string {
	return fmt.Sprintf("%s%s:idx", r.prefix, name)
}

func (r *Repo) recordPrefix(name string) string {
	return fmt.Sprintf("%s%s:", r.prefix, name)
}

func (r *Repo) logicalName(full string) (string, bool) {
	if !strings.HasPrefix(full, r.prefix) || !strings.HasSuffix(full, ":idx") {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(full, r.prefix), ":idx")
	if !domain.IsValidIdentifier(name) {
		return "", false
	}
	return name, true
}
