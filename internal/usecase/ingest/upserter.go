package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/batch"
	"github.com/kailas-cloud/docembed/internal/domain/chunk"
	"github.com/kailas-cloud/docembed/internal/domain/metadata"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
	"github.com/kailas-cloud/docembed/internal/metrics"
)

// Upserter defaults.
const (
	DefaultBatchSize            = 100
	DefaultEmbedConcurrency     = 8
	DefaultMaxConcurrentBatches = 4
)

// Upserter embeds chunks and writes them to an index in fixed-size batches.
//
// Batches run on a bounded pool. Embeddings run on a second pool that batch
// tasks submit to; embed tasks never submit work themselves, so the two pools
// cannot starve each other.
type Upserter struct {
	embed  Embedder
	writer RecordWriter
	ids    vector.IDGenerator
	logger *zap.Logger

	batchSize int
	batchPool *ants.Pool
	embedPool *ants.Pool
}

// UpserterOption configures an Upserter.
type UpserterOption func(*upserterConfig)

type upserterConfig struct {
	batchSize        int
	embedConcurrency int
	maxBatches       int
}

// WithBatchSize sets the number of chunks per batch.
func WithBatchSize(n int) UpserterOption {
	return func(c *upserterConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithEmbedConcurrency bounds concurrent embedding calls.
func WithEmbedConcurrency(n int) UpserterOption {
	return func(c *upserterConfig) {
		if n > 0 {
			c.embedConcurrency = n
		}
	}
}

// WithMaxConcurrentBatches bounds batches in flight.
func WithMaxConcurrentBatches(n int) UpserterOption {
	return func(c *upserterConfig) {
		if n > 0 {
			c.maxBatches = n
		}
	}
}

// NewUpserter creates an Upserter. Call Release when done.
func NewUpserter(
	embed Embedder, writer RecordWriter, ids vector.IDGenerator,
	logger *zap.Logger, opts ...UpserterOption,
) (*Upserter, error) {
	cfg := upserterConfig{
		batchSize:        DefaultBatchSize,
		embedConcurrency: DefaultEmbedConcurrency,
		maxBatches:       DefaultMaxConcurrentBatches,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	batchPool, err := ants.NewPool(cfg.maxBatches)
	if err != nil {
		return nil, fmt.Errorf("create batch pool: %w", err)
	}
	embedPool, err := ants.NewPool(cfg.embedConcurrency)
	if err != nil {
		batchPool.Release()
		return nil, fmt.Errorf("create embed pool: %w", err)
	}

	return &Upserter{
		embed:     embed,
		writer:    writer,
		ids:       ids,
		logger:    logger,
		batchSize: cfg.batchSize,
		batchPool: batchPool,
		embedPool: embedPool,
	}, nil
}

// Release stops the worker pools. The Upserter must not be used afterwards.
func (u *Upserter) Release() {
	u.batchPool.Release()
	u.embedPool.Release()
}

// UpsertAll embeds and writes chunks to index. Every batch appears in the report.
//
// After the first failed batch no further batches are dispatched; they are
// reported as skipped. Batches already in flight finish and are not rolled back.
// The returned error joins all BatchErrors.
func (u *Upserter) UpsertAll(
	ctx context.Context, index string, chunks []chunk.Chunk, source chunk.Origin,
) (batch.Report, error) {
	report := batch.Report{Index: index, Chunks: len(chunks)}
	if len(chunks) == 0 {
		return report, nil
	}

	numBatches := (len(chunks) + u.batchSize - 1) / u.batchSize
	results := make([]batch.Result, numBatches)

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)

	for b := range numBatches {
		start := b * u.batchSize
		end := min(start+u.batchSize, len(chunks))

		if failed.Load() || ctx.Err() != nil {
			results[b] = batch.NewSkipped(b, start, end)
			continue
		}

		wg.Add(1)
		err := u.batchPool.Submit(func() {
			defer wg.Done()
			// Queued behind a failure or a cancellation: never started.
			if failed.Load() || ctx.Err() != nil {
				results[b] = batch.NewSkipped(b, start, end)
				return
			}
			r := u.runBatch(ctx, index, b, chunks[start:end], source, start)
			if r.Status() == batch.StatusError {
				failed.Store(true)
			}
			results[b] = r
		})
		if err != nil {
			wg.Done()
			failed.Store(true)
			results[b] = batch.NewError(b, start, end, &domain.BatchError{
				Index: index, Batch: b, Start: start, End: end,
				Err: fmt.Errorf("dispatch: %w", err),
			})
		}
	}
	wg.Wait()

	report.Batches = results
	for _, r := range results {
		metrics.IngestBatchesTotal.WithLabelValues(index, string(r.Status())).Inc()
	}

	u.logger.Info("Upsert finished",
		zap.String("index", index),
		zap.Int("chunks", len(chunks)),
		zap.Int("batches", numBatches),
		zap.Int("ok", report.Count(batch.StatusOK)),
		zap.Int("failed", report.Count(batch.StatusError)),
		zap.Int("skipped", report.Count(batch.StatusSkipped)),
	)

	err := report.Err()
	if cerr := ctx.Err(); cerr != nil && report.Count(batch.StatusSkipped) > 0 {
		err = errors.Join(err, fmt.Errorf("upsert interrupted: %w", cerr))
	}
	return report, err
}

// runBatch embeds every chunk of one batch and writes the records.
// Any embedding failure fails the whole batch.
func (u *Upserter) runBatch(
	ctx context.Context, index string, num int, chunks []chunk.Chunk, source chunk.Origin, start int,
) batch.Result {
	end := start + len(chunks)
	began := time.Now()
	defer func() {
		metrics.IngestBatchDuration.WithLabelValues(index).Observe(time.Since(began).Seconds())
	}()

	fail := func(err error) batch.Result {
		u.logger.Warn("Batch failed",
			zap.String("index", index),
			zap.Int("batch", num),
			zap.Int("start", start),
			zap.Int("end", end),
			zap.Error(err),
		)
		return batch.NewError(num, start, end, &domain.BatchError{
			Index: index, Batch: num, Start: start, End: end, Err: err,
		})
	}

	vectors, err := u.embedAll(ctx, chunks)
	if err != nil {
		return fail(err)
	}

	records := make([]vector.Record, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = u.ids.NewID(source.Container, source.ObjectKey, c.Sequence, c.Content)
		records[i] = vector.Record{
			ID:       ids[i],
			Values:   vectors[i],
			Metadata: recordMetadata(source, c),
		}
	}

	if err := u.writer.Upsert(ctx, index, records); err != nil {
		return fail(fmt.Errorf("write records: %w", err))
	}
	return batch.NewOK(num, start, end, ids)
}

// embedAll embeds chunks concurrently. vectors[i] always belongs to chunks[i].
func (u *Upserter) embedAll(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		err := u.embedPool.Submit(func() {
			defer wg.Done()
			res, err := u.embed.Embed(ctx, c.Content)
			if err != nil {
				errs[i] = &domain.EmbeddingError{Sequence: c.Sequence, Err: err}
				return
			}
			vectors[i] = res.Embedding
		})
		if err != nil {
			wg.Done()
			errs[i] = &domain.EmbeddingError{Sequence: c.Sequence, Err: fmt.Errorf("dispatch: %w", err)}
		}
	}
	wg.Wait()

	return vectors, errors.Join(errs...)
}

// recordMetadata builds the stored metadata of one chunk.
// Page metadata overrides the source fields; chunkIndex is always set.
func recordMetadata(source chunk.Origin, c chunk.Chunk) metadata.Map {
	base := metadata.Map{
		vector.KeyContainer:   metadata.String(source.Container),
		vector.KeyObjectKey:   metadata.String(source.ObjectKey),
		vector.KeyPageContent: metadata.String(c.Content),
	}
	m := metadata.Merge(base, c.Metadata)
	m[vector.KeyChunkIndex] = metadata.Number(float64(c.Sequence))
	return m
}
