package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/batch"
	"github.com/kailas-cloud/docembed/internal/domain/chunk"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// seqEmbedder returns a one-dimensional vector holding the number after the
// last '-' in the text, so records can be paired back to their chunk.
type seqEmbedder struct {
	calls  atomic.Int64
	failOn string
}

func (e *seqEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.calls.Add(1)
	if e.failOn != "" && text == e.failOn {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: boom", domain.ErrEmbeddingProviderError)
	}
	n, err := strconv.Atoi(text[strings.LastIndex(text, "-")+1:])
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(n)}}, nil
}

type recordingWriter struct {
	mu      sync.Mutex
	records []vector.Record
	calls   int
	err     error
}

func (w *recordingWriter) Upsert(_ context.Context, _ string, records []vector.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, records...)
	return nil
}

// peakGauge tracks concurrent calls. Each call holds its slot until the peak
// reaches want (or a deadline passes), so a bound of want is actually exercised.
type peakGauge struct {
	want int64
	cur  atomic.Int64
	peak atomic.Int64
}

func (g *peakGauge) hold() {
	n := g.cur.Add(1)
	for {
		old := g.peak.Load()
		if n <= old || g.peak.CompareAndSwap(old, n) {
			break
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for g.peak.Load() < g.want && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	g.cur.Add(-1)
}

type gaugedWriter struct {
	recordingWriter
	gauge peakGauge
}

func (w *gaugedWriter) Upsert(ctx context.Context, index string, records []vector.Record) error {
	w.gauge.hold()
	return w.recordingWriter.Upsert(ctx, index, records)
}

type gaugedEmbedder struct {
	seqEmbedder
	gauge peakGauge
}

func (e *gaugedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	e.gauge.hold()
	return e.seqEmbedder.Embed(ctx, text)
}

func makeChunks(n int) []chunk.Chunk {
	out := make([]chunk.Chunk, n)
	for i := range out {
		out[i] = chunk.Chunk{Content: fmt.Sprintf("chunk-%d", i), Sequence: i}
	}
	return out
}

// --- Service mocks ---

type mockLoader struct {
	loadFn func(ctx context.Context, container, key string) ([]chunk.Page, error)
	calls  int
}

func (m *mockLoader) Load(ctx context.Context, container, key string) ([]chunk.Page, error) {
	m.calls++
	if m.loadFn != nil {
		return m.loadFn(ctx, container, key)
	}
	return nil, nil
}

type mockEnsurer struct {
	err   error
	calls int
}

func (m *mockEnsurer) EnsureIndex(_ context.Context, _ vector.IndexDescriptor) error {
	m.calls++
	return m.err
}

type mockUpserter struct {
	upsertFn func(ctx context.Context, index string, chunks []chunk.Chunk, source chunk.Origin) (batch.Report, error)
	calls    int
}

func (m *mockUpserter) UpsertAll(
	ctx context.Context, index string, chunks []chunk.Chunk, source chunk.Origin,
) (batch.Report, error) {
	m.calls++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, index, chunks, source)
	}
	return batch.Report{Index: index, Chunks: len(chunks)}, nil
}
