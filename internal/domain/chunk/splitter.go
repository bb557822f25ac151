// Package chunk splits extracted text into overlapping chunks suitable for embedding.
package chunk

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/kailas-cloud/docembed/internal/domain/metadata"
)

// Defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators returns the separator hierarchy: paragraph, line, word, character.
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", " ", ""}
}

// ErrInvalidOptions is returned by New for inconsistent parameters.
var ErrInvalidOptions = errors.New("invalid chunker options")

// Options configures a Splitter. Zero values take defaults.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Splitter is a recursive separator-based text splitter. Safe for concurrent use.
type Splitter struct {
	size    int
	overlap int
	rc      textsplitter.RecursiveCharacter
}

// New validates options and creates a Splitter.
// ChunkOverlap must be strictly smaller than ChunkSize.
func New(opts Options) (*Splitter, error) {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", ErrInvalidOptions)
	}
	if opts.ChunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative", ErrInvalidOptions)
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrInvalidOptions, opts.ChunkOverlap, opts.ChunkSize)
	}
	seps := opts.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators()
	}
	cp := make([]string, len(seps))
	copy(cp, seps)
	rc := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(opts.ChunkSize),
		textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		textsplitter.WithSeparators(cp),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	return &Splitter{size: opts.ChunkSize, overlap: opts.ChunkOverlap, rc: rc}, nil
}

// ChunkSize returns the configured maximum chunk length in runes.
func (s *Splitter) ChunkSize() int { return s.size }

// ChunkOverlap returns the configured overlap in runes.
func (s *Splitter) ChunkOverlap() int { return s.overlap }

// Split breaks text into chunks of at most ChunkSize runes.
// A single unit that cannot be divided by any separator may exceed the bound.
// Chunks are whitespace-trimmed and empty chunks are dropped.
func (s *Splitter) Split(text string) []string {
	parts, err := s.rc.SplitText(text)
	if err != nil {
		// RecursiveCharacter never fails on plain text.
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SplitPages splits every page and numbers chunks across the whole document.
// Each chunk carries the Scalar subset of its page's metadata.
func (s *Splitter) SplitPages(pages []Page) []Chunk {
	var out []Chunk
	seq := 0
	for _, p := range pages {
		meta, dropped := metadata.Filter(p.Metadata)
		for _, text := range s.Split(p.Content) {
			out = append(out, Chunk{
				Content:     text,
				Metadata:    metadata.Merge(meta, nil),
				Sequence:    seq,
				DroppedKeys: dropped,
			})
			seq++
		}
	}
	return out
}
