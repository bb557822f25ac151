package chunk

import "github.com/kailas-cloud/docembed/internal/domain/metadata"

// Origin identifies where a document was loaded from.
type Origin struct {
	Container string
	ObjectKey string
}

// Page is one already-extracted page of text with the loader's raw metadata.
type Page struct {
	Content  string
	Metadata map[string]any
}

// SourceDocument is a loaded document. Immutable once loaded.
type SourceDocument struct {
	Origin Origin
	Pages  []Page
}

// Chunk is a contiguous piece of a document's text.
// Sequence numbers are assigned in document order starting at 0.
type Chunk struct {
	Content  string
	Metadata metadata.Map
	Sequence int
	// DroppedKeys lists page metadata keys that were not Scalar and were excluded.
	DroppedKeys []string
}
