package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IDStrategy decides how record identifiers are generated.
type IDStrategy string

// ID strategies.
const (
	// IDRandom produces a fresh UUIDv4 per record, so re-ingesting a document appends.
	IDRandom IDStrategy = "random"
	// IDContent derives a UUIDv5 from origin, sequence and text, so re-ingesting overwrites.
	IDContent IDStrategy = "content"
)

// IsValid checks if the strategy is known.
func (s IDStrategy) IsValid() bool {
	return s == IDRandom || s == IDContent
}

// idNamespace scopes content-derived identifiers.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docembed/chunk"))

// IDGenerator produces record identifiers.
type IDGenerator interface {
	NewID(container, objectKey string, sequence int, content string) string
}

// NewIDGenerator returns the generator for a strategy. Empty means IDRandom.
func NewIDGenerator(s IDStrategy) (IDGenerator, error) {
	switch s {
	case "", IDRandom:
		return randomIDs{}, nil
	case IDContent:
		return contentIDs{}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", s)
	}
}

type randomIDs struct{}

func (randomIDs) NewID(string, string, int, string) string {
	return uuid.NewString()
}

type contentIDs struct{}

func (contentIDs) NewID(container, objectKey string, sequence int, content string) string {
	name := strings.Join([]string{container, objectKey, strconv.Itoa(sequence), content}, "\x00")
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
