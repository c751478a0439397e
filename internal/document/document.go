package document

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// InputDocument is one uploaded PDF buffer. It is owned by the merge call
// that created it and is never mutated.
type InputDocument struct {
	Bytes       []byte
	DisplayName string
	Ordinal     int // 0-based upload position
}

// Pathology is the heuristic reason a document might be hard to process.
// It only selects strategy ordering.
type Pathology int

const (
	Normal Pathology = iota
	Encrypted
	StructurallySuspect
)

func (p Pathology) String() string {
	switch p {
	case Encrypted:
		return "encrypted"
	case StructurallySuspect:
		return "structurally-suspect"
	default:
		return "normal"
	}
}

// Pathologies lists every pathology value.
func Pathologies() []Pathology { return []Pathology{Normal, Encrypted, StructurallySuspect} }

// StrategyResult is the outcome of one strategy attempt.
type StrategyResult struct {
	Success          bool
	PageCount        int
	Output           []byte
	Method           string
	UsedPlaceholders bool
	PlaceholderPages int
	Placeholders     []int // 1-based pages of Output that were synthesized
}

// Attempt is one audit-trail entry of a strategy chain run.
type Attempt struct {
	Strategy string        `json:"strategy"`
	Outcome  string        `json:"outcome"` // success | no_result | unavailable | error | skipped
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ProcessedDocument is the single recovery outcome for one InputDocument.
type ProcessedDocument struct {
	DisplayName      string
	Ordinal          int
	Pathology        Pathology
	Success          bool
	Output           []byte
	PageCount        int
	Method           string
	UsedPlaceholders bool
	PlaceholderPages int
	Placeholders     []int
	ErrorKind        ErrorKind
	ErrorMessage     string
	Digest           string
	Attempts         []Attempt
}

// PageKind tells where a merged page came from.
type PageKind string

const (
	PageContent              PageKind = "content"
	PageSeparator            PageKind = "separator"
	PagePlaceholder          PageKind = "placeholder"
	PageIntegrityPlaceholder PageKind = "integrity-placeholder"
)

// PageRecord maps a merged page back to its source. Separator pages carry
// SourcePage 0.
type PageRecord struct {
	SourceDocument int      `json:"source_document"`
	SourcePage     int      `json:"source_page"`
	MergedPage     int      `json:"merged_page"`
	Kind           PageKind `json:"kind"`
}

// MergedOutput is the consolidated bundle handed to the caller.
type MergedOutput struct {
	Bytes         []byte
	TotalPages    int
	DocumentCount int
	Pages         []PageRecord
	Documents     []ProcessedDocument
}

// Digest returns the hex BLAKE2b-256 digest of b.
func Digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
