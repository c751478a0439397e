package classifier

import (
	"bytes"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/document"
)

// DefaultPrefixLimit bounds how much of a buffer Classify inspects.
const DefaultPrefixLimit = 1 << 20

// errorWindow is how far from an error marker an object reference may sit
// and still count as adjacent.
const errorWindow = 96

var (
	encryptMarker = []byte("/Encrypt")
	objRefRe      = regexp.MustCompile(`\b\d{1,7}\s+\d{1,5}\s+(?:R|obj)\b`)
	errorTextRe   = regexp.MustCompile(`(?i)missing|error|not found|invalid|unknown object|bad xref`)

	pagesTypeRe = regexp.MustCompile(`/Type\s*/Pages\b`)
	pageTypeRe  = regexp.MustCompile(`/Type\s*/Page(?:[^A-Za-z0-9]|$)`)
	countRe     = regexp.MustCompile(`/Count\s+(\d{1,6})`)
)

// DefaultSuspectNamePatterns match display names that usually belong to
// re-saved or partially repaired documents.
var DefaultSuspectNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(corrupt(ed)?|damaged|broken|recovered|repaired)\b`),
}

// Classifier derives a Pathology from raw bytes. It is pure and safe for
// concurrent use.
type Classifier struct {
	PrefixLimit         int
	SuspectNamePatterns []*regexp.Regexp
	Overrides           OverrideTable
}

// New returns a classifier with default limits and the given override table.
func New(overrides OverrideTable) *Classifier {
	return &Classifier{
		PrefixLimit:         DefaultPrefixLimit,
		SuspectNamePatterns: DefaultSuspectNamePatterns,
		Overrides:           overrides,
	}
}

func (c *Classifier) prefix(b []byte) []byte {
	limit := c.PrefixLimit
	if limit <= 0 {
		limit = DefaultPrefixLimit
	}
	if len(b) > limit {
		return b[:limit]
	}
	return b
}

// Classify applies the heuristics in priority order: encryption marker,
// then structural suspicion, then normal.
func (c *Classifier) Classify(b []byte, displayName string) document.Pathology {
	p := c.prefix(b)
	if bytes.Contains(p, encryptMarker) {
		return document.Encrypted
	}
	if hasAdjacentErrorMarkers(p) || c.suspectName(displayName) {
		return document.StructurallySuspect
	}
	return document.Normal
}

func (c *Classifier) suspectName(name string) bool {
	if name == "" {
		return false
	}
	for _, re := range c.SuspectNamePatterns {
		if re.MatchString(name) {
			log.Debug().Str("doc", name).Str("pattern", re.String()).Msg("display name matches suspect pattern")
			return true
		}
	}
	return false
}

func hasAdjacentErrorMarkers(p []byte) bool {
	for _, loc := range errorTextRe.FindAllIndex(p, 64) {
		lo := loc[0] - errorWindow
		if lo < 0 {
			lo = 0
		}
		hi := loc[1] + errorWindow
		if hi > len(p) {
			hi = len(p)
		}
		if objRefRe.Match(p[lo:hi]) {
			return true
		}
	}
	return false
}

// EstimatePages scans the whole buffer for page tree markers. The largest
// /Count of a /Type /Pages node wins; without one, /Type /Page objects are
// counted. Returns 0 when nothing is found.
func EstimatePages(b []byte) int {
	best := 0
	for _, loc := range pagesTypeRe.FindAllIndex(b, -1) {
		start := bytes.LastIndex(b[:loc[0]], []byte("<<"))
		if start < 0 {
			start = loc[0]
		}
		end := bytes.Index(b[loc[1]:], []byte(">>"))
		if end < 0 {
			end = len(b)
		} else {
			end += loc[1]
		}
		for _, m := range countRe.FindAllSubmatch(b[start:end], -1) {
			if n := atoi(m[1]); n > best {
				best = n
			}
		}
	}
	if best > 0 {
		return best
	}
	return len(pageTypeRe.FindAllIndex(b, -1))
}

// ExpectedPages is the best page count estimate for a document: an explicit
// override when one matches, the byte scan otherwise.
func (c *Classifier) ExpectedPages(doc document.InputDocument) int {
	if n, ok := c.Overrides.Lookup(doc.DisplayName); ok {
		return n
	}
	return EstimatePages(doc.Bytes)
}

// ErrorKindFor re-applies the heuristics to pick the failure kind reported
// when every strategy is exhausted.
func (c *Classifier) ErrorKindFor(b []byte, displayName string) document.ErrorKind {
	switch c.Classify(b, displayName) {
	case document.Encrypted:
		return document.ErrEncryptedPdf
	case document.StructurallySuspect:
		return document.ErrCorruptedPdf
	}
	if len(b) == 0 || !bytes.HasPrefix(bytes.TrimLeft(c.prefix(b), "\x00\t\r\n "), []byte("%PDF-")) {
		return document.ErrCorruptedPdf
	}
	return document.ErrIncompatiblePdf
}

func atoi(b []byte) int {
	n := 0
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
