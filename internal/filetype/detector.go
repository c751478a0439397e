package filetype

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// HeaderWindow is how far into a file a %PDF- header may start. Readers
// tolerate leading junk up to about a kilobyte.
const HeaderWindow = 1024

var pdfHeader = []byte("%PDF-")

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType     string
	Extension    string
	HeaderOffset int  // -1 when no header was found
	Damaged      bool // accepted on name alone; the recovery engine decides
	Supported    bool
	Description  string
}

// Detector handles upload validation using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect inspects data and decides whether it may enter the recovery engine.
// Anything sniffed as PDF, anything with a header near the start, and any
// unidentified binary named *.pdf is accepted. Other recognised formats
// are refused.
func (d *Detector) Detect(data []byte, name string) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{
		MIMEType:     mtype.String(),
		Extension:    mtype.Extension(),
		HeaderOffset: headerOffset(data),
	}
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case mtype.Is("application/pdf"):
		info.Supported = true
		info.Description = "PDF document"
	case info.HeaderOffset >= 0:
		info.Supported = true
		info.Description = "PDF document with leading bytes"
	case ext == ".pdf" && (mtype.Is("application/octet-stream") || mtype.Is("text/plain")):
		info.Supported = true
		info.Damaged = true
		info.Description = "Damaged PDF document"
	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}

	log.Debug().Str("mime", info.MIMEType).Str("file", name).Bool("supported", info.Supported).Bool("damaged", info.Damaged).Msg("detected file type")
	return info
}

func headerOffset(data []byte) int {
	window := data
	if len(window) > HeaderWindow+len(pdfHeader) {
		window = window[:HeaderWindow+len(pdfHeader)]
	}
	return bytes.Index(window, pdfHeader)
}
