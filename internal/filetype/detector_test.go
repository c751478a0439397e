package filetype

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/local/pdfconsolidator/internal/pdfops"
)

func TestDetect(t *testing.T) {
	d := New()
	valid := pdfops.MustCompose([]pdfops.PageSpec{{Title: "One"}})

	info := d.Detect(valid, "a.pdf")
	assert.True(t, info.Supported)
	assert.Equal(t, "application/pdf", info.MIMEType)
	assert.Equal(t, 0, info.HeaderOffset)

	junk := append(bytes.Repeat([]byte{0x00, 0x01}, 100), valid...)
	info = d.Detect(junk, "junk.bin")
	assert.True(t, info.Supported)
	assert.Equal(t, 200, info.HeaderOffset)

	info = d.Detect([]byte{0x00, 0x9f, 0x42, 0x13, 0x37, 0x00}, "scan.PDF")
	assert.True(t, info.Supported)
	assert.True(t, info.Damaged)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	info = d.Detect(png, "photo.pdf")
	assert.False(t, info.Supported)
	assert.Contains(t, info.Description, "image/png")

	info = d.Detect([]byte("hello world"), "notes.txt")
	assert.False(t, info.Supported)
	assert.Equal(t, -1, info.HeaderOffset)
}
