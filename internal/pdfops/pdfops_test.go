package pdfops

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textPages(n int) []PageSpec {
	pages := make([]PageSpec, n)
	for i := range pages {
		pages[i] = PageSpec{Size: Letter, Title: "Exhibit", Lines: []string{"page body"}}
	}
	return pages
}

func compose(t *testing.T, pages []PageSpec) []byte {
	t.Helper()
	b, err := Compose(pages)
	require.NoError(t, err)
	return b
}

func TestComposeKeepsEachPageSize(t *testing.T) {
	pages := []PageSpec{
		{Size: Letter, Title: "Letter"},
		{Size: Dim{Width: 842, Height: 595}, Title: "Landscape", Banner: "CONTENT PROTECTED"},
		{Title: "Defaulted"},
	}
	b := compose(t, pages)
	assert.Equal(t, "%PDF-", string(b[:5]))

	dims := PageDims(b, 3)
	assert.InDelta(t, 612, dims[0].Width, 0.01)
	assert.InDelta(t, 842, dims[1].Width, 0.01)
	assert.InDelta(t, 595, dims[1].Height, 0.01)
	assert.InDelta(t, Letter.Width, dims[2].Width, 0.01)
	assert.InDelta(t, Letter.Height, dims[2].Height, 0.01)
}

func TestComposeEmptyIsOneBlankLetterPage(t *testing.T) {
	doc, err := LoadRelaxed(compose(t, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages())
	assert.False(t, AnyVisibleContent(doc))
}

func TestComposeWritesTextThroughCoreFonts(t *testing.T) {
	b := compose(t, []PageSpec{{Title: "Exhibit (A)", Lines: []string{`literal \n stays on one line`}}})
	_, err := LoadStrict(b)
	require.NoError(t, err)

	text := pageText(t, b, 1)
	assert.Contains(t, text, "Exhibit (A)")
	assert.Contains(t, text, "stays on one line")
}

// pageText returns the text MuPDF extracts from page pageNr.
func pageText(t *testing.T, b []byte, pageNr int) string {
	t.Helper()
	doc, err := fitz.NewFromMemory(b)
	require.NoError(t, err)
	defer doc.Close()
	text, err := doc.Text(pageNr - 1)
	require.NoError(t, err)
	return text
}

func TestComposeLoadsStrict(t *testing.T) {
	doc, err := LoadStrict(compose(t, textPages(3)))
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Pages())
	assert.True(t, HasVisibleContent(doc, 1))
	assert.True(t, AnyVisibleContent(doc))
}

func TestBlankPageHasNoVisibleContent(t *testing.T) {
	doc, err := LoadRelaxed(compose(t, []PageSpec{{Size: Letter}}))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages())
	assert.False(t, AnyVisibleContent(doc))
}

func TestExtractAndMerge(t *testing.T) {
	src := compose(t, textPages(4))

	one, err := ExtractPage(src, 3)
	require.NoError(t, err)
	n, err := PageCount(one)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	merged, err := MergeParts([][]byte{one, compose(t, textPages(2))})
	require.NoError(t, err)
	n, err = PageCount(merged)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTolerantPageCountOnGarbage(t *testing.T) {
	assert.Equal(t, 0, TolerantPageCount(nil))
	assert.Equal(t, 0, TolerantPageCount([]byte("definitely not a pdf")))
	assert.Equal(t, 2, TolerantPageCount(compose(t, textPages(2))))
}

func TestPageDimsFallsBackToLetter(t *testing.T) {
	small := Dim{Width: 300, Height: 400}
	dims := PageDims(compose(t, []PageSpec{{Size: small, Title: "x"}}), 2)
	require.Len(t, dims, 2)
	assert.InDelta(t, 300, dims[0].Width, 0.01)
	assert.InDelta(t, 400, dims[0].Height, 0.01)
	assert.Equal(t, Letter, dims[1])

	assert.Equal(t, []Dim{Letter}, PageDims([]byte("junk"), 1))
}

func TestStampAndInfo(t *testing.T) {
	src := compose(t, textPages(2))
	stamped, err := StampFooters(src, map[int]string{1: "Page 1 of 2", 2: "Page 2 of 2"})
	require.NoError(t, err)

	out, err := SetInfo(stamped, Info{Title: "Bundle", Producer: "pdfconsolidator", Created: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	n, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	doc, err := LoadRelaxed(out)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Pages())
	assert.Contains(t, pageText(t, out, 2), "Page 2 of 2")

	md, err := fitz.NewFromMemory(out)
	require.NoError(t, err)
	defer md.Close()
	assert.Contains(t, md.Metadata()["title"], "Bundle")
}

func TestSetInfoAfterStampingMergedParts(t *testing.T) {
	merged, err := MergeParts([][]byte{compose(t, textPages(1)), compose(t, textPages(2))})
	require.NoError(t, err)
	stamped, err := StampFooters(merged, map[int]string{1: "one", 2: "two", 3: "three"})
	require.NoError(t, err)

	out, err := SetInfo(stamped, Info{Title: "Bundle"})
	require.NoError(t, err)
	n, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, pageText(t, out, 3), "three")
}

func TestASCII(t *testing.T) {
	assert.Equal(t, "tab here", ASCII("tab\there"))
	assert.Equal(t, "caf? - ok", ASCII("café — ok"))
}

func TestWrap(t *testing.T) {
	const width = 60.0
	lines := wrap("one two three four five six seven eight nine ten", regularFont, 10, width)
	require.True(t, len(lines) > 1)
	for _, l := range lines {
		assert.LessOrEqual(t, font.TextWidth(l, regularFont, 10), width, l)
	}
	assert.Equal(t, "one two three four five six seven eight nine ten", strings.Join(lines, " "))
	assert.Empty(t, wrap("   ", regularFont, 10, 100))

	long := wrap("Supercalifragilisticexpialidocious", boldFont, 18, 72)
	require.True(t, len(long) > 1)
	assert.Equal(t, "Supercalifragilisticexpialidocious", strings.Join(long, ""))
}

func TestRasterPagesKeepsPageSize(t *testing.T) {
	src := compose(t, []PageSpec{
		{Size: Dim{Width: 300, Height: 400}, Title: "Small"},
		{Size: Letter, Title: "Letter"},
	})
	parts, err := RasterPages(context.Background(), src, []int{1, 2, 5}, 36)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	dims := PageDims(parts[1], 1)
	assert.InDelta(t, 300, dims[0].Width, 1)
	assert.InDelta(t, 400, dims[0].Height, 1)
	doc, err := LoadRelaxed(parts[2])
	require.NoError(t, err)
	assert.True(t, AnyVisibleContent(doc))
}

func TestRasterPagesUnreadableAndCancelled(t *testing.T) {
	parts, err := RasterPages(context.Background(), []byte("not a pdf"), []int{1, 2, 3}, 36)
	require.NoError(t, err)
	assert.Empty(t, parts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RasterPages(ctx, compose(t, textPages(2)), []int{1, 2}, 36)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComposeWritesPlainPageTree(t *testing.T) {
	b := compose(t, textPages(3))
	assert.Regexp(t, `/Type\s*/Pages`, string(b))
	assert.Regexp(t, `/Count\s+3`, string(b))
}
