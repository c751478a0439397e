package assembler

import (
	"context"
	"testing"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/pdfops"
)

func synth(pages int, title string) []byte {
	specs := make([]pdfops.PageSpec, pages)
	for i := range specs {
		specs[i] = pdfops.PageSpec{Size: pdfops.Letter, Title: title, Lines: []string{"content"}}
	}
	return pdfops.MustCompose(specs)
}

func recovered(name string, ordinal, pages int, placeholders ...int) document.ProcessedDocument {
	return document.ProcessedDocument{
		DisplayName:      name,
		Ordinal:          ordinal,
		Success:          true,
		Output:           synth(pages, name),
		PageCount:        pages,
		Method:           "DirectLoad",
		UsedPlaceholders: len(placeholders) > 0,
		PlaceholderPages: len(placeholders),
		Placeholders:     placeholders,
	}
}

func fixedClock() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }

func TestAssembleCountsSeparatorsAndPlaceholders(t *testing.T) {
	docs := []document.ProcessedDocument{
		recovered("complaint.pdf", 0, 2),
		recovered("exhibits.pdf", 1, 37),
		recovered("damaged.pdf", 2, 6, 1, 2, 3, 4, 5, 6),
	}
	docs[2].Method = "StructuralRepair"

	out, err := New(Options{Now: fixedClock}).Assemble(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 47, out.TotalPages)
	assert.Equal(t, 3, out.DocumentCount)

	n, err := pdfops.PageCount(out.Bytes)
	require.NoError(t, err)
	assert.Equal(t, 47, n)

	require.Len(t, out.Pages, 47)
	for i, r := range out.Pages {
		assert.Equal(t, i+1, r.MergedPage)
	}
	assert.Equal(t, document.PageSeparator, out.Pages[2].Kind)
	assert.Equal(t, document.PageSeparator, out.Pages[40].Kind)
	assert.Equal(t, document.PagePlaceholder, out.Pages[41].Kind)
	assert.Equal(t, document.PageContent, out.Pages[0].Kind)

	for _, d := range out.Documents {
		assert.Nil(t, d.Output)
	}
}

func TestAssembleSingleDocumentHasNoSeparator(t *testing.T) {
	out, err := New(Options{}).Assemble(context.Background(), []document.ProcessedDocument{recovered("one.pdf", 0, 3)})
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalPages)
	for _, r := range out.Pages {
		assert.NotEqual(t, document.PageSeparator, r.Kind)
	}
}

func TestAssembleAbortsOnUnrecoveredDocument(t *testing.T) {
	docs := []document.ProcessedDocument{
		recovered("fine.pdf", 0, 1),
		{DisplayName: "ruined.pdf", Ordinal: 1, ErrorKind: document.ErrCorruptedPdf, ErrorMessage: "print it again"},
	}
	out, err := New(Options{}).Assemble(context.Background(), docs)
	assert.Nil(t, out)
	be, ok := document.AsBatchError(err)
	require.True(t, ok)
	assert.Equal(t, document.ErrCorruptedPdf, be.Kind)
	assert.Equal(t, "ruined.pdf", be.Document)
	assert.Equal(t, 1, be.Ordinal)
	assert.Equal(t, "print it again", be.Message)
}

func TestAssembleSubstitutesIntegrityPlaceholder(t *testing.T) {
	d := recovered("short.pdf", 0, 1)
	d.PageCount = 2 // claims a page the output does not contain
	out, err := New(Options{}).Assemble(context.Background(), []document.ProcessedDocument{d, recovered("next.pdf", 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, 4, out.TotalPages)
	assert.Equal(t, document.PageIntegrityPlaceholder, out.Pages[1].Kind)

	n, err := pdfops.PageCount(out.Bytes)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestAssembleRejectsEmptyBatch(t *testing.T) {
	_, err := New(Options{}).Assemble(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestAssembleHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Assemble(ctx, []document.ProcessedDocument{recovered("a.pdf", 0, 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFooterLabels(t *testing.T) {
	docs := []document.ProcessedDocument{recovered("a.pdf", 0, 1), recovered("b.pdf", 1, 2)}
	labels := New(Options{}).footers(docs, plan(docs))
	assert.Equal(t, "Page 1 of 4   |   a.pdf - Page 1 of 1", labels[1])
	assert.Equal(t, "Page 2 of 4", labels[2])
	assert.Equal(t, "Page 4 of 4   |   b.pdf - Page 2 of 2", labels[4])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "žžž...", truncate("žžžžžžžž", 6))
}

func TestSeparatorWarnsAboutPlaceholders(t *testing.T) {
	d := recovered("x.pdf", 1, 3, 2)
	assert.NotEmpty(t, separatorPage(d, 2, 80).Banner)
	assert.Empty(t, separatorPage(recovered("y.pdf", 1, 3), 2, 80).Banner)
}

func TestAssembledBundleReparsesWithFooters(t *testing.T) {
	docs := []document.ProcessedDocument{recovered("a.pdf", 0, 1), recovered("b.pdf", 1, 2)}
	out, err := New(Options{Now: fixedClock, Title: "Case 42 bundle"}).Assemble(context.Background(), docs)
	require.NoError(t, err)

	doc, err := pdfops.LoadRelaxed(out.Bytes)
	require.NoError(t, err)
	assert.Equal(t, 4, doc.Pages())
	assert.True(t, pdfops.AnyVisibleContent(doc))

	fz, err := fitz.NewFromMemory(out.Bytes)
	require.NoError(t, err)
	defer fz.Close()
	want := map[int][]string{
		1: {"Page 1 of 4", "a.pdf - Page 1 of 1"},
		2: {"Page 2 of 4"},
		3: {"Page 3 of 4", "b.pdf - Page 1 of 2"},
		4: {"Page 4 of 4", "b.pdf - Page 2 of 2"},
	}
	for page, parts := range want {
		text, err := fz.Text(page - 1)
		require.NoError(t, err)
		for _, p := range parts {
			assert.Contains(t, text, p, "page %d", page)
		}
	}
	assert.Contains(t, fz.Metadata()["title"], "Case 42 bundle")
}
