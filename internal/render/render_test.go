package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/limiter"
	"github.com/local/pdfconsolidator/internal/pdfops"
)

func TestFitzRendererReauthorsDocument(t *testing.T) {
	src, err := pdfops.Compose([]pdfops.PageSpec{
		{Size: pdfops.Letter, Title: "One"},
		{Size: pdfops.Letter, Title: "Two"},
	})
	require.NoError(t, err)
	r := NewFitzRenderer(36, limiter.New(1))
	defer r.Close()

	res, err := r.Render(context.Background(), src, "two.pdf", 10*time.Second)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.PageCount)

	doc, err := pdfops.LoadRelaxed(res.Output)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Pages())
	assert.True(t, pdfops.AnyVisibleContent(doc))
	assert.Equal(t, 0, r.Slots.InUse())
}

func TestFitzRendererGarbageIsCleanFailure(t *testing.T) {
	r := NewFitzRenderer(36, nil)
	res, err := r.Render(context.Background(), []byte("not a pdf at all"), "junk.pdf", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestFitzRendererClosed(t *testing.T) {
	r := NewFitzRenderer(36, nil)
	require.NoError(t, r.Close())
	_, err := r.Render(context.Background(), nil, "x.pdf", time.Second)
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, document.IsToolUnavailable(err))
	var tu *document.ToolUnavailableError
	require.ErrorAs(t, err, &tu)
	assert.Equal(t, Tool, tu.Tool)
}

func manyPages(t *testing.T, n int) []byte {
	t.Helper()
	specs := make([]pdfops.PageSpec, n)
	for i := range specs {
		specs[i] = pdfops.PageSpec{Size: pdfops.Letter, Title: "Exhibit", Lines: []string{"body text on every page"}}
	}
	src, err := pdfops.Compose(specs)
	require.NoError(t, err)
	return src
}

// slotFreed reports whether a slot can be taken now, giving it straight back.
func slotFreed(slots *limiter.Slots) func() bool {
	return func() bool {
		release, ok := slots.TryAcquire()
		release()
		return ok
	}
}

func TestFitzRendererTimeoutReleasesSlot(t *testing.T) {
	slots := limiter.New(1)
	r := NewFitzRenderer(300, slots)
	src := manyPages(t, 60)

	start := time.Now()
	_, err := r.Render(context.Background(), src, "long.pdf", 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render timeout")
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Eventually(t, slotFreed(slots), 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, slots.InUse())
}

func TestFitzRendererCancelReleasesSlot(t *testing.T) {
	slots := limiter.New(1)
	r := NewFitzRenderer(300, slots)
	src := manyPages(t, 60)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := r.Render(ctx, src, "long.pdf", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Eventually(t, slotFreed(slots), 5*time.Second, 10*time.Millisecond)
}

func TestFitzRendererPageLimitTakesNoSlot(t *testing.T) {
	slots := limiter.New(1)
	hold, ok := slots.TryAcquire()
	require.True(t, ok)
	defer hold()

	r := NewFitzRenderer(36, slots)
	r.MaxPages = 2
	_, err := r.Render(context.Background(), manyPages(t, 3), "three.pdf", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render limit is 2")
}

func TestProbe(t *testing.T) {
	assert.NoError(t, Probe())
}
