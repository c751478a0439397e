package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesUpToMax(t *testing.T) {
	base, max := 30*time.Second, 5*time.Minute
	assert.Equal(t, 30*time.Second, backoff(base, max, 1))
	assert.Equal(t, 60*time.Second, backoff(base, max, 2))
	assert.Equal(t, 240*time.Second, backoff(base, max, 4))
	assert.Equal(t, max, backoff(base, max, 5))
	assert.Equal(t, max, backoff(base, max, 50))
}

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute, 10*time.Minute)
	m.now = func() time.Time { return now }

	assert.False(t, m.IsOpen(ctx, "qpdf"))

	m.Open(ctx, "qpdf")
	assert.True(t, m.IsOpen(ctx, "qpdf"))
	assert.False(t, m.IsOpen(ctx, "gs"), "breakers are per tool")

	now = now.Add(61 * time.Second)
	assert.False(t, m.IsOpen(ctx, "qpdf"), "probe allowed after cooldown")

	// probe failed again: cooldown doubles
	m.Open(ctx, "qpdf")
	now = now.Add(90 * time.Second)
	assert.True(t, m.IsOpen(ctx, "qpdf"))
	now = now.Add(31 * time.Second)
	assert.False(t, m.IsOpen(ctx, "qpdf"))

	m.Close(ctx, "qpdf")
	m.Open(ctx, "qpdf")
	now = now.Add(61 * time.Second)
	assert.False(t, m.IsOpen(ctx, "qpdf"), "close resets the failure count")
}

func TestNop(t *testing.T) {
	var b Breaker = Nop{}
	b.Open(context.Background(), "x")
	assert.False(t, b.IsOpen(context.Background(), "x"))
}
