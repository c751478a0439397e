package limiter

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestSlotsBoundConcurrency(t *testing.T) {
    s := New(2)
    r1, err := s.Acquire(context.Background())
    require.NoError(t, err)
    r2, ok := s.TryAcquire()
    require.True(t, ok)
    assert.Equal(t, 2, s.InUse())

    _, ok = s.TryAcquire()
    assert.False(t, ok)

    r1()
    r1() // second release is a no-op
    assert.Equal(t, 1, s.InUse())

    r3, ok := s.TryAcquire()
    assert.True(t, ok)
    r2()
    r3()
    assert.Equal(t, 0, s.InUse())
}

func TestAcquireHonoursContext(t *testing.T) {
    s := New(1)
    release, err := s.Acquire(context.Background())
    require.NoError(t, err)
    defer release()

    ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
    defer cancel()
    _, err = s.Acquire(ctx)
    assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultCapacity(t *testing.T) {
    assert.Equal(t, 2, New(0).Cap())
}
