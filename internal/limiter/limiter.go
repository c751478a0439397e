package limiter

import (
    "context"
    "sync/atomic"

    "github.com/local/pdfconsolidator/internal/metrics"
)

// Slots is a counting semaphore bounding concurrent external processes
// (tool runs and renders) across all documents of all batches.
type Slots struct {
    ch    chan struct{}
    inUse atomic.Int64
}

func New(max int) *Slots {
    if max <= 0 { max = 2 }
    return &Slots{ch: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func is idempotent.
func (s *Slots) Acquire(ctx context.Context) (func(), error) {
    select {
    case s.ch <- struct{}{}:
    case <-ctx.Done():
        return func() {}, ctx.Err()
    }
    metrics.SetSlotsInUse(s.inUse.Add(1))
    var once atomic.Bool
    return func() {
        if once.CompareAndSwap(false, true) {
            metrics.SetSlotsInUse(s.inUse.Add(-1))
            <-s.ch
        }
    }, nil
}

// TryAcquire reserves a slot without waiting.
func (s *Slots) TryAcquire() (func(), bool) {
    select {
    case s.ch <- struct{}{}:
        metrics.SetSlotsInUse(s.inUse.Add(1))
        var once atomic.Bool
        return func() {
            if once.CompareAndSwap(false, true) {
                metrics.SetSlotsInUse(s.inUse.Add(-1))
                <-s.ch
            }
        }, true
    default:
        return func() {}, false
    }
}

func (s *Slots) Cap() int   { return cap(s.ch) }
func (s *Slots) InUse() int { return int(s.inUse.Load()) }
