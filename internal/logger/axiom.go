package logger

import (
    "context"
    "encoding/json"
    "sync"
    "sync/atomic"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
)

const (
    shipBuffer    = 1000
    shipBatchSize = 200
    shipTimeout   = 15 * time.Second
)

// axiomWriter is a zerolog.LevelWriter that hands events at or above min to
// the shipper. It never blocks the caller.
type axiomWriter struct {
    shipper *axiomShipper
    min     zerolog.Level
}

func (w *axiomWriter) Write(p []byte) (int, error) { return w.WriteLevel(zerolog.NoLevel, p) }

func (w *axiomWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
    if l != zerolog.NoLevel && l < w.min {
        return len(p), nil
    }
    var ev map[string]interface{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = map[string]interface{}{"message": string(p), "level": l.String()}
    }
    ev["service"] = Service
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    w.shipper.Send(axiom.Event(ev))
    return len(p), nil
}

// axiomShipper batches events and ingests them every flush interval or
// whenever a batch fills up.
type axiomShipper struct {
    ingest  func(ctx context.Context, events []axiom.Event) error
    ch      chan axiom.Event
    dropped atomic.Int64
    done    chan struct{}
    once    sync.Once
    wg      sync.WaitGroup
}

func newAxiomShipper(token, orgID, dataset string, flushEvery time.Duration) (*axiomShipper, error) {
    if dataset == "" { dataset = "dev_" + Service }
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" { opts = append(opts, axiom.SetOrganizationID(orgID)) }
    c, err := axiom.NewClient(opts...)
    if err != nil { return nil, err }
    send := func(ctx context.Context, events []axiom.Event) error {
        _, err := c.IngestEvents(ctx, dataset, events)
        return err
    }
    return startShipper(send, flushEvery), nil
}

func startShipper(send func(ctx context.Context, events []axiom.Event) error, flushEvery time.Duration) *axiomShipper {
    if flushEvery <= 0 { flushEvery = 10 * time.Second }
    s := &axiomShipper{
        ingest: send,
        ch:     make(chan axiom.Event, shipBuffer),
        done:   make(chan struct{}),
    }
    s.wg.Add(1)
    go s.loop(flushEvery)
    return s
}

// Send queues ev, dropping it when the buffer is full.
func (s *axiomShipper) Send(ev axiom.Event) {
    select {
    case s.ch <- ev:
    default:
        s.dropped.Add(1)
    }
}

func (s *axiomShipper) loop(flushEvery time.Duration) {
    defer s.wg.Done()
    ticker := time.NewTicker(flushEvery)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, shipBatchSize)
    flush := func() {
        if len(batch) == 0 { return }
        ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
        _ = s.ingest(ctx, batch)
        cancel()
        batch = make([]axiom.Event, 0, shipBatchSize)
    }
    for {
        select {
        case <-s.done:
            for {
                select {
                case ev := <-s.ch:
                    batch = append(batch, ev)
                default:
                    flush()
                    return
                }
            }
        case <-ticker.C:
            flush()
        case ev := <-s.ch:
            batch = append(batch, ev)
            if len(batch) >= shipBatchSize { flush() }
        }
    }
}

// Close drains queued events, ingests them and stops the loop.
func (s *axiomShipper) Close() {
    s.once.Do(func() { close(s.done) })
    s.wg.Wait()
}
