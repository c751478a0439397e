// Package merge is the entry point of the recovery engine: it runs the
// classifier and strategy chain for every document on a bounded pool and
// hands the ordered outcomes to the assembler.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/local/pdfconsolidator/internal/assembler"
	"github.com/local/pdfconsolidator/internal/classifier"
	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/logger"
	"github.com/local/pdfconsolidator/internal/metrics"
	"github.com/local/pdfconsolidator/internal/strategy"
)

// Dependencies wires the orchestrator.
type Dependencies struct {
	Classifier    *classifier.Classifier
	Chain         *strategy.Chain
	Assembler     *assembler.Assembler
	MaxConcurrent int
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	if deps.MaxConcurrent <= 0 {
		deps.MaxConcurrent = 4
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.New(nil)
	}
	if deps.Assembler == nil {
		deps.Assembler = assembler.New(assembler.Options{})
	}
	return &Orchestrator{deps: deps}
}

// ErrEmptyBatch is returned for a merge call without documents.
var ErrEmptyBatch = errors.New("no documents in batch")

// Merge recovers every document and assembles the bundle. An unrecoverable
// document fails the batch with *document.BatchError; cancellation of ctx
// abandons in-flight work and returns ctx.Err().
func (o *Orchestrator) Merge(ctx context.Context, docs []document.InputDocument) (*document.MergedOutput, error) {
	start := time.Now()
	lg := logger.ForBatch(uuid.NewString(), len(docs))

	processed, err := o.Process(ctx, docs)
	if err != nil {
		metrics.ObserveMerge(false, 0)
		lg.Warn().Err(err).Dur("duration", time.Since(start)).Msg("batch failed during recovery")
		return nil, err
	}
	out, err := o.deps.Assembler.Assemble(ctx, processed)
	if err != nil {
		metrics.ObserveMerge(false, 0)
		lg.Warn().Err(err).Dur("duration", time.Since(start)).Msg("batch failed during assembly")
		return nil, err
	}
	metrics.ObserveMerge(true, out.TotalPages)
	lg.Info().Int("pages", out.TotalPages).Dur("duration", time.Since(start)).Msg("batch merged")
	return out, nil
}

// Process runs classification and the strategy chain for every document.
// Results keep upload order. An unrecoverable document cancels only the
// documents after it, so the batch always fails on the lowest-ordinal
// unrecoverable document regardless of which chain finishes first. That
// document is returned as a *document.BatchError.
func (o *Orchestrator) Process(ctx context.Context, docs []document.InputDocument) ([]document.ProcessedDocument, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyBatch
	}
	ctxs := make([]context.Context, len(docs))
	cancels := make([]context.CancelFunc, len(docs))
	for i := range docs {
		ctxs[i], cancels[i] = context.WithCancel(ctx)
	}
	defer func() {
		for _, c := range cancels {
			c()
		}
	}()

	results := make([]document.ProcessedDocument, len(docs))
	done := make([]bool, len(docs))
	sem := make(chan struct{}, o.deps.MaxConcurrent)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, d := range docs {
		wg.Add(1)
		go func(i int, d document.InputDocument) {
			defer wg.Done()
			dctx := ctxs[i]
			select {
			case sem <- struct{}{}:
			case <-dctx.Done():
				return
			}
			defer func() { <-sem }()

			pathology := o.deps.Classifier.Classify(d.Bytes, d.DisplayName)
			pd, err := o.deps.Chain.Run(dctx, d, pathology)
			if err != nil {
				return
			}
			mu.Lock()
			results[i], done[i] = pd, true
			mu.Unlock()
			if !pd.Success {
				// later documents cannot change the outcome any more
				for _, c := range cancels[i+1:] {
					c()
				}
			}
		}(i, d)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, pd := range results {
		if done[i] && !pd.Success {
			return nil, &document.BatchError{Kind: pd.ErrorKind, Document: pd.DisplayName, Ordinal: pd.Ordinal, Message: pd.ErrorMessage}
		}
		if !done[i] {
			return nil, fmt.Errorf("document %q was not processed", docs[i].DisplayName)
		}
	}
	return results, nil
}
