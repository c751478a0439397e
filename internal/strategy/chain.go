package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/local/pdfconsolidator/internal/breaker"
	"github.com/local/pdfconsolidator/internal/classifier"
	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/logger"
	"github.com/local/pdfconsolidator/internal/metrics"
)

// Attempt outcomes recorded in the audit trail.
const (
	OutcomeSuccess     = "success"
	OutcomeNoResult    = "no_result"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
	OutcomeSkipped     = "skipped"
)

// Chain runs strategies strictly in sequence and keeps the first success.
type Chain struct {
	Strategies map[Name]Strategy
	Orderings  Orderings
	Classifier *classifier.Classifier
	Breaker    breaker.Breaker
	// Disabled strategies are left out of every ordering.
	Disabled map[Name]bool
}

// NewChain wires a chain with the default orderings.
func NewChain(strategies map[Name]Strategy, cls *classifier.Classifier, br breaker.Breaker) *Chain {
	if br == nil {
		br = breaker.Nop{}
	}
	if cls == nil {
		cls = classifier.New(nil)
	}
	return &Chain{Strategies: strategies, Orderings: DefaultOrderings, Classifier: cls, Breaker: br}
}

// Run produces the ProcessedDocument for doc. The only error it returns is
// caller cancellation; everything else is reported inside the result.
func (c *Chain) Run(ctx context.Context, doc document.InputDocument, pathology document.Pathology) (document.ProcessedDocument, error) {
	lg := logger.ForDocument(doc.DisplayName, doc.Ordinal).With().Str("pathology", pathology.String()).Logger()
	in := &Input{Doc: doc, Expected: c.Classifier.ExpectedPages(doc)}
	pd := document.ProcessedDocument{
		DisplayName: doc.DisplayName,
		Ordinal:     doc.Ordinal,
		Pathology:   pathology,
		Digest:      document.Digest(doc.Bytes),
	}

	attempted, envFailures := 0, 0
	for _, name := range c.Orderings.For(pathology) {
		if err := ctx.Err(); err != nil {
			return pd, err
		}
		if c.Disabled[name] {
			continue
		}
		s, ok := c.Strategies[name]
		if !ok {
			continue
		}
		attempted++

		tool := ""
		if tb, ok := s.(ToolBacked); ok {
			tool = tb.Tool()
			if c.Breaker.IsOpen(ctx, tool) {
				envFailures++
				metrics.BreakerSkipped(tool)
				pd.Attempts = append(pd.Attempts, document.Attempt{Strategy: string(name), Outcome: OutcomeSkipped, Error: "circuit open for " + tool})
				lg.Debug().Str("strategy", string(name)).Str("tool", tool).Msg("strategy skipped, circuit open")
				continue
			}
		}

		start := time.Now()
		res, err := safeAttempt(ctx, s, in)
		dur := time.Since(start)
		if ctx.Err() != nil {
			return pd, ctx.Err()
		}

		att := document.Attempt{Strategy: string(name), Duration: dur}
		switch {
		case err != nil && document.IsToolUnavailable(err):
			envFailures++
			att.Outcome, att.Error = OutcomeUnavailable, err.Error()
			if tool != "" {
				c.Breaker.Open(ctx, tool)
			}
			lg.Warn().Err(err).Str("strategy", string(name)).Msg("external collaborator unavailable, trying next strategy")
		case err != nil:
			att.Outcome, att.Error = OutcomeError, err.Error()
			lg.Warn().Err(err).Str("strategy", string(name)).Dur("duration", dur).Msg("strategy failed")
		case res == nil || !res.Success || res.PageCount < 1:
			att.Outcome = OutcomeNoResult
			lg.Debug().Str("strategy", string(name)).Dur("duration", dur).Msg("strategy produced no result")
		default:
			att.Outcome = OutcomeSuccess
		}
		pd.Attempts = append(pd.Attempts, att)
		metrics.ObserveStrategy(string(name), att.Outcome, dur)

		if att.Outcome != OutcomeSuccess {
			continue
		}
		if tool != "" {
			c.Breaker.Close(ctx, tool)
		}
		pd.Success = true
		pd.Output = res.Output
		pd.PageCount = res.PageCount
		pd.Method = res.Method
		if pd.Method == "" {
			pd.Method = string(name)
		}
		pd.UsedPlaceholders = res.UsedPlaceholders
		pd.PlaceholderPages = res.PlaceholderPages
		pd.Placeholders = res.Placeholders
		metrics.IncDocument(pathology.String(), true)
		metrics.AddPlaceholders(placeholderReason(name), res.PlaceholderPages)
		lg.Info().Str("strategy", pd.Method).Int("pages", pd.PageCount).Int("placeholders", pd.PlaceholderPages).Dur("duration", dur).Msg("document recovered")
		return pd, nil
	}

	kind := c.Classifier.ErrorKindFor(doc.Bytes, doc.DisplayName)
	if attempted > 0 && envFailures == attempted {
		kind = document.ErrExternalToolUnavailable
	}
	pd.ErrorKind = kind
	pd.ErrorMessage = kind.Remediation(doc.DisplayName)
	metrics.IncDocument(pathology.String(), false)
	lg.Error().Str("error_kind", string(kind)).Int("attempted", attempted).Msg("all strategies exhausted")
	return pd, nil
}

func placeholderReason(name Name) string {
	switch name {
	case StructuralRepair:
		return "missing-object"
	case PageByPageExtraction:
		return "content-protected"
	case FullReconstruction:
		return "corruption"
	}
	return string(name)
}

// safeAttempt converts a strategy panic into an error.
func safeAttempt(ctx context.Context, s Strategy, in *Input) (res *document.StrategyResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Attempt(ctx, in)
}
