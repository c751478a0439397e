package merge

import (
	"fmt"

	"github.com/local/pdfconsolidator/internal/assembler"
	"github.com/local/pdfconsolidator/internal/breaker"
	"github.com/local/pdfconsolidator/internal/classifier"
	"github.com/local/pdfconsolidator/internal/config"
	"github.com/local/pdfconsolidator/internal/converter"
	"github.com/local/pdfconsolidator/internal/limiter"
	"github.com/local/pdfconsolidator/internal/render"
	"github.com/local/pdfconsolidator/internal/strategy"
)

// Engine is a fully wired orchestrator plus the collaborators that need
// shutting down or probing.
type Engine struct {
	*Orchestrator
	QPDF        *converter.QPDF
	Ghostscript *converter.Ghostscript
	Renderer    *render.FitzRenderer
}

// Close releases the renderer.
func (e *Engine) Close() error { return e.Renderer.Close() }

// Build wires the classifier, strategy chain and assembler from cfg. A nil
// breaker disables cooldowns.
func Build(cfg config.Config, br breaker.Breaker) (*Engine, error) {
	overrides, err := classifier.ParseOverrides(cfg.Recovery.PageCountOverrides)
	if err != nil {
		return nil, fmt.Errorf("PAGE_COUNT_OVERRIDES: %w", err)
	}
	extra, err := classifier.ParsePatterns(cfg.Recovery.SuspectNamePatterns)
	if err != nil {
		return nil, fmt.Errorf("SUSPECT_NAME_PATTERNS: %w", err)
	}
	cls := classifier.New(overrides)
	cls.SuspectNamePatterns = append(append(cls.SuspectNamePatterns[:0:0], classifier.DefaultSuspectNamePatterns...), extra...)

	slots := limiter.New(cfg.Recovery.MaxExternalProcesses)
	qpdf := converter.NewQPDF(cfg.Tools.QPDFPath)
	gs := converter.NewGhostscript(cfg.Tools.GhostscriptPath)
	renderer := render.NewFitzRenderer(cfg.Tools.RenderDPI, slots)

	env := strategy.Env{
		Runner:        &converter.Runner{Slots: slots, WorkDir: cfg.Recovery.WorkDir, Timeout: cfg.Tools.ToolTimeout},
		Normalizer:    qpdf,
		Distiller:     gs,
		Renderer:      renderer,
		RenderTimeout: cfg.Tools.RenderTimeout,
		Plausibility: strategy.Plausibility{
			BytesPerPage:    cfg.Recovery.BytesPerPage,
			MinSuspectPages: cfg.Recovery.MinSuspectPages,
		},
	}
	chain := strategy.NewChain(strategy.NewSet(env), cls, br)
	asm := assembler.New(assembler.Options{
		MaxNameLength: cfg.Recovery.SeparatorNameLimit,
		Title:         cfg.Recovery.BundleTitle,
	})
	orch := New(Dependencies{
		Classifier:    cls,
		Chain:         chain,
		Assembler:     asm,
		MaxConcurrent: cfg.Recovery.MaxConcurrentDocuments,
	})
	return &Engine{Orchestrator: orch, QPDF: qpdf, Ghostscript: gs, Renderer: renderer}, nil
}
