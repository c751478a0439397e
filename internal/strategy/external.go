package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/converter"
	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/pdfops"
	"github.com/local/pdfconsolidator/internal/render"
)

// RendererTool is the breaker key of the render collaborator.
const RendererTool = render.Tool

// printRender hands the document to the headless render collaborator.
type printRender struct {
	renderer render.Renderer
	timeout  time.Duration
}

func (printRender) Name() Name   { return ExternalPrintRender }
func (printRender) Tool() string { return RendererTool }

func (s printRender) Attempt(ctx context.Context, in *Input) (*document.StrategyResult, error) {
	if s.renderer == nil {
		return nil, &document.ToolUnavailableError{Tool: RendererTool, Err: errors.New("no renderer configured")}
	}
	res, err := s.renderer.Render(ctx, in.Doc.Bytes, in.Doc.DisplayName, s.timeout)
	if err != nil {
		return nil, err
	}
	if !res.Success || len(res.Output) == 0 {
		return nil, nil
	}
	return accept(ExternalPrintRender, res.Output, nil)
}

// toolPass runs a command-line tool and accepts its output only if it
// re-parses with a plausible page count.
type toolPass struct {
	name   Name
	tool   converter.Tool
	runner *converter.Runner
	plaus  Plausibility
}

func (s toolPass) Name() Name { return s.name }

func (s toolPass) Tool() string {
	if s.tool == nil {
		return string(s.name)
	}
	return s.tool.Name()
}

func (s toolPass) Attempt(ctx context.Context, in *Input) (*document.StrategyResult, error) {
	if s.tool == nil || s.runner == nil {
		return nil, &document.ToolUnavailableError{Tool: s.Tool(), Err: errors.New("not configured")}
	}
	out, err := s.runner.Convert(ctx, s.tool, in.Doc.Bytes)
	if err != nil {
		return nil, err
	}
	doc, err := pdfops.LoadRelaxed(out)
	if err != nil {
		log.Debug().Err(err).Str("doc", in.Doc.DisplayName).Str("tool", s.tool.Name()).Msg("tool output does not parse")
		return nil, nil
	}
	if s.plaus.Implausible(doc.Pages(), in.Expected, len(in.Doc.Bytes)) {
		log.Warn().
			Str("doc", in.Doc.DisplayName).
			Str("tool", s.tool.Name()).
			Int("pages", doc.Pages()).
			Int("expected", in.Expected).
			Int("bytes", len(in.Doc.Bytes)).
			Msg("implausible page count from tool, continuing chain")
		return nil, nil
	}
	return accept(s.name, doc.Bytes, nil)
}

// Env carries the collaborators the strategies delegate to.
type Env struct {
	Runner        *converter.Runner
	Normalizer    converter.Tool
	Distiller     converter.Tool
	Renderer      render.Renderer
	RenderTimeout time.Duration
	Plausibility  Plausibility
}

// NewSet builds every strategy over env.
func NewSet(env Env) map[Name]Strategy {
	if env.RenderTimeout <= 0 {
		env.RenderTimeout = 30 * time.Second
	}
	if env.Plausibility == (Plausibility{}) {
		env.Plausibility = DefaultPlausibility
	}
	set := []Strategy{
		directLoad{},
		relaxedLoad{},
		structuralRepair{},
		printRender{renderer: env.Renderer, timeout: env.RenderTimeout},
		toolPass{name: ExternalStructureNormalize, tool: env.Normalizer, runner: env.Runner, plaus: env.Plausibility},
		toolPass{name: ExternalRasterDistill, tool: env.Distiller, runner: env.Runner, plaus: env.Plausibility},
		pageByPage{},
		fullReconstruction{},
	}
	m := make(map[Name]Strategy, len(set))
	for _, s := range set {
		m[s.Name()] = s
	}
	return m
}
