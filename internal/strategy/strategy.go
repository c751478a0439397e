// Package strategy holds the recovery strategies and the chain that tries
// them in pathology-specific order until one produces visible pages.
package strategy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/pdfops"
)

// Name is the stable identifier of a strategy, reported as the method name.
type Name string

const (
	DirectLoad                 Name = "DirectLoad"
	RelaxedLoad                Name = "RelaxedLoad"
	StructuralRepair           Name = "StructuralRepair"
	ExternalPrintRender        Name = "ExternalPrintRender"
	ExternalStructureNormalize Name = "ExternalStructureNormalize"
	ExternalRasterDistill      Name = "ExternalRasterDistill"
	PageByPageExtraction       Name = "PageByPageExtraction"
	FullReconstruction         Name = "FullReconstruction"
)

// AllNames lists every strategy in declaration order.
func AllNames() []Name {
	return []Name{
		DirectLoad, RelaxedLoad, StructuralRepair, ExternalPrintRender,
		ExternalStructureNormalize, ExternalRasterDistill, PageByPageExtraction, FullReconstruction,
	}
}

// Input is what every strategy receives.
type Input struct {
	Doc      document.InputDocument
	Expected int // best page count estimate, 0 when unknown
}

// Strategy is one way of getting pages out of a document. A nil result with
// a nil error is a well-formed non-success; an error means the strategy
// itself could not run.
type Strategy interface {
	Name() Name
	Attempt(ctx context.Context, in *Input) (*document.StrategyResult, error)
}

// ToolBacked is implemented by strategies that delegate to an external
// collaborator, so the chain can consult the breaker for that tool.
type ToolBacked interface {
	Tool() string
}

// Plausibility rejects external tool results that collapse a multi-page
// document into one page.
type Plausibility struct {
	BytesPerPage    int64
	MinSuspectPages int
}

// DefaultPlausibility is the uncalibrated starting point.
var DefaultPlausibility = Plausibility{BytesPerPage: 150000, MinSuspectPages: 3}

// Implausible reports whether a result of pages recovered from a document of
// size bytes with an expected page count should be rejected.
func (p Plausibility) Implausible(pages, expected, size int) bool {
	if pages != 1 {
		return false
	}
	if expected > 1 {
		return true
	}
	if p.BytesPerPage > 0 && p.MinSuspectPages > 0 {
		return int64(size)/p.BytesPerPage >= int64(p.MinSuspectPages)
	}
	return false
}

// accept re-parses out and turns it into a successful result if it has at
// least one page and at least one page paints something.
func accept(name Name, out []byte, placeholders []int) (*document.StrategyResult, error) {
	doc, err := pdfops.LoadRelaxed(out)
	if err != nil {
		log.Debug().Err(err).Str("strategy", string(name)).Msg("output does not re-parse")
		return nil, nil
	}
	if doc.Pages() < 1 {
		return nil, nil
	}
	if !pdfops.AnyVisibleContent(doc) {
		log.Debug().Str("strategy", string(name)).Int("pages", doc.Pages()).Msg("output has no visible content")
		return nil, nil
	}
	return &document.StrategyResult{
		Success:          true,
		PageCount:        doc.Pages(),
		Output:           doc.Bytes,
		Method:           string(name),
		UsedPlaceholders: len(placeholders) > 0,
		PlaceholderPages: len(placeholders),
		Placeholders:     placeholders,
	}, nil
}

// pdf library entry points the local strategies go through; tests replace
// them to simulate damage the fixtures cannot reproduce reliably
var (
	loadRelaxed = pdfops.LoadRelaxed
	extractPage = pdfops.ExtractPage
	rasterPages = pdfops.RasterPages
)

// copyPages extracts pages 1..n of src one at a time. Failed pages are
// reported by number instead of aborting.
func copyPages(ctx context.Context, src []byte, n int) (parts map[int][]byte, failed []int, err error) {
	parts = make(map[int][]byte, n)
	for p := 1; p <= n; p++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		b, err := extractPage(src, p)
		if err != nil {
			failed = append(failed, p)
			continue
		}
		parts[p] = b
	}
	return parts, failed, nil
}

func mergeInOrder(parts [][]byte) ([]byte, error) {
	out, err := pdfops.MergeParts(parts)
	if err != nil {
		return nil, fmt.Errorf("merge recovered pages: %w", err)
	}
	return out, nil
}
