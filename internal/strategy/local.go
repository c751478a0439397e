package strategy

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/pdfops"
)

// MaxSynthesizedPages caps placeholder generation driven by page estimates,
// which come from untrusted bytes.
const MaxSynthesizedPages = 2000

// rasterDPI is the resolution pages are drawn at when only MuPDF can read
// them.
const rasterDPI = 150

func capPages(n int) int {
	if n > MaxSynthesizedPages {
		return MaxSynthesizedPages
	}
	return n
}

// directLoad parses with strict conformance and rewrites the document.
type directLoad struct{}

func (directLoad) Name() Name { return DirectLoad }

func (directLoad) Attempt(_ context.Context, in *Input) (*document.StrategyResult, error) {
	doc, err := pdfops.LoadStrict(in.Doc.Bytes)
	if err != nil {
		log.Debug().Err(err).Str("doc", in.Doc.DisplayName).Msg("strict load failed")
		return nil, nil
	}
	out, err := pdfops.Write(doc)
	if err != nil {
		log.Debug().Err(err).Str("doc", in.Doc.DisplayName).Msg("strict rewrite failed")
		return nil, nil
	}
	return accept(DirectLoad, out, nil)
}

// relaxedLoad tolerates invalid objects and copies pages one by one,
// dropping any page that cannot be copied.
type relaxedLoad struct{}

func (relaxedLoad) Name() Name { return RelaxedLoad }

func (relaxedLoad) Attempt(ctx context.Context, in *Input) (*document.StrategyResult, error) {
	doc, err := loadRelaxed(in.Doc.Bytes)
	if err != nil {
		log.Debug().Err(err).Str("doc", in.Doc.DisplayName).Msg("relaxed load failed")
		return nil, nil
	}
	parts, failed, err := copyPages(ctx, doc.Bytes, doc.Pages())
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	if len(failed) > 0 {
		log.Info().Str("doc", in.Doc.DisplayName).Ints("skipped_pages", failed).Msg("relaxed load skipped pages")
	}
	ordered := make([][]byte, 0, len(parts))
	for p := 1; p <= doc.Pages(); p++ {
		if b, ok := parts[p]; ok {
			ordered = append(ordered, b)
		}
	}
	out, err := mergeInOrder(ordered)
	if err != nil {
		log.Debug().Err(err).Str("doc", in.Doc.DisplayName).Msg("relaxed merge failed")
		return nil, nil
	}
	return accept(RelaxedLoad, out, nil)
}

// pageByPage copies each page, has MuPDF draw the pages pdfcpu cannot copy,
// and substitutes a protected-content placeholder, at the page's own size,
// for every page neither can deliver.
type pageByPage struct{}

func (pageByPage) Name() Name { return PageByPageExtraction }

func (pageByPage) Attempt(ctx context.Context, in *Input) (*document.StrategyResult, error) {
	name := in.Doc.DisplayName
	src := in.Doc.Bytes
	n := 0
	parts := map[int][]byte{}
	doc, err := loadRelaxed(src)
	if err == nil {
		src, n = doc.Bytes, doc.Pages()
		if parts, _, err = copyPages(ctx, src, n); err != nil {
			return nil, err
		}
	} else {
		log.Debug().Err(err).Str("doc", name).Msg("page tree rejected, drawing pages with mupdf")
		n = pdfops.TolerantPageCount(src)
	}
	n = capPages(n)
	if n == 0 {
		return nil, nil
	}

	var missing []int
	for p := 1; p <= n; p++ {
		if _, ok := parts[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		drawn, err := rasterPages(ctx, src, missing, rasterDPI)
		if err != nil {
			return nil, err
		}
		for p, b := range drawn {
			parts[p] = b
		}
		if len(drawn) > 0 {
			log.Info().Str("doc", name).Int("pages", len(drawn)).Msg("page-by-page extraction drew pages with mupdf")
		}
	}

	dims := pdfops.PageDims(src, n)
	ordered := make([][]byte, 0, n)
	var placeholders []int
	for p := 1; p <= n; p++ {
		if b, ok := parts[p]; ok {
			ordered = append(ordered, b)
			continue
		}
		placeholders = append(placeholders, p)
		b, err := pdfops.Compose([]pdfops.PageSpec{protectedPage(name, p, n, dims[p-1])})
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, b)
	}
	if len(placeholders) > 0 {
		log.Info().Str("doc", name).Int("pages", n).Int("placeholders", len(placeholders)).Msg("page-by-page extraction used placeholders")
	}
	out, err := mergeInOrder(ordered)
	if err != nil {
		log.Debug().Err(err).Str("doc", name).Msg("page-by-page merge failed")
		return nil, nil
	}
	return accept(PageByPageExtraction, out, placeholders)
}

// structuralRepair trusts the byte-scan page count over the parser: every
// expected page the parser cannot deliver becomes a missing-object
// placeholder.
type structuralRepair struct{}

func (structuralRepair) Name() Name { return StructuralRepair }

func (structuralRepair) Attempt(ctx context.Context, in *Input) (*document.StrategyResult, error) {
	name := in.Doc.DisplayName
	src := in.Doc.Bytes
	recovered := 0
	var parts map[int][]byte
	if doc, err := loadRelaxed(src); err == nil {
		src, recovered = doc.Bytes, doc.Pages()
		if parts, _, err = copyPages(ctx, src, recovered); err != nil {
			return nil, err
		}
	}
	total := capPages(max(in.Expected, recovered))
	if total == 0 {
		return nil, nil
	}

	dims := pdfops.PageDims(src, total)
	ordered := make([][]byte, 0, total)
	var placeholders []int
	for p := 1; p <= total; p++ {
		if b, ok := parts[p]; ok {
			ordered = append(ordered, b)
			continue
		}
		placeholders = append(placeholders, p)
		b, err := pdfops.Compose([]pdfops.PageSpec{missingObjectPage(name, p, total, dims[p-1])})
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, b)
	}
	log.Info().Str("doc", name).Int("expected", in.Expected).Int("recovered", recovered).Int("placeholders", len(placeholders)).Msg("structural repair")
	out, err := mergeInOrder(ordered)
	if err != nil {
		log.Debug().Err(err).Str("doc", name).Msg("structural repair merge failed")
		return nil, nil
	}
	return accept(StructuralRepair, out, placeholders)
}

// fullReconstruction recovers nothing; it emits one notice page per
// expected page and always succeeds.
type fullReconstruction struct{}

func (fullReconstruction) Name() Name { return FullReconstruction }

func (fullReconstruction) Attempt(_ context.Context, in *Input) (*document.StrategyResult, error) {
	n := capPages(in.Expected)
	if n < 1 {
		n = 1
	}
	specs := make([]pdfops.PageSpec, n)
	for i := range specs {
		specs[i] = reconstructionPage(in.Doc.DisplayName, i+1, n)
	}
	out, err := pdfops.Compose(specs)
	if err != nil {
		return nil, err
	}
	return &document.StrategyResult{
		Success:          true,
		PageCount:        n,
		Output:           out,
		Method:           string(FullReconstruction),
		UsedPlaceholders: true,
		PlaceholderPages: n,
		Placeholders:     pageRange(1, n),
	}, nil
}
