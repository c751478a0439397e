// Package assembler merges recovered documents into one paginated bundle.
//
// Assembly is two-pass. The plan pass assigns every output page, separators
// and placeholders included, its merged page number so the total is known
// before anything is stamped. The build pass copies pages, substitutes
// integrity placeholders for pages that cannot be composed, stamps footers
// and writes metadata.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/metrics"
	"github.com/local/pdfconsolidator/internal/pdfops"
)

// Options tunes the bundle layout.
type Options struct {
	MaxNameLength int    // display name limit on separators, default 80
	Title         string // document info title
	Producer      string
	Now           func() time.Time
}

type Assembler struct {
	opts Options
}

func New(opts Options) *Assembler {
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = 80
	}
	if opts.Title == "" {
		opts.Title = "Consolidated service bundle"
	}
	if opts.Producer == "" {
		opts.Producer = "pdfconsolidator"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{opts: opts}
}

// ErrNoDocuments is returned when Assemble is called with nothing to merge.
var ErrNoDocuments = errors.New("no documents to assemble")

// Assemble merges docs in order. If any document was not recovered the
// whole batch fails with a *document.BatchError and no bytes.
func (a *Assembler) Assemble(ctx context.Context, docs []document.ProcessedDocument) (*document.MergedOutput, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	for _, d := range docs {
		if !d.Success {
			kind := d.ErrorKind
			if kind == document.ErrNone {
				kind = document.ErrCorruptedPdf
			}
			msg := d.ErrorMessage
			if msg == "" {
				msg = kind.Remediation(d.DisplayName)
			}
			return nil, &document.BatchError{Kind: kind, Document: d.DisplayName, Ordinal: d.Ordinal, Message: msg}
		}
		if d.PageCount < 1 {
			return nil, fmt.Errorf("document %q reported success with %d pages", d.DisplayName, d.PageCount)
		}
	}

	records := plan(docs)
	total := len(records)

	parts, err := a.build(ctx, docs, records)
	if err != nil {
		return nil, err
	}
	merged, err := a.merge(parts, records, docs)
	if err != nil {
		return nil, err
	}
	merged, err = pdfops.StampFooters(merged, a.footers(docs, records))
	if err != nil {
		return nil, fmt.Errorf("stamp footers: %w", err)
	}
	merged, err = pdfops.SetInfo(merged, pdfops.Info{
		Title:    a.opts.Title,
		Subject:  fmt.Sprintf("%d documents, %d pages", len(docs), total),
		Producer: a.opts.Producer,
		Created:  a.opts.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("set metadata: %w", err)
	}
	// the bundle handed out must re-parse with exactly the planned pages
	if n, err := pdfops.PageCount(merged); err != nil || n != total {
		return nil, fmt.Errorf("merged bundle has %d pages, planned %d: %v", n, total, err)
	}

	summaries := make([]document.ProcessedDocument, len(docs))
	for i, d := range docs {
		d.Output = nil
		summaries[i] = d
	}
	log.Info().Int("documents", len(docs)).Int("pages", total).Int("bytes", len(merged)).Msg("bundle assembled")
	return &document.MergedOutput{
		Bytes:         merged,
		TotalPages:    total,
		DocumentCount: len(docs),
		Pages:         records,
		Documents:     summaries,
	}, nil
}

// plan assigns merged page numbers. Every document after the first is
// preceded by one separator page.
func plan(docs []document.ProcessedDocument) []document.PageRecord {
	var records []document.PageRecord
	next := 1
	for i, d := range docs {
		if i > 0 {
			records = append(records, document.PageRecord{SourceDocument: i, SourcePage: 0, MergedPage: next, Kind: document.PageSeparator})
			next++
		}
		for p := 1; p <= d.PageCount; p++ {
			kind := document.PageContent
			if slices.Contains(d.Placeholders, p) {
				kind = document.PagePlaceholder
			}
			records = append(records, document.PageRecord{SourceDocument: i, SourcePage: p, MergedPage: next, Kind: kind})
			next++
		}
	}
	return records
}

// build produces one single-page part per record.
func (a *Assembler) build(ctx context.Context, docs []document.ProcessedDocument, records []document.PageRecord) ([][]byte, error) {
	parts := make([][]byte, len(records))
	var dims []pdfops.Dim
	current := -1
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := docs[r.SourceDocument]
		if r.Kind == document.PageSeparator {
			sep, err := pdfops.Compose([]pdfops.PageSpec{separatorPage(d, r.SourceDocument+1, a.opts.MaxNameLength)})
			if err != nil {
				return nil, fmt.Errorf("separator before document %d: %w", r.SourceDocument+1, err)
			}
			parts[i] = sep
			continue
		}
		if r.SourceDocument != current {
			current = r.SourceDocument
			dims = pdfops.PageDims(d.Output, d.PageCount)
		}
		b, err := extract(d, r.SourcePage)
		if err != nil {
			ierr := &document.IntegrityError{Document: d.DisplayName, Page: r.SourcePage, Err: err}
			log.Warn().Err(ierr).Int("merged_page", r.MergedPage).Msg("page replaced by integrity placeholder")
			if b, err = pdfops.Compose([]pdfops.PageSpec{integrityPage(d.DisplayName, r.SourcePage, d.PageCount, dims[r.SourcePage-1], a.opts.MaxNameLength)}); err != nil {
				return nil, fmt.Errorf("integrity placeholder for merged page %d: %w", r.MergedPage, err)
			}
			records[i].Kind = document.PageIntegrityPlaceholder
			metrics.AddPlaceholders("merge-integrity", 1)
		}
		parts[i] = b
	}
	return parts, nil
}

func extract(d document.ProcessedDocument, page int) ([]byte, error) {
	var b []byte
	if d.PageCount == 1 {
		b = d.Output
	} else {
		var err error
		if b, err = pdfops.ExtractPage(d.Output, page); err != nil {
			return nil, err
		}
	}
	n, err := pdfops.PageCount(b)
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, fmt.Errorf("extracted page %d yields %d pages", page, n)
	}
	return b, nil
}

// merge concatenates parts. When the bulk merge fails the parts are merged
// one at a time and any part that breaks the merge is replaced.
func (a *Assembler) merge(parts [][]byte, records []document.PageRecord, docs []document.ProcessedDocument) ([]byte, error) {
	out, err := pdfops.MergeParts(parts)
	if err == nil {
		return out, nil
	}
	log.Warn().Err(err).Msg("bulk merge failed, merging incrementally")

	acc := parts[0]
	for i := 1; i < len(parts); i++ {
		next, err := pdfops.MergeParts([][]byte{acc, parts[i]})
		if err == nil {
			acc = next
			continue
		}
		r := records[i]
		d := docs[r.SourceDocument]
		ierr := &document.IntegrityError{Document: d.DisplayName, Page: r.SourcePage, Err: err}
		log.Warn().Err(ierr).Int("merged_page", r.MergedPage).Msg("page replaced by integrity placeholder")
		placeholder, err := pdfops.Compose([]pdfops.PageSpec{integrityPage(d.DisplayName, r.SourcePage, d.PageCount, pdfops.Letter, a.opts.MaxNameLength)})
		if err != nil {
			return nil, fmt.Errorf("integrity placeholder for merged page %d: %w", r.MergedPage, err)
		}
		next, err = pdfops.MergeParts([][]byte{acc, placeholder})
		if err != nil {
			return nil, fmt.Errorf("merge integrity placeholder for merged page %d: %w", r.MergedPage, err)
		}
		records[i].Kind = document.PageIntegrityPlaceholder
		metrics.AddPlaceholders("merge-integrity", 1)
		acc = next
	}
	return acc, nil
}

func (a *Assembler) footers(docs []document.ProcessedDocument, records []document.PageRecord) map[int]string {
	total := len(records)
	labels := make(map[int]string, total)
	for _, r := range records {
		label := fmt.Sprintf("Page %d of %d", r.MergedPage, total)
		if r.Kind != document.PageSeparator {
			d := docs[r.SourceDocument]
			label = fmt.Sprintf("%s   |   %s - Page %d of %d", label, truncate(d.DisplayName, 48), r.SourcePage, d.PageCount)
		}
		labels[r.MergedPage] = label
	}
	return labels
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}
