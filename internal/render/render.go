// Package render is the visual re-render collaborator: it draws every page
// of a document and authors a brand new PDF from what was drawn, so nothing
// of the original object graph or its encryption survives.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/limiter"
	"github.com/local/pdfconsolidator/internal/pdfops"
)

// Tool names the renderer in tool-unavailable errors and breaker keys.
const Tool = "renderer"

// ErrClosed is wrapped in a document.ToolUnavailableError by Render after
// Close.
var ErrClosed = errors.New("renderer closed")

// Result is the collaborator's answer for one document.
type Result struct {
	Success   bool
	Output    []byte
	PageCount int
}

// Renderer re-renders a document into a freshly authored PDF. It must not
// modify pdf and must be safe for repeated and concurrent calls.
type Renderer interface {
	Render(ctx context.Context, pdf []byte, name string, timeout time.Duration) (Result, error)
	Close() error
}

// FitzRenderer rasterizes pages with MuPDF and rebuilds the document from
// the page images.
type FitzRenderer struct {
	DPI      float64
	Quality  int
	MaxPages int
	Slots    *limiter.Slots

	closed atomic.Bool
}

func NewFitzRenderer(dpi float64, slots *limiter.Slots) *FitzRenderer {
	if dpi <= 0 {
		dpi = 110
	}
	return &FitzRenderer{DPI: dpi, Quality: 85, MaxPages: 1000, Slots: slots}
}

type rendered struct {
	res Result
	err error
}

// Render runs under timeout. The page limit is checked before a slot is
// taken, and cancellation or timeout is observed between pages, so the slot
// is held for at most one more page once Render has returned.
func (r *FitzRenderer) Render(ctx context.Context, pdf []byte, name string, timeout time.Duration) (Result, error) {
	if r.closed.Load() {
		return Result{}, &document.ToolUnavailableError{Tool: Tool, Err: ErrClosed}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	input := append([]byte(nil), pdf...)
	doc, err := fitz.NewFromMemory(input)
	if err != nil {
		// unreadable or password protected: a clean non-success
		log.Debug().Err(err).Str("doc", name).Msg("render could not open document")
		return Result{}, nil
	}
	n := doc.NumPage()
	if n <= 0 {
		doc.Close()
		return Result{}, nil
	}
	if r.MaxPages > 0 && n > r.MaxPages {
		doc.Close()
		return Result{}, fmt.Errorf("document has %d pages, render limit is %d", n, r.MaxPages)
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	release := func() {}
	if r.Slots != nil {
		release, err = r.Slots.Acquire(rctx)
		if err != nil {
			doc.Close()
			return Result{}, r.interrupted(ctx, name, timeout, err)
		}
	}

	done := make(chan rendered, 1)
	go func() {
		defer release()
		defer doc.Close()
		res, err := r.render(rctx, doc, n, name)
		done <- rendered{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && rctx.Err() != nil {
			return Result{}, r.interrupted(ctx, name, timeout, out.err)
		}
		return out.res, out.err
	case <-rctx.Done():
		return Result{}, r.interrupted(ctx, name, timeout, rctx.Err())
	}
}

// interrupted reports a caller cancellation as ctx's error and anything else
// as a render timeout.
func (r *FitzRenderer) interrupted(ctx context.Context, name string, timeout time.Duration, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Warn().Str("doc", name).Dur("timeout", timeout).Msg("render timed out")
	return fmt.Errorf("render timeout after %v: %w", timeout, cause)
}

func (r *FitzRenderer) render(ctx context.Context, doc *fitz.Document, n int, name string) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render panic: %v", p)
		}
	}()
	start := time.Now()

	images := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		img, err := doc.ImageDPI(i, r.DPI)
		if err != nil {
			log.Debug().Err(err).Str("doc", name).Int("page", i+1).Msg("render page failed")
			return Result{}, nil
		}
		b, err := pdfops.EncodeJPEG(img, r.Quality)
		if err != nil {
			return Result{}, err
		}
		images = append(images, b)
	}

	out, err := pdfops.Images(images)
	if err != nil {
		return Result{}, fmt.Errorf("re-author rendered pages: %w", err)
	}
	log.Debug().Str("doc", name).Int("pages", n).Dur("duration", time.Since(start)).Msg("document re-rendered")
	return Result{Success: true, Output: out, PageCount: n}, nil
}

// Close makes further Render calls fail. In-flight renders finish normally.
func (r *FitzRenderer) Close() error {
	r.closed.Store(true)
	return nil
}

// Probe checks that the embedded MuPDF can open and draw a document.
func Probe() error {
	src, err := pdfops.Compose([]pdfops.PageSpec{{Size: pdfops.Letter, Title: "probe"}})
	if err != nil {
		return err
	}
	doc, err := fitz.NewFromMemory(src)
	if err != nil {
		return err
	}
	defer doc.Close()
	_, err = doc.ImageDPI(0, 36)
	return err
}
