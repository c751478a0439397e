// Package pdfops wraps the PDF libraries used by the recovery engine behind a
// small byte-oriented API. Every entry point recovers from library panics so a
// hostile input can fail a single operation but never the process.
package pdfops

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEncrypted is returned by strict loading when the document carries an
	// encryption dictionary.
	ErrEncrypted = errors.New("document is encrypted")
	// ErrNoPages is returned when a document parses but exposes no pages.
	ErrNoPages = errors.New("document has no pages")
)

func init() {
	// pdfcpu otherwise writes a config dir under the user's home on first use.
	api.DisableConfigDir()
}

func config(mode int) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = mode
	return conf
}

func relaxed() *model.Configuration { return config(model.ValidationRelaxed) }

// guard runs fn and converts a panic into an error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("op", op).Interface("panic", r).Msg("pdf library panic recovered")
			err = fmt.Errorf("%s: panic: %v", op, r)
		}
	}()
	return fn()
}

// Document is a parsed PDF together with the bytes it was parsed from.
type Document struct {
	Ctx   *model.Context
	Bytes []byte
}

// Pages returns the page count of the parsed document.
func (d *Document) Pages() int {
	if d == nil || d.Ctx == nil {
		return 0
	}
	return d.Ctx.PageCount
}

// LoadStrict parses b with strict validation. Encrypted documents are
// rejected with ErrEncrypted.
func LoadStrict(b []byte) (*Document, error) {
	var doc *Document
	err := guard("strict load", func() error {
		ctx, err := api.ReadContext(bytes.NewReader(b), config(model.ValidationStrict))
		if err != nil {
			return err
		}
		if ctx.Encrypt != nil {
			return ErrEncrypted
		}
		if err := api.ValidateContext(ctx); err != nil {
			return err
		}
		if err := ctx.EnsurePageCount(); err != nil {
			return err
		}
		if ctx.PageCount < 1 {
			return ErrNoPages
		}
		doc = &Document{Ctx: ctx, Bytes: b}
		return nil
	})
	return doc, err
}

// LoadRelaxed parses b with relaxed validation. Documents encrypted without a
// user password are decrypted first so the returned bytes are plain.
func LoadRelaxed(b []byte) (*Document, error) {
	var doc *Document
	err := guard("relaxed load", func() error {
		src := b
		ctx, err := api.ReadContext(bytes.NewReader(src), relaxed())
		if err != nil {
			return err
		}
		if ctx.Encrypt != nil {
			var plain bytes.Buffer
			if derr := api.Decrypt(bytes.NewReader(b), &plain, relaxed()); derr == nil {
				if c2, rerr := api.ReadContext(bytes.NewReader(plain.Bytes()), relaxed()); rerr == nil {
					ctx, src = c2, plain.Bytes()
				}
			} else {
				log.Debug().Err(derr).Msg("decrypt without password failed")
			}
		}
		if err := ctx.EnsurePageCount(); err != nil {
			return err
		}
		if ctx.PageCount < 1 {
			return ErrNoPages
		}
		doc = &Document{Ctx: ctx, Bytes: src}
		return nil
	})
	return doc, err
}

// Write serializes a parsed document into a fresh file.
func Write(doc *Document) ([]byte, error) {
	var out []byte
	err := guard("write", func() error {
		if err := api.OptimizeContext(doc.Ctx); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := api.WriteContext(doc.Ctx, &buf); err != nil {
			return err
		}
		out = buf.Bytes()
		return nil
	})
	return out, err
}

// Decrypt removes owner-password encryption from b.
func Decrypt(b []byte) ([]byte, error) {
	var out []byte
	err := guard("decrypt", func() error {
		var buf bytes.Buffer
		if err := api.Decrypt(bytes.NewReader(b), &buf, relaxed()); err != nil {
			return err
		}
		out = buf.Bytes()
		return nil
	})
	return out, err
}

// PageCount returns the page count as seen by relaxed pdfcpu parsing.
func PageCount(b []byte) (int, error) {
	n := 0
	err := guard("page count", func() error {
		var err error
		n, err = api.PageCount(bytes.NewReader(b), relaxed())
		return err
	})
	return n, err
}

// TolerantPageCount asks each parser in turn and returns the first positive
// answer. It returns 0 when none of them can read the document.
func TolerantPageCount(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	if n, err := PageCount(b); err == nil && n > 0 {
		return n
	}
	n := 0
	_ = guard("ledongthuc page count", func() error {
		r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
		if err != nil {
			return err
		}
		n = r.NumPage()
		return nil
	})
	if n > 0 {
		return n
	}
	_ = guard("mupdf page count", func() error {
		doc, err := fitz.NewFromMemory(b)
		if err != nil {
			return err
		}
		defer doc.Close()
		n = doc.NumPage()
		return nil
	})
	return n
}

// ExtractPage returns page pageNr (1-based) of b as a standalone document.
func ExtractPage(b []byte, pageNr int) ([]byte, error) {
	var out []byte
	err := guard("extract page", func() error {
		var buf bytes.Buffer
		if err := api.Trim(bytes.NewReader(b), &buf, []string{strconv.Itoa(pageNr)}, relaxed()); err != nil {
			return err
		}
		out = buf.Bytes()
		return nil
	})
	return out, err
}

// MergeParts concatenates parts in order.
func MergeParts(parts [][]byte) ([]byte, error) {
	var out []byte
	err := guard("merge", func() error {
		if len(parts) == 0 {
			return errors.New("nothing to merge")
		}
		if len(parts) == 1 {
			out = parts[0]
			return nil
		}
		rsc := make([]io.ReadSeeker, len(parts))
		for i, p := range parts {
			rsc[i] = bytes.NewReader(p)
		}
		var buf bytes.Buffer
		if err := api.MergeRaw(rsc, &buf, false, relaxed()); err != nil {
			return err
		}
		out = buf.Bytes()
		return nil
	})
	return out, err
}

// PageDims returns the media box dimensions of every page of b, asking
// MuPDF when pdfcpu cannot read the page tree. Pages whose size cannot be
// read are reported as Letter.
func PageDims(b []byte, n int) []Dim {
	dims, err := pageDims(b)
	if err != nil {
		if dims, err = mupdfDims(b); err != nil {
			log.Debug().Err(err).Msg("page dims unavailable, using letter")
		}
	}
	out := make([]Dim, n)
	for i := range out {
		out[i] = Letter
		if i < len(dims) && dims[i].Width > 0 && dims[i].Height > 0 {
			out[i] = dims[i]
		}
	}
	return out
}

func pageDims(b []byte) ([]Dim, error) {
	var dims []Dim
	err := guard("page dims", func() error {
		ds, err := api.PageDims(bytes.NewReader(b), relaxed())
		if err != nil {
			return err
		}
		dims = make([]Dim, len(ds))
		for i, d := range ds {
			dims[i] = Dim{Width: d.Width, Height: d.Height}
		}
		return nil
	})
	return dims, err
}

// content stream operators that paint something on the page
var paintOps = regexp.MustCompile(`(?:^|[\s\)\]>])(?:Tj|TJ|'|"|Do|BI)(?:\s|$)`)

// HasVisibleContent reports whether page pageNr of doc paints text, images
// or form XObjects.
func HasVisibleContent(doc *Document, pageNr int) bool {
	visible := false
	_ = guard("content scan", func() error {
		r, err := pdfcpu.ExtractPageContent(doc.Ctx, pageNr)
		if err != nil || r == nil {
			return err
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		visible = paintOps.Match(data)
		return nil
	})
	return visible
}

// AnyVisibleContent reports whether at least one page of doc paints
// something.
func AnyVisibleContent(doc *Document) bool {
	for p := 1; p <= doc.Pages(); p++ {
		if HasVisibleContent(doc, p) {
			return true
		}
	}
	return false
}

// Images builds a PDF with one page per image, in order.
func Images(images [][]byte) ([]byte, error) {
	var out []byte
	err := guard("import images", func() error {
		if len(images) == 0 {
			return errors.New("no images")
		}
		readers := make([]io.Reader, len(images))
		for i, img := range images {
			readers[i] = bytes.NewReader(img)
		}
		var buf bytes.Buffer
		if err := api.ImportImages(nil, &buf, readers, pdfcpu.DefaultImportConfig(), relaxed()); err != nil {
			return err
		}
		out = buf.Bytes()
		return nil
	})
	return out, err
}

const footerDesc = "font:Helvetica, points:7, pos:bc, off:0 10, scale:1 abs, rot:0, fillc:#404040"

// StampFooters writes labels[n] at the bottom of page n.
func StampFooters(b []byte, labels map[int]string) ([]byte, error) {
	if len(labels) == 0 {
		return b, nil
	}
	var out []byte
	err := guard("stamp footers", func() error {
		m := make(map[int]*model.Watermark, len(labels))
		for page, text := range labels {
			wm, err := api.TextWatermark(ASCII(text), footerDesc, true, false, types.POINTS)
			if err != nil {
				return err
			}
			m[page] = wm
		}
		var buf bytes.Buffer
		if err := api.AddWatermarksMap(bytes.NewReader(b), &buf, m, relaxed()); err != nil {
			return err
		}
		out = buf.Bytes()
		return nil
	})
	return out, err
}

// Info is the document information written into a merged bundle.
type Info struct {
	Title    string
	Subject  string
	Producer string
	Created  time.Time
}

// SetInfo replaces the information dictionary of b. The document is
// validated and optimized on the way in so objects added by earlier pdfcpu
// passes are resolvable when it is written back.
func SetInfo(b []byte, info Info) ([]byte, error) {
	var out []byte
	err := guard("set info", func() error {
		ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(b), relaxed())
		if err != nil {
			return err
		}
		d := types.Dict{
			"Producer": types.StringLiteral(ASCII(info.Producer)),
			"Creator":  types.StringLiteral(ASCII(info.Producer)),
		}
		if info.Title != "" {
			d["Title"] = types.StringLiteral(ASCII(info.Title))
		}
		if info.Subject != "" {
			d["Subject"] = types.StringLiteral(ASCII(info.Subject))
		}
		if !info.Created.IsZero() {
			d["CreationDate"] = types.StringLiteral(types.DateString(info.Created))
			d["ModDate"] = types.StringLiteral(types.DateString(info.Created))
		}
		ir, err := ctx.IndRefForNewObject(d)
		if err != nil {
			return err
		}
		ctx.Info = ir
		var buf bytes.Buffer
		if err := api.WriteContext(ctx, &buf); err != nil {
			return err
		}
		out = buf.Bytes()
		return nil
	})
	return out, err
}
