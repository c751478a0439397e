package pdfops

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"
)

// EncodeJPEG encodes img at quality, falling back to 85 when quality is out
// of range.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// RasterPages draws the given pages (1-based) of b with MuPDF, which reads
// many files whose cross-reference table or page tree pdfcpu rejects, and
// returns each drawn page as a one-page PDF at the page's own size. Pages
// MuPDF cannot draw are absent from the result. Only cancellation of ctx is
// returned as an error.
func RasterPages(ctx context.Context, b []byte, pages []int, dpi float64) (map[int][]byte, error) {
	parts := make(map[int][]byte, len(pages))
	if dpi <= 0 {
		dpi = 110
	}
	err := guard("raster pages", func() error {
		doc, err := fitz.NewFromMemory(b)
		if err != nil {
			log.Debug().Err(err).Msg("mupdf could not open document")
			return nil
		}
		defer doc.Close()
		total := doc.NumPage()
		for _, p := range pages {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p < 1 || p > total {
				continue
			}
			part, err := rasterPage(doc, p, dpi)
			if err != nil {
				log.Debug().Err(err).Int("page", p).Msg("mupdf could not draw page")
				continue
			}
			parts[p] = part
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// mupdfDims reads page sizes through MuPDF.
func mupdfDims(b []byte) ([]Dim, error) {
	var dims []Dim
	err := guard("mupdf page dims", func() error {
		doc, err := fitz.NewFromMemory(b)
		if err != nil {
			return err
		}
		defer doc.Close()
		dims = make([]Dim, doc.NumPage())
		for i := range dims {
			if r, err := doc.Bound(i); err == nil {
				dims[i] = Dim{Width: float64(r.Dx()), Height: float64(r.Dy())}
			}
		}
		return nil
	})
	return dims, err
}

func rasterPage(doc *fitz.Document, pageNr int, dpi float64) ([]byte, error) {
	size := Letter
	if r, err := doc.Bound(pageNr - 1); err == nil && r.Dx() > 0 && r.Dy() > 0 {
		size = Dim{Width: float64(r.Dx()), Height: float64(r.Dy())}
	}
	img, err := doc.ImageDPI(pageNr-1, dpi)
	if err != nil {
		return nil, err
	}
	b, err := EncodeJPEG(img, 85)
	if err != nil {
		return nil, err
	}
	return imageAt(b, size)
}

// imageAt builds a one-page PDF of the given size with img scaled to fit.
func imageAt(img []byte, size Dim) ([]byte, error) {
	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = &types.Dim{Width: size.Width, Height: size.Height}
	imp.UserDim = true
	imp.Pos = types.Center
	imp.Scale = 1
	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, []io.Reader{bytes.NewReader(img)}, imp, relaxed()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
