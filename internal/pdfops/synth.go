package pdfops

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/create"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/draw"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Dim is a page size in PDF points.
type Dim struct {
	Width  float64
	Height float64
}

// Letter is the default page size for synthesized pages.
var Letter = Dim{Width: 612, Height: 792}

// PageSpec describes one synthesized page.
type PageSpec struct {
	Size   Dim
	Title  string
	Lines  []string
	Banner string // drawn white on red above the title when set
}

func (p PageSpec) size() Dim {
	if p.Size.Width <= 0 || p.Size.Height <= 0 {
		return Letter
	}
	return p.Size
}

const (
	regularFont = "Helvetica"
	boldFont    = "Helvetica-Bold"

	margin      = 54.0
	titleSize   = 18
	bodySize    = 11
	bannerSize  = 12
	lineLeading = 15.0
)

var bannerRed = color.SimpleColor{R: 0.8, G: 0.1, B: 0.1}

// Compose authors a standalone PDF with one page per spec, set in the core
// Helvetica fonts. Each page keeps its own media box.
func Compose(pages []PageSpec) ([]byte, error) {
	if len(pages) == 0 {
		pages = []PageSpec{{Size: Letter}}
	}
	var out []byte
	err := guard("compose", func() error {
		first := pages[0].size()
		conf := relaxed()
		// plain objects keep the page tree visible to byte-level scanners
		conf.WriteObjectStream = false
		conf.WriteXRefStream = false
		ctx, err := pdfcpu.CreateContextWithXRefTable(conf, &types.Dim{Width: first.Width, Height: first.Height})
		if err != nil {
			return err
		}
		authored := make([]*model.Page, len(pages))
		for i, spec := range pages {
			authored[i] = layout(ctx.XRefTable, spec)
		}
		fonts := model.FontMap{regularFont: model.FontResource{}, boldFont: model.FontResource{}}
		if _, _, err := create.UpdatePageTree(ctx, authored, fonts); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := api.WriteContext(ctx, &buf); err != nil {
			return err
		}
		out = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compose %d pages: %w", len(pages), err)
	}
	return out, nil
}

// MustCompose is Compose for fixed layouts known to be valid.
func MustCompose(pages []PageSpec) []byte {
	b, err := Compose(pages)
	if err != nil {
		panic(err)
	}
	return b
}

func layout(xrt *model.XRefTable, spec PageSpec) *model.Page {
	size := spec.size()
	mb := types.RectForDim(size.Width, size.Height)
	p := model.NewPage(mb, mb)

	y := size.Height - margin
	usable := size.Width - 2*margin
	if usable < 72 {
		usable = size.Width - 12
	}

	if spec.Banner != "" {
		h := float64(bannerSize) + 14
		draw.FillRectNoBorder(p.Buf, types.NewRectangle(margin-6, y-h+6, margin+usable+6, y+6), bannerRed)
		if lines := wrap(spec.Banner, boldFont, bannerSize, usable); len(lines) > 0 {
			text(xrt, &p, lines[0], boldFont, bannerSize, y-bannerSize, color.White)
		}
		y -= h + 18
	}

	if spec.Title != "" {
		for _, line := range wrap(spec.Title, boldFont, titleSize, usable) {
			text(xrt, &p, line, boldFont, titleSize, y-titleSize, color.Black)
			y -= titleSize + 8
		}
		y -= 10
	}
	for _, raw := range spec.Lines {
		if raw == "" {
			y -= lineLeading
			continue
		}
		for _, line := range wrap(raw, regularFont, bodySize, usable) {
			if y < margin {
				return &p
			}
			text(xrt, &p, line, regularFont, bodySize, y-bodySize, color.Black)
			y -= lineLeading
		}
	}
	return &p
}

func text(xrt *model.XRefTable, p *model.Page, s, fontName string, size int, baseline float64, fill color.SimpleColor) {
	// the writer treats a literal backslash-n as a line break
	s = strings.ReplaceAll(s, `\n`, `\ n`)
	model.WriteMultiLine(xrt, p.Buf, p.MediaBox, nil, model.TextDescriptor{
		Text:      s,
		FontName:  fontName,
		FontKey:   p.Fm.EnsureKey(fontName),
		FontSize:  size,
		X:         margin,
		Y:         baseline,
		ScaleAbs:  true,
		Scale:     1,
		FillCol:   fill,
		StrokeCol: fill,
	})
}

// wrap breaks s into lines no wider than width when set in fontName at
// size. A single word wider than width is split by rune.
func wrap(s, fontName string, size int, width float64) []string {
	fits := func(t string) bool { return font.TextWidth(latin1(t), fontName, size) <= width }
	var lines []string
	cur := ""
	for _, word := range strings.Fields(s) {
		for !fits(word) && utf8.RuneCountInString(word) > 1 {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			r := []rune(word)
			cut := len(r) - 1
			for cut > 1 && !fits(string(r[:cut])) {
				cut--
			}
			lines = append(lines, string(r[:cut]))
			word = string(r[cut:])
		}
		switch {
		case cur == "":
			cur = word
		case fits(cur + " " + word):
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// latin1 maps s to one byte per rune the way the core-font writer does, so
// measured widths match what is drawn.
func latin1(s string) string {
	return model.DecodeUTF8ToByte(s)
}

// ASCII reduces s to printable ASCII, for strings handed to renderers that
// only support the standard encodings.
func ASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 0x20 && r < 0x7F:
			b.WriteRune(r)
		case r == '–' || r == '—':
			b.WriteByte('-')
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
