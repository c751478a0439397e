package converter

import (
	"context"
	"os/exec"
	"strings"
)

// Ghostscript re-distills a document through the pdfwrite device, which
// re-interprets every page and writes a fresh file.
type Ghostscript struct {
	Path string
}

func NewGhostscript(path string) *Ghostscript {
	if path == "" {
		path = "gs"
	}
	return &Ghostscript{Path: path}
}

func (g *Ghostscript) Name() string { return "ghostscript" }

func (g *Ghostscript) Available() error {
	_, err := binary(g.Name(), g.Path)
	return err
}

func (g *Ghostscript) Run(ctx context.Context, inputPath, outputPath string) error {
	bin, err := binary(g.Name(), g.Path)
	if err != nil {
		return err
	}
	_, err = run(ctx, g.Name(), bin,
		"-q", "-dNOPAUSE", "-dBATCH", "-dSAFER",
		"-sDEVICE=pdfwrite",
		"-sOutputFile="+outputPath,
		inputPath,
	)
	return err
}

// Version reports the installed Ghostscript version, for status checks.
func (g *Ghostscript) Version(ctx context.Context) (string, error) {
	bin, err := binary(g.Name(), g.Path)
	if err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
