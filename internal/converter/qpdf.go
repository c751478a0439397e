package converter

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// QPDF normalizes document structure: it rewrites the xref table, drops
// object streams and strips permission-only encryption.
type QPDF struct {
	Path string
}

func NewQPDF(path string) *QPDF {
	if path == "" {
		path = "qpdf"
	}
	return &QPDF{Path: path}
}

func (q *QPDF) Name() string { return "qpdf" }

func (q *QPDF) Available() error {
	_, err := binary(q.Name(), q.Path)
	return err
}

func (q *QPDF) Run(ctx context.Context, inputPath, outputPath string) error {
	bin, err := binary(q.Name(), q.Path)
	if err != nil {
		return err
	}
	code, err := run(ctx, q.Name(), bin, "--decrypt", "--object-streams=disable", inputPath, outputPath)
	// exit code 3 means "succeeded with warnings"
	if code == 3 {
		if st, serr := os.Stat(outputPath); serr == nil && st.Size() > 0 {
			log.Debug().Str("tool", q.Name()).Msg("qpdf finished with warnings")
			return nil
		}
	}
	return err
}

// Version reports the installed qpdf version, for status checks.
func (q *QPDF) Version(ctx context.Context) (string, error) {
	bin, err := binary(q.Name(), q.Path)
	if err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
