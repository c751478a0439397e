package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/local/pdfconsolidator/internal/classifier"
	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/filetype"
	"github.com/local/pdfconsolidator/internal/merge"
	"github.com/local/pdfconsolidator/internal/pdfops"
	"github.com/local/pdfconsolidator/internal/render"
	"github.com/local/pdfconsolidator/internal/statuscheck"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify file.pdf...",
		Short: "Show the pathology and page estimates of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := classifier.ParseOverrides(cfg.Recovery.PageCountOverrides)
			if err != nil {
				return err
			}
			cls := classifier.New(overrides)
			det := filetype.New()
			w := cmd.OutOrStdout()
			for _, p := range args {
				b, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				name := filepath.Base(p)
				info := det.Detect(b, name)
				doc := document.InputDocument{Bytes: b, DisplayName: name}
				fmt.Fprintf(w, "%s\n  type:       %s\n  pathology:  %s\n  expected:   %d pages\n  parsed:     %d pages\n  size:       %d bytes\n",
					name, info.Description, cls.Classify(b, name), cls.ExpectedPages(doc), pdfops.TolerantPageCount(b), len(b))
			}
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the external tools the engine can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := merge.Build(cfg, nil)
			if err != nil {
				return err
			}
			defer engine.Close()
			sum := statuscheck.New(statuscheck.Options{
				QPDF:        engine.QPDF,
				Ghostscript: engine.Ghostscript,
				RenderProbe: render.Probe,
			}).Summary(context.Background())
			w := cmd.OutOrStdout()
			for _, row := range []struct {
				name string
				st   statuscheck.Status
			}{{"qpdf", sum.QPDF}, {"ghostscript", sum.Ghostscript}, {"mupdf", sum.MuPDF}} {
				state := "ok"
				if !row.st.OK {
					state = "unavailable"
				}
				fmt.Fprintf(w, "%-12s %-12s %s\n", row.name, state, row.st.Message)
			}
			return nil
		},
	}
}
