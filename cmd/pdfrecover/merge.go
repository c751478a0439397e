package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/local/pdfconsolidator/internal/breaker"
	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/merge"
)

func newMergeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge [flags] file.pdf...",
		Short: "Recover every file and write the consolidated bundle",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]document.InputDocument, 0, len(args))
			for i, p := range args {
				b, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				docs = append(docs, document.InputDocument{Bytes: b, DisplayName: filepath.Base(p), Ordinal: i})
			}

			engine, err := merge.Build(cfg, breaker.NewMemory(cfg.Breaker.BaseBackoff, cfg.Breaker.MaxBackoff))
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out, err := engine.Merge(ctx, docs)
			if err != nil {
				if be, ok := document.AsBatchError(err); ok {
					return fmt.Errorf("%s: %s", be.Kind, be.Message)
				}
				return err
			}
			if err := os.WriteFile(output, out.Bytes, 0o644); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, d := range out.Documents {
				note := ""
				if d.UsedPlaceholders {
					note = fmt.Sprintf("  (%d placeholder pages)", d.PlaceholderPages)
				}
				fmt.Fprintf(w, "%-40s %-28s %4d pages%s\n", d.DisplayName, d.Method, d.PageCount, note)
			}
			fmt.Fprintf(w, "wrote %s: %d documents, %d pages\n", output, out.DocumentCount, out.TotalPages)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "bundle.pdf", "output file")
	return cmd
}
