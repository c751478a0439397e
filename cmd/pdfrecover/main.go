// Command pdfrecover runs the recovery engine on local files.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/pdfconsolidator/internal/config"
	logpkg "github.com/local/pdfconsolidator/internal/logger"
)

var (
	verbose bool
	cfg     cfgpkg.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pdfrecover",
		Short:         "Recover damaged PDFs and merge them into one bundle",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg = cfgpkg.FromEnv()
			level := "warn"
			if verbose {
				level = "debug"
			}
			return logpkg.Init(logpkg.Options{Level: level, Pretty: true, Console: os.Stderr})
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every strategy attempt")
	root.AddCommand(newMergeCmd(), newClassifyCmd(), newStatusCmd())
	return root
}

func main() {
	defer logpkg.Close()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
