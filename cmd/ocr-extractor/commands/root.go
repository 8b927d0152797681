// Package commands implements the ocr-extractor command tree.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/ocr-extractor/cmd/ocr-extractor/ui"
	"github.com/spherical/ocr-extractor/internal/config"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ocr-extractor",
	Short: "Extract text from images and PDFs with local OCR or a hosted model",
	Long: `ocr-extractor recognizes text in images and PDF documents.

PDF pages are rasterized and recognized in parallel by a bounded pool of
Tesseract engines (chi_sim+eng by default), or the whole file is sent to a
hosted multimodal model when OPENROUTER_API_KEY is set. The latest result is
kept in the configured store and can be served over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Init(noColor || os.Getenv("NO_COLOR") != "", verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command. engines starts the local OCR engines.
func Execute(version string, engines EngineFactory) error {
	rootCmd.Version = version
	newEngines = engines
	return rootCmd.Execute()
}
