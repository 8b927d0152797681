package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/ocr-extractor/cmd/ocr-extractor/ui"
	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/pdf"
)

var (
	extractEngine     string
	extractOutputPath string
	extractPool       int
	extractSave       bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract text from an image or a PDF",
	Long: `Extract text from an image or a PDF and print it, or write it to --output.

Examples:
  ocr-extractor extract scan.png
  ocr-extractor extract --pool 8 -o report.txt report.pdf
  ocr-extractor extract --engine hosted invoice.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractEngine, "engine", "e", "local", "extraction engine: local or hosted")
	extractCmd.Flags().StringVarP(&extractOutputPath, "output", "o", "", "write text to this file instead of stdout")
	extractCmd.Flags().IntVar(&extractPool, "pool", 0, "number of OCR engines (default from config)")
	extractCmd.Flags().BoolVar(&extractSave, "save", true, "store the result as the latest extracted text")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := appConfig
	if extractPool > 0 {
		cfg.OCR.PoolSize = extractPool
	}
	if !extractSave {
		cfg.Store.Driver = "memory"
	}

	engine, err := domain.ParseEngine(extractEngine)
	if err != nil {
		return err
	}

	file, err := pdf.NewValidator(cfg.OCR.MaxFileBytes).ReadFile(args[0])
	if err != nil {
		return err
	}

	logger := cliLogger(cfg)
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.Info("%s (%s, %d bytes) with the %s engine", file.Name, file.ContentType, file.Size(), engine)

	start := time.Now()
	text, err := runWithProgress(ctx, a.Service.Process, engine, file)
	if err != nil {
		ui.Error("Extraction failed: %v", err)
		return err
	}

	if extractOutputPath != "" {
		if err := os.WriteFile(extractOutputPath, []byte(text), 0o644); err != nil {
			return domain.IOError(fmt.Sprintf("write %s", extractOutputPath), err)
		}
		ui.Success("Wrote %d characters to %s in %s", len([]rune(text)), extractOutputPath, time.Since(start).Round(time.Millisecond))
		return nil
	}

	ui.Success("Extracted %d characters in %s", len([]rune(text)), time.Since(start).Round(time.Millisecond))
	ui.Text(text)
	return nil
}

type processFunc func(ctx context.Context, engine domain.Engine, file domain.FileInput, eventCh chan<- domain.StreamEvent) (*domain.DocumentText, error)

// runWithProgress drives process and renders its events: a percentage bar
// for local OCR, a spinner for the hosted call.
func runWithProgress(ctx context.Context, process processFunc, engine domain.Engine, file domain.FileInput) (string, error) {
	eventCh := make(chan domain.StreamEvent, 100)

	type outcome struct {
		out *domain.DocumentText
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := process(ctx, engine, file, eventCh)
		close(eventCh)
		done <- outcome{out, err}
	}()

	var (
		bar      *ui.ProgressBar
		spin     *ui.Spinner
		streamed int
	)
	if engine == domain.EngineHosted {
		spin = ui.NewSpinner("Waiting for the hosted model...")
		spin.Start()
	} else {
		bar = ui.NewProgressBar("Recognizing")
	}

	for event := range eventCh {
		switch event.Type {
		case domain.EventProgress:
			if bar != nil {
				bar.Set(event.Percent)
			}
		case domain.EventChunk:
			if chunk, ok := event.Payload.(string); ok && spin != nil {
				streamed += len([]rune(chunk))
				spin.UpdateMessage(fmt.Sprintf("Receiving text... %d characters", streamed))
			}
		}
	}

	res := <-done
	if spin != nil {
		spin.Stop()
	}
	if bar != nil {
		if res.err != nil {
			bar.Abandon()
		} else {
			bar.Finish()
		}
	}

	if res.err != nil {
		return "", res.err
	}
	return res.out.Text, nil
}
