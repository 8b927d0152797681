package commands

import (
	"os"

	"github.com/spherical/ocr-extractor/internal/app"
	"github.com/spherical/ocr-extractor/internal/config"
	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/observability"
)

// EngineFactory starts recognition engines for a language list.
type EngineFactory func(languages ...string) domain.RecognizerFactory

var newEngines EngineFactory

// cliLogger writes human-readable logs to stderr. Without --verbose only
// warnings and errors are shown so they don't interleave with progress.
func cliLogger(cfg *config.Config) *observability.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		Output:      os.Stderr,
		ServiceName: cfg.Observability.ServiceName,
		NoColor:     noColor,
	})
}

// serverLogger follows the observability section of the config.
func serverLogger(cfg *config.Config) *observability.Logger {
	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		Output:      os.Stderr,
		ServiceName: cfg.Observability.ServiceName,
		NoColor:     noColor,
	})
}

func buildApp(cfg *config.Config, logger *observability.Logger) (*app.App, error) {
	return app.New(cfg, newEngines(cfg.OCR.Languages...), logger)
}
