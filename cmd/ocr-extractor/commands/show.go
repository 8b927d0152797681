package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/ocr-extractor/cmd/ocr-extractor/ui"
	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/store"
)

var showFollow bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the latest extracted text",
	Long: `Print the text most recently stored by extract or the HTTP API.

With --follow the command keeps running and prints the text again every time
it changes. Following needs the redis store driver, since other drivers only
notify subscribers inside the writing process.`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVarP(&showFollow, "follow", "f", false, "print the text again whenever it changes")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if showFollow && !store.CrossProcess(cfg.Store.Driver) {
		return domain.ConfigError(fmt.Sprintf("--follow needs the redis store driver, configured driver is %q", cfg.Store.Driver), nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.Store, cliLogger(cfg))
	if err != nil {
		return err
	}
	defer st.Close()

	var changes <-chan store.Change
	if showFollow {
		// Subscribe before reading so a write between the two is not lost.
		changes, err = st.Subscribe(ctx, domain.ExtractedTextKey)
		if err != nil {
			return err
		}
	}

	text, err := st.Get(ctx, domain.ExtractedTextKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if !showFollow {
			ui.Warning("No text has been extracted yet")
			return nil
		}
		ui.Info("Waiting for the first extraction...")
	case err != nil:
		return err
	default:
		ui.Text(text)
	}

	if !showFollow {
		return nil
	}

	for c := range changes {
		ui.Section(fmt.Sprintf("Updated %s", c.At.Format("15:04:05")))
		ui.Text(c.Value)
	}
	return nil
}
