// Package cli implements the command-line driving adapter.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
	"github.com/regcap-labs/regcap/internal/core/ports/driving"
	"github.com/regcap-labs/regcap/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services injected by main before Execute.
var (
	sessionService   driving.SessionService
	retrievalService driving.RetrievalService
	settingsStore    driven.SettingsStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "regcap",
	Short: "Question-focused retrieval over regulatory PDF documents",
	Long: `RegCap indexes extracted PDF text into per-session vector indexes and
retrieves the passages most relevant to a question, with page-level
citations. Answer generation is left to an external collaborator;
RegCap supplies the ranked context it needs.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
	// Sessions live in process memory; unsaved changes must reach the
	// store before the process exits.
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if sessionService == nil {
			return nil
		}
		if err := sessionService.Flush(cmd.Context()); err != nil {
			return fmt.Errorf("saving sessions: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// SetServices injects the service implementations used by commands.
func SetServices(
	sessions driving.SessionService,
	retrieval driving.RetrievalService,
	settings driven.SettingsStore,
) {
	sessionService = sessions
	retrievalService = retrieval
	settingsStore = settings
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// userError maps internal failures to actionable messages.
func userError(err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return errors.New("session not found; run 'regcap session list'")
	case errors.Is(err, domain.ErrJobNotFound):
		return errors.New("upload job not found")
	case errors.Is(err, domain.ErrProviderTransient), errors.Is(err, domain.ErrEmbeddingUnavailable):
		return errors.New("embedding provider temporarily unavailable, retry the question")
	case errors.Is(err, domain.ErrProviderFatal):
		return fmt.Errorf("embedding provider rejected the request: %w", err)
	default:
		return err
	}
}
