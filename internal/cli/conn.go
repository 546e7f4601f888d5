package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fleetstate/internal/fleetapi"
)

// ConnOptions holds the service connection flags shared by discover and
// build.
type ConnOptions struct {
	URL   string // Kibana base URL
	ESURL string // Elasticsearch base URL, derived from URL when empty
}

// AddFlags registers the connection flags on a command.
func (o *ConnOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.URL, "url", "", "base URL of the Kibana instance (required)")
	cmd.Flags().StringVar(&o.ESURL, "es-url", "", "base URL of the Elasticsearch instance (derived from --url when omitted)")
	_ = cmd.MarkFlagRequired("url")
}

// Clients resolves the credential and builds the Fleet and Elasticsearch
// clients. The credential check happens here, before any network activity.
func (o *ConnOptions) Clients() (fleet, es *fleetapi.Client, err error) {
	apiKey, err := fleetapi.APIKeyFromEnv()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "missing credential", err)
	}

	kibanaURL := strings.TrimRight(o.URL, "/")
	esURL := o.ESURL
	if esURL == "" {
		slog.Warn("--es-url not provided, deriving from Kibana URL; this may not work for self-managed deployments")
		esURL = fleetapi.DeriveESURL(kibanaURL)
	}
	esURL = strings.TrimRight(esURL, "/")

	return fleetapi.New(kibanaURL, apiKey), fleetapi.New(esURL, apiKey), nil
}

// setupLogging configures the process logger: text handler on stderr,
// debug level when verbose.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
// Cancellation is "stop the process": entities already mutated stay
// mutated, there is no rollback machinery.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
