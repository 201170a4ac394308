// Command probe runs one key-length sweep against the configured document
// store and prints the report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docprobe/application/probe"
	"docprobe/infrastructure/config"
	"docprobe/infrastructure/di"
	pkgerrors "docprobe/pkg/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitAuth    = 2
)

type options struct {
	configDir   string
	environment string
	format      string
	concurrency int
	publish     bool
}

func main() {
	loadEnv()

	opts := &options{}
	cmd := &cobra.Command{
		Use:          "probe",
		Short:        "Sweep partition key lengths with create-or-observe and report outcomes",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.configDir, "config-dir", "c", "", "Directory holding base.yaml and <environment>.yaml (default $CONFIG_DIR or ./config)")
	cmd.Flags().StringVarP(&opts.environment, "environment", "e", "", "Deployment environment (default $ENVIRONMENT or development)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "yaml", "Report format: yaml or json")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Override probe.sweep.concurrency")
	cmd.Flags().BoolVar(&opts.publish, "publish", true, "Send the report to the configured publishers")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func loadEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: unable to load .env: %v", err)
	}
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	if opts.format != "yaml" && opts.format != "json" {
		return pkgerrors.NewValidationError("format must be yaml or json")
	}

	cfg, err := config.NewLoader(opts.configDir, opts.environment).Load()
	if err != nil {
		return err
	}
	if opts.concurrency > 0 {
		cfg.Probe.Sweep.Concurrency = opts.concurrency
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer cleanup()
	defer container.Logger.Sync() //nolint:errcheck

	logger := container.Logger
	logger.Info("Starting sweep",
		zap.Strings("configSources", cfg.LoadedFrom),
		zap.Stringer("store", cfg.Store),
		zap.Int("minKeyLength", cfg.Probe.Sweep.MinKeyLength),
		zap.Int("maxKeyLength", cfg.Probe.Sweep.MaxKeyLength),
		zap.Int("concurrency", cfg.Probe.Sweep.Concurrency),
	)

	if cfg.Probe.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Probe.Timeout)
		defer cancel()
	}

	report, sweepErr := container.Sweeper.Sweep(ctx)
	if report != nil {
		if err := writeReport(stdout, report, opts.format); err != nil {
			return err
		}
		logger.Info("Sweep finished",
			zap.Any("totals", report.Totals),
			zap.Int("anomalies", len(report.Anomalies())),
			zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		)

		if opts.publish && len(container.Publishers) > 0 {
			// Publishing uses a fresh context so a timed-out sweep still reports
			if err := container.Publishers.Publish(context.WithoutCancel(ctx), report); err != nil {
				logger.Error("Failed to publish report", zap.Error(err))
			}
		}
	}
	return sweepErr
}

func writeReport(w io.Writer, report *probe.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case pkgerrors.IsAuth(err):
		return exitAuth
	default:
		return exitFailure
	}
}
