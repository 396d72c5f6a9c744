package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/conwaychriscosmo/feedbackforge/pkg/config"
	"github.com/conwaychriscosmo/feedbackforge/pkg/logging"
	"github.com/conwaychriscosmo/feedbackforge/pkg/metrics"
	"github.com/conwaychriscosmo/feedbackforge/pkg/processor"
	"github.com/conwaychriscosmo/feedbackforge/pkg/sdk"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "env.yaml", "path to the configuration file")
		inputPath   = flag.String("input", "", "file with one document URL per line")
		workers     = flag.Int("workers", 0, "override the configured worker count")
		schedule    = flag.String("schedule", "", "cron spec; keeps the process alive and runs the batch on it")
		label       = flag.String("label", "forge-batch", "schedule label")
		metricsAddr = flag.String("metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
		pretty      = flag.Bool("pretty", false, "human-readable console logs")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}
	if *pretty {
		cfg.LogPretty = true
	}
	if *workers > 0 {
		cfg.MaxWorkers = *workers
	}

	client, err := sdk.NewFromConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}
	defer client.Close()

	logger := logging.NewLogger("forge-batch")

	refs, err := readReferences(*inputPath, flag.Args())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read document references")
		return 1
	}
	if len(refs) == 0 {
		fmt.Fprintln(os.Stderr, "no document references given; pass URLs or -input FILE")
		flag.Usage()
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *metricsAddr != "" {
		startMetricsServer(ctx, *metricsAddr, logger)
	}

	// Fail fast when a key file is configured but unusable.
	if cfg.GCPKeyPath != "" {
		if _, err := client.Authenticate(); err != nil {
			logger.Error().Err(err).Msg("Credential resolution failed")
			return 1
		}
	}

	if *schedule == "" {
		return runOnce(ctx, client, refs, logger)
	}
	return runScheduled(ctx, client, refs, *label, *schedule, logger)
}

// runOnce processes the batch a single time. Partial failures are reported
// per document and do not change the exit code.
func runOnce(ctx context.Context, client *sdk.SDK, refs []string, logger zerolog.Logger) int {
	outcomes, err := client.ProcessDocuments(ctx, refs, sdk.WithProgress(func(completed, total int) {
		logger.Info().
			Int("completed", completed).
			Int("total", total).
			Msg("Progress")
	}))
	if err != nil {
		logger.Error().Err(err).Msg("Batch failed to run")
		return 1
	}

	for _, o := range outcomes {
		if o.Succeeded() {
			logger.Info().
				Str("reference", o.Reference).
				Str("state", string(o.State)).
				Msg("Outcome")
			continue
		}
		logger.Warn().
			Str("reference", o.Reference).
			Str("state", string(o.State)).
			Str("reason", o.FailureReason).
			Msg("Outcome")
	}

	summary := processor.Summarize(outcomes)
	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("cancelled", summary.Cancelled).
		Msg("Batch finished")

	return 0
}

// runScheduled registers the batch on the given cadence and blocks until
// SIGINT or SIGTERM.
func runScheduled(ctx context.Context, client *sdk.SDK, refs []string, label, spec string, logger zerolog.Logger) int {
	err := client.Schedule(label, spec, func(jobCtx context.Context) error {
		outcomes, err := client.ProcessDocuments(jobCtx, refs)
		if err != nil {
			return err
		}

		summary := processor.Summarize(outcomes)
		logger.Info().
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Int("cancelled", summary.Cancelled).
			Msg("Scheduled batch finished")
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Schedule registration failed")
		return 1
	}

	client.StartScheduler(ctx)

	if next, ok := client.NextRun(label); ok && !next.IsZero() {
		logger.Info().
			Str("label", label).
			Str("spec", spec).
			Time("next_run", next).
			Msg("Waiting for schedule")
	} else {
		logger.Info().
			Str("label", label).
			Str("spec", spec).
			Msg("Waiting for schedule")
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.StopScheduler(stopCtx); err != nil {
		logger.Warn().Err(err).Msg("Scheduler did not stop cleanly")
	}

	return 0
}

// readReferences merges the -input file (one URL per line, # comments
// allowed) with positional arguments.
func readReferences(inputPath string, args []string) ([]string, error) {
	refs := make([]string, 0, len(args))

	if inputPath != "" {
		file, err := os.Open(inputPath)
		if err != nil {
			return nil, fmt.Errorf("open input file: %w", err)
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			refs = append(refs, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
	}

	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			refs = append(refs, arg)
		}
	}

	return refs, nil
}

func startMetricsServer(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics listener started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
