package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ligustah/tlcfetch/internal/config"
	"github.com/ligustah/tlcfetch/internal/fetcher"
	tlchttp "github.com/ligustah/tlcfetch/internal/http"
	"github.com/ligustah/tlcfetch/internal/metrics"
	"github.com/ligustah/tlcfetch/internal/pipeline"
	"github.com/ligustah/tlcfetch/internal/progress"
	"github.com/ligustah/tlcfetch/internal/tripdata"
	"github.com/ligustah/tlcfetch/internal/uploader"
)

// resolver opens the upload bucket. Tests replace it.
var resolver uploader.Resolver

// runFetch downloads every selected month of trip data into the destination
// directory and, with -upload, copies the results into the bucket.
func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := addConfigFlags(fs, config.Default())

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: tlcfetch [fetch] [options]

Download NYC TLC trip data (one gzipped CSV per type and month) into a local
directory. Files already present are skipped. With -upload, every file that
is available locally afterwards is copied into the bucket.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", fs.Args())
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(fs, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	defer log.Sync()
	log = log.With(zap.String("run_id", uuid.NewString()))

	ctx, cancel := signalContext()
	defer cancel()

	if err := os.MkdirAll(cfg.Dest, 0o755); err != nil {
		fmt.Fprintf(stderr, "Error creating destination: %v\n", err)
		return ExitGeneralError
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	client := tlchttp.NewClient(tlchttp.Options{
		MaxIdleConnsPerHost: cfg.Workers * 2,
		Timeout:             tlchttp.DefaultOptions().Timeout,
		UserAgent:           tlchttp.DefaultOptions().UserAgent,
	})
	f := fetcher.New(client, fetcher.Options{
		Retries: cfg.Retry.Attempts,
		Backoff: cfg.Retry.Backoff,
		BaseURL: cfg.BaseURL,
		Logger:  log,
		Metrics: m,
	})

	reporter := progress.NewReporter(progress.Options{Output: stderr})
	reporter.Start()
	defer reporter.Stop()

	c := pipeline.New(pipeline.Options{
		Types:        cfg.Types,
		Years:        cfg.Years,
		Months:       cfg.Months,
		Dest:         cfg.Dest,
		FetchWorkers: cfg.Workers,
		Upload:       cfg.Upload,
		Bucket:       cfg.Bucket,
		Logger:       log,
		Metrics:      m,
	}, f, newUploaderFactory(cfg, log, m), reporter)

	log.Info("run starting",
		zap.Strings("types", cfg.Types),
		zap.Ints("years", cfg.Years),
		zap.Ints("months", cfg.Months),
		zap.Bool("upload", cfg.Upload),
	)

	sum, err := c.Run(ctx)
	reporter.Stop()

	var cfgErr *tripdata.ConfigurationError
	if errors.As(err, &cfgErr) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	fmt.Fprintln(stdout, sum.String())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(stderr, "[tlcfetch] Run interrupted, files already on disk will be skipped next time")
	}
	return fetchExitCode(sum, err)
}

// fetchExitCode maps the outcome of a run to a process exit code. An
// interrupted run is judged like any other: it succeeds if at least one file
// is available locally.
func fetchExitCode(sum pipeline.Summary, err error) int {
	var authErr *uploader.AuthError
	switch {
	case errors.As(err, &authErr):
		return ExitStorageError
	case err != nil:
		return ExitGeneralError
	case sum.FetchSucceeded() == 0:
		fmt.Fprintln(stderr, "[tlcfetch] No file could be fetched")
		return ExitGeneralError
	}
	return ExitSuccess
}

func newUploaderFactory(cfg config.Config, log *zap.Logger, m *metrics.Metrics) pipeline.UploaderFactory {
	return func(ctx context.Context) (pipeline.Uploader, error) {
		r := resolver
		if r == nil {
			r = uploader.CloudResolver{Scheme: cfg.Scheme}
		}
		u, err := uploader.Open(ctx, r, cfg.Bucket, cfg.Credentials, uploader.Options{
			Scheme:  cfg.Scheme,
			Retries: cfg.UploadRetry.Attempts,
			Backoff: cfg.UploadRetry.Backoff,
			Logger:  log,
			Metrics: m,
		})
		if err != nil {
			return nil, err
		}
		return u, nil
	}
}
