package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ligustah/tlcfetch/internal/config"
)

// addConfigFlags registers one flag per config key, with d supplying the
// displayed defaults, plus -config. It returns the -config value.
func addConfigFlags(fs *flag.FlagSet, d config.Config) *string {
	path := fs.String("config", "", "YAML configuration file")

	fs.String("types", strings.Join(d.Types, ","), "Comma-separated taxi types")
	fs.String("years", joinInts(d.Years), "Comma-separated years")
	fs.String("months", "1-12", "Month range (1-12) or comma-separated months")
	fs.String("dest", d.Dest, "Destination directory")
	fs.Int("workers", d.Workers, "Number of concurrent downloads")
	fs.String("base-url", d.BaseURL, "Release host the files are fetched from")
	fs.String("gcs-bucket", d.Bucket, "Bucket to upload into")
	fs.String("scheme", d.Scheme, "Storage scheme: gs, s3, file or mem")
	fs.String("gcs-creds", d.Credentials, "Service account JSON file (default: ambient credentials)")
	fs.Bool("upload", d.Upload, "Upload fetched files to the bucket")
	fs.Int("retries", d.Retry.Attempts, "Download attempts per file")
	fs.Duration("backoff", d.Retry.Backoff, "Delay between download attempts")
	fs.Int("upload-retries", d.UploadRetry.Attempts, "Upload attempts per file")
	fs.Duration("upload-backoff", d.UploadRetry.Backoff, "Delay between upload attempts")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	fs.String("metrics-addr", d.MetricsAddr, "Serve Prometheus metrics on this address")

	return path
}

// loadConfig layers defaults, the config file, TLCFETCH_* variables and the
// flags set on the command line, then validates the result.
func loadConfig(fs *flag.FlagSet, path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if setErr != nil || !slices.Contains(config.Keys, f.Name) {
			return
		}
		setErr = cfg.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return config.Config{}, setErr
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(stderr, "\n[tlcfetch] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
