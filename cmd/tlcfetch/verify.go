package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/errgroup"

	"github.com/ligustah/tlcfetch/internal/config"
	tlchttp "github.com/ligustah/tlcfetch/internal/http"
	"github.com/ligustah/tlcfetch/internal/tripdata"
	"github.com/ligustah/tlcfetch/internal/uploader"
)

// fileCheck is the verification outcome for one location.
type fileCheck struct {
	Location  tripdata.SourceLocation
	LocalSize int64
	Problems  []string

	missingLocal  bool
	missingRemote bool
	sizeMismatch  bool
}

// verifyResult aggregates the checks of a verify run.
type verifyResult struct {
	Files          int
	MissingLocal   int
	MissingRemote  int
	SizeMismatches int
	Errors         []string
}

func (r verifyResult) Valid() bool {
	return r.MissingLocal == 0 && r.MissingRemote == 0 && r.SizeMismatches == 0 && len(r.Errors) == 0
}

// runVerify checks that every selected file is present in the destination
// directory and, optionally, in the bucket and at the same size as upstream.
// Nothing is downloaded.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := addConfigFlags(fs, config.Default())
	remote := fs.Bool("remote", false, "Also check that each file exists in the bucket with the same size")
	source := fs.Bool("source", false, "Also compare local sizes with the release host (HEAD requests)")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: tlcfetch verify [options]

Verify that every selected trip data file exists in the destination
directory. With -remote, check the bucket as well; with -source, compare
local sizes against the release host.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(fs, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	locs, err := tripdata.Generate(cfg.Types, cfg.Years, cfg.Months)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	locs = tripdata.Unique(locs)

	ctx, cancel := signalContext()
	defer cancel()

	var bkt *blob.Bucket
	if *remote {
		r := resolver
		if r == nil {
			r = uploader.CloudResolver{Scheme: cfg.Scheme}
		}
		bkt, err = r.Resolve(ctx, cfg.Bucket, cfg.Credentials)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening bucket: %v\n", err)
			return ExitStorageError
		}
		defer bkt.Close()
	}

	var client *tlchttp.Client
	if *source {
		client = tlchttp.NewClient(tlchttp.DefaultOptions())
	}

	result := verifyFiles(ctx, locs, cfg, bkt, client)

	fmt.Fprintf(stdout, "Directory: %s\n", cfg.Dest)
	fmt.Fprintf(stdout, "Files: %d\n", result.Files)

	if result.Valid() {
		fmt.Fprintln(stdout, "Status: VALID")
		return ExitSuccess
	}

	fmt.Fprintln(stdout, "Status: INVALID")
	fmt.Fprintf(stdout, "Missing locally: %d\n", result.MissingLocal)
	if *remote {
		fmt.Fprintf(stdout, "Missing in bucket: %d\n", result.MissingRemote)
	}
	fmt.Fprintf(stdout, "Size mismatches: %d\n", result.SizeMismatches)

	if len(result.Errors) > 0 {
		fmt.Fprintln(stdout, "\nErrors:")
		for _, e := range result.Errors {
			fmt.Fprintf(stdout, "  - %s\n", e)
		}
	}

	return ExitValidationFailed
}

// verifyFiles checks every location with at most cfg.Workers checks in
// flight. bkt and client are optional.
func verifyFiles(ctx context.Context, locs []tripdata.SourceLocation, cfg config.Config, bkt *blob.Bucket, client *tlchttp.Client) verifyResult {
	checks := make([]fileCheck, len(locs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))
	for i, loc := range locs {
		g.Go(func() error {
			checks[i] = checkFile(ctx, loc, cfg, bkt, client)
			return nil
		})
	}
	g.Wait()

	result := verifyResult{Files: len(locs)}
	for _, c := range checks {
		if c.missingLocal {
			result.MissingLocal++
		}
		if c.missingRemote {
			result.MissingRemote++
		}
		if c.sizeMismatch {
			result.SizeMismatches++
		}
		result.Errors = append(result.Errors, c.Problems...)
	}
	return result
}

func checkFile(ctx context.Context, loc tripdata.SourceLocation, cfg config.Config, bkt *blob.Bucket, client *tlchttp.Client) fileCheck {
	c := fileCheck{Location: loc, LocalSize: -1}
	name := loc.Filename()
	problem := func(format string, args ...any) {
		c.Problems = append(c.Problems, name+": "+fmt.Sprintf(format, args...))
	}

	info, err := os.Stat(filepath.Join(cfg.Dest, name))
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.missingLocal = true
		problem("missing locally")
	case err != nil:
		problem("stat: %v", err)
	default:
		c.LocalSize = info.Size()
	}

	if bkt != nil {
		attrs, err := bkt.Attributes(ctx, name)
		switch {
		case gcerrors.Code(err) == gcerrors.NotFound:
			c.missingRemote = true
			problem("missing in bucket %s", cfg.Bucket)
		case err != nil:
			problem("bucket attributes: %v", err)
		case c.LocalSize >= 0 && attrs.Size != c.LocalSize:
			c.sizeMismatch = true
			problem("bucket size %d, local size %d", attrs.Size, c.LocalSize)
		}
	}

	if client != nil && c.LocalSize >= 0 {
		fi, err := client.Head(ctx, loc.URL(cfg.BaseURL))
		switch {
		case err != nil:
			problem("source: %v", err)
		case fi.Size >= 0 && fi.Size != c.LocalSize:
			c.sizeMismatch = true
			problem("source size %d, local size %d", fi.Size, c.LocalSize)
		}
	}

	return c
}
