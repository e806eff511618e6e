package fetcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	tlchttp "github.com/ligustah/tlcfetch/internal/http"
	"github.com/ligustah/tlcfetch/internal/metrics"
	"github.com/ligustah/tlcfetch/internal/retry"
	"github.com/ligustah/tlcfetch/internal/tripdata"
)

// Options configures the fetcher.
type Options struct {
	// Retries is the total number of attempts per file.
	// Default: 3
	Retries int

	// Backoff is the fixed delay between attempts.
	// Default: 5s
	Backoff time.Duration

	// BaseURL is the release host the locations resolve against.
	// Default: tripdata.DefaultBaseURL
	BaseURL string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Job is a single file to fetch into Dest.
type Job struct {
	Location tripdata.SourceLocation
	Dest     string
}

// Result is the outcome of one Job. Err is nil on success, in which case
// Path names the local file.
type Result struct {
	Job      Job
	URL      string
	Path     string
	Err      error
	Attempts int

	// Cached is set when the file was already present and no request was made.
	Cached bool

	// Size is the number of bytes written by this run.
	Size int64
}

// OK reports whether the job succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// TransferError is returned when every attempt to fetch a file failed.
type TransferError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Fetcher downloads trip data files to local storage.
type Fetcher struct {
	client *tlchttp.Client
	opts   Options
	log    *zap.Logger
}

// New creates a Fetcher. A nil client gets tlchttp.DefaultOptions.
func New(client *tlchttp.Client, opts Options) *Fetcher {
	if client == nil {
		client = tlchttp.NewClient(tlchttp.DefaultOptions())
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.BaseURL == "" {
		opts.BaseURL = tripdata.DefaultBaseURL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Fetcher{
		client: client,
		opts:   opts,
		log:    log.Named("fetcher"),
	}
}

// Fetch retrieves job.Location into job.Dest. An existing file with the
// target name is returned as-is. Failures are reported in the Result and
// never abort the caller.
func (f *Fetcher) Fetch(ctx context.Context, job Job) Result {
	name := job.Location.Filename()
	url := job.Location.URL(f.opts.BaseURL)
	path := filepath.Join(job.Dest, name)

	r := Result{Job: job, URL: url, Path: path}
	log := f.log.With(zap.String("url", url), zap.String("path", path))

	if _, err := os.Stat(path); err == nil {
		log.Debug("file already present, skipping")
		r.Cached = true
		f.opts.Metrics.FetchResult(metrics.OutcomeCached, 0)
		return r
	}

	attempts, err := retry.Do(ctx, f.opts.Retries, f.opts.Backoff, func(ctx context.Context, attempt int) error {
		f.opts.Metrics.FetchAttempt()
		n, err := f.fetchOnce(ctx, url, job.Dest, path)
		if err != nil {
			log.Warn("fetch attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", f.opts.Retries),
				zap.Error(err),
			)
			return err
		}
		r.Size = n
		return nil
	})
	r.Attempts = attempts

	if err != nil {
		r.Err = &TransferError{URL: url, Attempts: attempts, Err: err}
		f.opts.Metrics.FetchResult(metrics.OutcomeFailure, 0)
		return r
	}

	log.Debug("fetched", zap.Int("attempts", attempts), zap.Int64("bytes", r.Size))
	f.opts.Metrics.FetchResult(metrics.OutcomeSuccess, r.Size)
	return r
}

// fetchOnce streams url into a temporary file in dir and renames it to
// path once the body has been fully written.
func (f *Fetcher) fetchOnce(ctx context.Context, url, dir, path string) (int64, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("%w: expected %d bytes, got %d", io.ErrUnexpectedEOF, resp.ContentLength, n)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return n, fmt.Errorf("rename: %w", err)
	}
	committed = true

	return n, nil
}
