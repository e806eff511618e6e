package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ligustah/tlcfetch/internal/fetcher"
	"github.com/ligustah/tlcfetch/internal/metrics"
	"github.com/ligustah/tlcfetch/internal/progress"
	"github.com/ligustah/tlcfetch/internal/tripdata"
	"github.com/ligustah/tlcfetch/internal/uploader"
)

// MaxUploadWorkers caps the upload pool.
const MaxUploadWorkers = 8

// Fetcher fetches a single file.
type Fetcher interface {
	Fetch(ctx context.Context, job fetcher.Job) fetcher.Result
}

// Uploader uploads a single file. Close is called once the upload phase is
// over.
type Uploader interface {
	Upload(ctx context.Context, job uploader.Job) uploader.Result
	Close() error
}

// UploaderFactory resolves storage for the upload phase. It is only called
// when uploads are enabled and the fetch phase produced at least one file.
type UploaderFactory func(ctx context.Context) (Uploader, error)

// Options configures a run.
type Options struct {
	Types  []string
	Years  []int
	Months []int

	// Dest is the destination directory shared by all fetch workers.
	Dest string

	// FetchWorkers bounds the fetch pool.
	// Default: 6
	FetchWorkers int

	// Upload enables the upload phase.
	Upload bool

	// Bucket is recorded on every upload job.
	Bucket string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total        int
	Fetched      int
	Cached       int
	FetchFailed  int
	Uploaded     int
	UploadFailed int

	// Skipped counts jobs that never started because the run was cancelled
	// or the upload phase was abandoned.
	Skipped int

	FetchResults  []fetcher.Result
	UploadResults []uploader.Result
}

// FetchSucceeded returns the number of files available locally.
func (s Summary) FetchSucceeded() int {
	return s.Fetched + s.Cached
}

func (s Summary) String() string {
	out := fmt.Sprintf("fetched=%d, cached=%d, failed-to-fetch=%d, uploaded=%d, failed-to-upload=%d",
		s.Fetched, s.Cached, s.FetchFailed, s.Uploaded, s.UploadFailed)
	if s.Skipped > 0 {
		out += fmt.Sprintf(", skipped=%d", s.Skipped)
	}
	return out
}

// Coordinator runs the fetch phase and, when enabled, the upload phase.
type Coordinator struct {
	opts      Options
	fetcher   Fetcher
	uploaders UploaderFactory
	reporter  *progress.Reporter
	log       *zap.Logger
}

// New creates a Coordinator. uploaders may be nil when opts.Upload is false.
func New(opts Options, f Fetcher, uploaders UploaderFactory, reporter *progress.Reporter) *Coordinator {
	if opts.FetchWorkers <= 0 {
		opts.FetchWorkers = 6
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Coordinator{
		opts:      opts,
		fetcher:   f,
		uploaders: uploaders,
		reporter:  reporter,
		log:       log.Named("pipeline"),
	}
}

// UploadWorkers returns min(8, max(1, fetchWorkers)).
func UploadWorkers(fetchWorkers int) int {
	return min(MaxUploadWorkers, max(1, fetchWorkers))
}

// Run executes both phases. Job failures are recorded in the Summary; the
// returned error is a *tripdata.ConfigurationError for bad input or an
// *uploader.AuthError when the upload phase had to be abandoned.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	locs, err := tripdata.Generate(c.opts.Types, c.opts.Years, c.opts.Months)
	if err != nil {
		return sum, err
	}
	if unique := tripdata.Unique(locs); len(unique) < len(locs) {
		c.log.Info("dropping duplicate locations", zap.Int("duplicates", len(locs)-len(unique)))
		locs = unique
	}
	sum.Total = len(locs)

	jobs := make([]fetcher.Job, len(locs))
	for i, l := range locs {
		jobs[i] = fetcher.Job{Location: l, Dest: c.opts.Dest}
	}

	c.log.Info("starting fetch phase",
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", c.opts.FetchWorkers),
		zap.String("dest", c.opts.Dest),
	)
	c.reporter.Begin(progress.PhaseFetch, len(jobs))
	sum.FetchResults, sum.Skipped = runPool(ctx, c.opts.FetchWorkers, jobs, func(ctx context.Context, job fetcher.Job) (fetcher.Result, error) {
		defer c.opts.Metrics.Track(string(progress.PhaseFetch))()
		r := c.fetcher.Fetch(ctx, job)
		c.reporter.Report(progress.Event{
			Phase:    progress.PhaseFetch,
			Source:   r.URL,
			Target:   r.Path,
			Err:      r.Err,
			Attempts: r.Attempts,
			Cached:   r.Cached,
			Bytes:    r.Size,
		})
		return r, nil
	})
	c.reporter.End(progress.PhaseFetch)

	var paths []string
	for _, r := range sum.FetchResults {
		switch {
		case r.Err != nil:
			sum.FetchFailed++
		case r.Cached:
			sum.Cached++
			paths = append(paths, r.Path)
		default:
			sum.Fetched++
			paths = append(paths, r.Path)
		}
	}
	c.log.Info("fetch phase complete",
		zap.Int("fetched", sum.Fetched),
		zap.Int("cached", sum.Cached),
		zap.Int("failed", sum.FetchFailed),
		zap.Int("skipped", sum.Skipped),
	)

	if !c.opts.Upload {
		return sum, nil
	}
	if ctx.Err() != nil {
		return sum, nil
	}
	if len(paths) == 0 {
		c.log.Info("no files to upload")
		return sum, nil
	}

	return c.upload(ctx, sum, paths)
}

func (c *Coordinator) upload(ctx context.Context, sum Summary, paths []string) (Summary, error) {
	if c.uploaders == nil {
		return sum, errors.New("pipeline: upload enabled without an uploader")
	}
	up, err := c.uploaders(ctx)
	if err != nil {
		c.log.Error("cannot resolve storage, skipping upload phase", zap.Error(err))
		return sum, err
	}
	defer up.Close()

	jobs := make([]uploader.Job, len(paths))
	for i, p := range paths {
		jobs[i] = uploader.Job{Path: p, Bucket: c.opts.Bucket}
	}

	workers := UploadWorkers(c.opts.FetchWorkers)
	c.log.Info("starting upload phase",
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", workers),
		zap.String("bucket", c.opts.Bucket),
	)

	var (
		authOnce sync.Once
		authErr  *uploader.AuthError
	)
	c.reporter.Begin(progress.PhaseUpload, len(jobs))
	results, skipped := runPool(ctx, workers, jobs, func(ctx context.Context, job uploader.Job) (uploader.Result, error) {
		defer c.opts.Metrics.Track(string(progress.PhaseUpload))()
		r := up.Upload(ctx, job)
		c.reporter.Report(progress.Event{
			Phase:    progress.PhaseUpload,
			Source:   job.Path,
			Target:   r.URI,
			Err:      r.Err,
			Attempts: r.Attempts,
			Bytes:    r.Size,
		})

		var ae *uploader.AuthError
		if errors.As(r.Err, &ae) {
			authOnce.Do(func() { authErr = ae })
			// stops further submissions
			return r, ae
		}
		return r, nil
	})
	c.reporter.End(progress.PhaseUpload)

	sum.UploadResults = results
	sum.Skipped += skipped
	for _, r := range results {
		if r.Err != nil {
			sum.UploadFailed++
		} else {
			sum.Uploaded++
		}
	}
	c.log.Info("upload phase complete",
		zap.Int("uploaded", sum.Uploaded),
		zap.Int("failed", sum.UploadFailed),
		zap.Int("skipped", skipped),
	)

	if authErr != nil {
		return sum, authErr
	}
	return sum, nil
}

// runPool runs fn over jobs with at most workers concurrent calls and
// returns results in completion order. Once ctx is cancelled or fn returns
// an error no further job is started; the number of jobs that never started
// is returned as skipped.
func runPool[J, R any](ctx context.Context, workers int, jobs []J, fn func(context.Context, J) (R, error)) (results []R, skipped int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu      sync.Mutex
		pending atomic.Int64
	)
	results = make([]R, 0, len(jobs))

	for i, job := range jobs {
		if gctx.Err() != nil {
			pending.Add(int64(len(jobs) - i))
			break
		}
		g.Go(func() error {
			// A slot may free up only after the group was cancelled.
			if gctx.Err() != nil {
				pending.Add(1)
				return nil
			}
			// In-flight jobs keep the parent context so an aborted pool
			// does not cut off transfers that already started.
			r, err := fn(ctx, job)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return err
		})
	}
	g.Wait()

	return results, int(pending.Load())
}
