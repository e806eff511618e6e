package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/tlcfetch/internal/metrics"
	"github.com/ligustah/tlcfetch/internal/retry"
)

// Options configures the uploader.
type Options struct {
	// Scheme is used to build object URIs, e.g. gs.
	// Default: gs
	Scheme string

	// Retries is the total number of attempts per file.
	// Default: 3
	Retries int

	// Backoff is the fixed delay between attempts.
	// Default: 5s
	Backoff time.Duration

	// ContentType is set on every object.
	// Default: application/gzip
	ContentType string

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Job is a local file to copy into Bucket.
type Job struct {
	Path   string
	Bucket string
}

// Result is the outcome of one Job. Err is nil on success, in which case
// URI names the stored object.
type Result struct {
	Job      Job
	URI      string
	Err      error
	Attempts int
	Size     int64
}

// OK reports whether the job succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// UploadError is returned when every attempt to upload a file failed.
type UploadError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s failed after %d attempts: %v", e.Path, e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Uploader copies local files into a bucket. It is safe for concurrent use.
type Uploader struct {
	bucket *blob.Bucket
	opts   Options
	log    *zap.Logger
}

// New creates an Uploader writing to bucket.
func New(bucket *blob.Bucket, opts Options) *Uploader {
	if opts.Scheme == "" {
		opts.Scheme = "gs"
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/gzip"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Uploader{
		bucket: bucket,
		opts:   opts,
		log:    log.Named("uploader"),
	}
}

// Open resolves the bucket through r and returns an Uploader for it.
func Open(ctx context.Context, r Resolver, bucket, credentials string, opts Options) (*Uploader, error) {
	bkt, err := r.Resolve(ctx, bucket, credentials)
	if err != nil {
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			err = &AuthError{Bucket: bucket, Err: err}
		}
		return nil, err
	}
	return New(bkt, opts), nil
}

// Close releases the bucket handle.
func (u *Uploader) Close() error {
	return u.bucket.Close()
}

// Upload stores job.Path under its basename. Failures are reported in the
// Result; a permission failure is an *AuthError and is not retried.
func (u *Uploader) Upload(ctx context.Context, job Job) Result {
	key := filepath.Base(job.Path)
	r := Result{Job: job}
	log := u.log.With(zap.String("path", job.Path), zap.String("key", key))

	attempts, err := retry.Do(ctx, u.opts.Retries, u.opts.Backoff, func(ctx context.Context, attempt int) error {
		u.opts.Metrics.UploadAttempt()
		n, err := u.uploadOnce(ctx, job.Path, key)
		if err != nil {
			log.Warn("upload attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", u.opts.Retries),
				zap.Error(err),
			)
			if gcerrors.Code(err) == gcerrors.PermissionDenied {
				return retry.Permanent(&AuthError{Bucket: job.Bucket, Err: err})
			}
			return err
		}
		r.Size = n
		return nil
	})
	r.Attempts = attempts

	if err != nil {
		r.Err = &UploadError{Path: job.Path, Attempts: attempts, Err: err}
		u.opts.Metrics.UploadResult(metrics.OutcomeFailure, 0)
		return r
	}

	r.URI = ObjectURI(u.opts.Scheme, job.Bucket, key)
	log.Debug("uploaded", zap.String("uri", r.URI), zap.Int("attempts", attempts))
	u.opts.Metrics.UploadResult(metrics.OutcomeSuccess, r.Size)
	return r
}

func (u *Uploader) uploadOnce(ctx context.Context, path, key string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	// Cancelling the writer's context aborts the upload without
	// committing a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := u.bucket.NewWriter(wctx, key, &blob.WriterOptions{
		ContentType: u.opts.ContentType,
	})
	if err != nil {
		return 0, fmt.Errorf("new writer: %w", err)
	}

	n, err := io.Copy(w, f)
	if err != nil {
		cancel()
		w.Close()
		return n, fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("close: %w", err)
	}
	return n, nil
}

// ObjectURI returns <scheme>://<bucket>/<key>. A bucket given as a full
// gocloud URL keeps its own scheme and loses its query parameters.
func ObjectURI(scheme, bucket, key string) string {
	if strings.Contains(bucket, "://") {
		if u, err := url.Parse(bucket); err == nil {
			return u.Scheme + "://" + strings.TrimSuffix(u.Host+u.Path, "/") + "/" + key
		}
	}
	return scheme + "://" + strings.TrimSuffix(bucket, "/") + "/" + key
}
