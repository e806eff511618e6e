package uploader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcp"
	"golang.org/x/oauth2/google"

	// Registered URL schemes.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

const gcsReadWriteScope = "https://www.googleapis.com/auth/devstorage.read_write"

// AuthError is returned when a storage client cannot be obtained or the
// store rejects the caller's identity. Retrying cannot fix it.
type AuthError struct {
	Bucket string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("storage auth for bucket %q: %v", e.Bucket, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Resolver opens a bucket handle, optionally with an explicit credentials
// reference. An empty reference means the ambient identity.
type Resolver interface {
	Resolve(ctx context.Context, bucket, credentials string) (*blob.Bucket, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, bucket, credentials string) (*blob.Bucket, error)

func (f ResolverFunc) Resolve(ctx context.Context, bucket, credentials string) (*blob.Bucket, error) {
	return f(ctx, bucket, credentials)
}

// CloudResolver opens buckets through gocloud URL schemes (gs, s3, file,
// mem). Explicit credentials are supported for gs only and name a service
// account JSON file.
type CloudResolver struct {
	Scheme string
}

// Resolve implements Resolver. Every failure is an *AuthError.
func (r CloudResolver) Resolve(ctx context.Context, bucket, credentials string) (*blob.Bucket, error) {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "gs"
	}

	var (
		bkt *blob.Bucket
		err error
	)
	if credentials == "" {
		bkt, err = blob.OpenBucket(ctx, BucketURL(scheme, bucket))
	} else {
		bkt, err = openGCSWithCredentials(ctx, scheme, bucket, credentials)
	}
	if err != nil {
		return nil, &AuthError{Bucket: bucket, Err: err}
	}

	ok, err := bkt.IsAccessible(ctx)
	if err != nil {
		bkt.Close()
		return nil, &AuthError{Bucket: bucket, Err: err}
	}
	if !ok {
		bkt.Close()
		return nil, &AuthError{Bucket: bucket, Err: fmt.Errorf("bucket is not accessible")}
	}

	return bkt, nil
}

func openGCSWithCredentials(ctx context.Context, scheme, bucket, path string) (*blob.Bucket, error) {
	if scheme != "gs" {
		return nil, fmt.Errorf("credentials file is only supported for gs, not %s", scheme)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, gcsReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return gcsblob.OpenBucket(ctx, client, bucket, nil)
}

// BucketURL joins scheme and bucket into a gocloud URL, e.g. gs://name.
// Buckets that already carry a scheme are returned unchanged.
func BucketURL(scheme, bucket string) string {
	if strings.Contains(bucket, "://") {
		return bucket
	}
	return scheme + "://" + bucket
}
