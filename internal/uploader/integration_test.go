//go:build integration

package uploader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ligustah/tlcfetch/internal/testutils"
	"github.com/ligustah/tlcfetch/internal/uploader"
)

func TestIntegrationUploadToMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "uploader-test-bucket")

	sizes := map[string]int64{
		"yellow_tripdata_2019-01.csv.gz": 1024,
		"yellow_tripdata_2019-02.csv.gz": 1024 * 1024,
		"green_tripdata_2019-01.csv.gz":  10 * 1024 * 1024,
	}

	dir := t.TempDir()
	data := make(map[string][]byte)
	for name, size := range sizes {
		data[name] = testutils.GenerateTestData(t, size)
		if err := os.WriteFile(filepath.Join(dir, name), data[name], 0644); err != nil {
			t.Fatal(err)
		}
	}

	u, err := uploader.Open(ctx, uploader.CloudResolver{Scheme: "s3"}, minio.BucketURL, "", uploader.Options{
		Scheme:  "s3",
		Retries: 3,
		Backoff: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer u.Close()

	var wg sync.WaitGroup
	results := make(chan uploader.Result, len(sizes))
	for name := range sizes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- u.Upload(ctx, uploader.Job{Path: filepath.Join(dir, name), Bucket: minio.BucketURL})
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		if !r.OK() {
			t.Errorf("upload %s: %v", r.Job.Path, r.Err)
			continue
		}
		want := "s3://" + minio.Bucket + "/" + filepath.Base(r.Job.Path)
		if r.URI != want {
			t.Errorf("expected URI %s, got %s", want, r.URI)
		}
	}

	bkt, err := minio.OpenBucket(ctx)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bkt.Close()

	for name, want := range data {
		r, err := bkt.NewReader(ctx, name, nil)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		testutils.CompareReaderToData(t, r, want)
		r.Close()
	}
}

func TestIntegrationMissingBucketIsAuthError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	minio := testutils.StartMinioContainer(t, ctx, "present-bucket")

	missing := "s3://absent-bucket?endpoint=http://" + minio.Endpoint + "&use_path_style=true&disable_https=true&region=us-east-1"
	_, err := uploader.Open(ctx, uploader.CloudResolver{Scheme: "s3"}, missing, "", uploader.Options{})

	var authErr *uploader.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}
