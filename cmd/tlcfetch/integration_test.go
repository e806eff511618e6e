//go:build integration

package main

import (
	"context"
	"testing"
	"time"

	"github.com/ligustah/tlcfetch/internal/testutils"
	"github.com/ligustah/tlcfetch/internal/tripdata"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	locs := []tripdata.SourceLocation{
		{Type: "yellow", Year: 2019, Month: 1},
		{Type: "yellow", Year: 2019, Month: 2},
		{Type: "green", Year: 2019, Month: 1},
		{Type: "green", Year: 2019, Month: 2},
	}

	t.Log("Starting dataset server...")
	server := testutils.StartDatasetServer(t, 1024*1024, locs...)

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "tlcfetch-test-bucket")

	dest := t.TempDir()
	args := []string{
		"--types", "yellow,green",
		"--years", "2019",
		"--months", "1-2",
		"--dest", dest,
		"--base-url", server.URL,
		"--workers", "4",
		"--scheme", "s3",
		"--gcs-bucket", minio.BucketURL,
		"--backoff", "10ms",
		"--upload-backoff", "10ms",
	}

	t.Run("fetch_and_upload", func(t *testing.T) {
		out, _ := captureOutput(t)
		exitCode := run(append([]string{"fetch", "--upload"}, args...))
		if exitCode != ExitSuccess {
			t.Fatalf("fetch failed with exit code %d", exitCode)
		}
		t.Log(out.String())
	})

	t.Run("objects_match", func(t *testing.T) {
		bkt, err := minio.OpenBucket(ctx)
		if err != nil {
			t.Fatalf("open bucket: %v", err)
		}
		defer bkt.Close()

		for _, l := range locs {
			r, err := bkt.NewReader(ctx, l.Filename(), nil)
			if err != nil {
				t.Fatalf("open %s: %v", l.Filename(), err)
			}
			testutils.CompareReaderToData(t, r, server.Data(l))
			r.Close()
		}
	})

	t.Run("verify", func(t *testing.T) {
		captureOutput(t)
		exitCode := run(append([]string{"verify", "-remote", "-source"}, args...))
		if exitCode != ExitSuccess {
			t.Fatalf("verify failed with exit code %d", exitCode)
		}
	})

	t.Run("rerun_is_cached", func(t *testing.T) {
		out, _ := captureOutput(t)
		before := server.TotalHits()
		exitCode := run(append([]string{"fetch", "--upload"}, args...))
		if exitCode != ExitSuccess {
			t.Fatalf("rerun failed with exit code %d", exitCode)
		}
		// verify -source issued HEAD requests, the rerun none
		if hits := server.TotalHits() - before; hits != 0 {
			t.Errorf("expected no requests on rerun, got %d", hits)
		}
		t.Log(out.String())
	})
}
