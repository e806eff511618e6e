package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{256 * 1024 * 1024, "256.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1024 * 1024 * 1024 * 1024, "1.00 TB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.input)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.input); got != tt.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestReporterRendersEvents(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(Options{Output: &out})
	reporter.Start()

	reporter.Begin(PhaseFetch, 3)
	reporter.Report(Event{Phase: PhaseFetch, Source: "https://example.com/green/a.csv.gz", Target: "data/a.csv.gz", Attempts: 1, Bytes: 2048})
	reporter.Report(Event{Phase: PhaseFetch, Source: "https://example.com/green/b.csv.gz", Err: errors.New("http: resource not found")})
	reporter.Report(Event{Phase: PhaseFetch, Target: "data/c.csv.gz", Cached: true})
	reporter.End(PhaseFetch)

	reporter.Begin(PhaseUpload, 1)
	reporter.Report(Event{Phase: PhaseUpload, Source: "data/a.csv.gz", Target: "gs://bucket/a.csv.gz"})
	reporter.End(PhaseUpload)

	reporter.Stop()

	output := out.String()
	for _, want := range []string{
		"Starting fetch: 3 jobs",
		"fetch 1/3 | Downloaded: data/a.csv.gz (2.00 KB, 1 attempts)",
		"fetch 2/3 | Failed: https://example.com/green/b.csv.gz -> http: resource not found",
		"fetch 3/3 | Already present: data/c.csv.gz",
		"Finished fetch: 3/3 | 2 ok (1 cached) | 1 failed",
		"upload 1/1 | Uploaded data/a.csv.gz -> gs://bucket/a.csv.gz",
		"Finished upload: 1/1 | 1 ok (0 cached) | 0 failed",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
}

func TestReporterUploadFailureLine(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(Options{Output: &out})
	reporter.Start()
	reporter.Begin(PhaseUpload, 1)
	reporter.Report(Event{Phase: PhaseUpload, Source: "data/a.csv.gz", Err: errors.New("denied")})
	reporter.Stop()

	if !strings.Contains(out.String(), "Upload failed data/a.csv.gz -> denied") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestReporterNeverBlocks(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(Options{Output: &out, Buffer: 2})

	// Not started: the queue fills and further events are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			reporter.Report(Event{Phase: PhaseFetch, Target: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report blocked")
	}

	if reporter.Dropped() != 8 {
		t.Errorf("expected 8 dropped events, got %d", reporter.Dropped())
	}

	reporter.Stop()
	if !strings.Contains(out.String(), "8 progress events dropped") {
		t.Errorf("expected dropped count in output:\n%s", out.String())
	}
}

func TestReporterPhaseLineCountsDropped(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(Options{Output: &out, Buffer: 2})

	reporter.Begin(PhaseFetch, 3)
	for i := 0; i < 3; i++ {
		reporter.Report(Event{Phase: PhaseFetch, Target: "x", Attempts: 1})
	}
	reporter.Start()
	reporter.End(PhaseFetch)
	reporter.Stop()

	if !strings.Contains(out.String(), "Finished fetch: 1/3 (2 not shown) | 1 ok") {
		t.Errorf("expected dropped events in phase line:\n%s", out.String())
	}
}

func TestReporterStopIdempotent(t *testing.T) {
	reporter := NewReporter(Options{Output: &bytes.Buffer{}})
	reporter.Start()
	reporter.Stop()
	reporter.Stop()

	// Reports after Stop are ignored.
	reporter.Report(Event{Phase: PhaseFetch})
}

func TestNilReporter(t *testing.T) {
	var reporter *Reporter
	reporter.Start()
	reporter.Begin(PhaseFetch, 1)
	reporter.Report(Event{Phase: PhaseFetch})
	reporter.End(PhaseFetch)
	reporter.Stop()
	if reporter.Dropped() != 0 {
		t.Error("expected 0 dropped for nil reporter")
	}
}
