// Package progress reports per-job outcomes as they complete.
//
// Workers hand events to the reporter without blocking; a single goroutine
// renders them in arrival order together with a running completed/total
// count for the phase.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{Output: os.Stderr})
//	reporter.Start()
//	defer reporter.Stop()
//
//	reporter.Begin(progress.PhaseFetch, len(jobs))
//	// from workers
//	reporter.Report(progress.Event{Phase: progress.PhaseFetch, ...})
//	reporter.End(progress.PhaseFetch)
//
// # Output Format
//
//	[tlcfetch] Starting fetch: 48 jobs
//	[tlcfetch] fetch 1/48 | Downloaded: data/green_tripdata_2019-03.csv.gz (10.21 MB, 1 attempts)
//	[tlcfetch] fetch 2/48 | Failed: https://.../yellow_tripdata_2020-13.csv.gz -> ...
//	[tlcfetch] Finished fetch: 48/48 | 47 ok (12 cached) | 1 failed | 1.20 GB in 2m 3s
package progress
