// Package fetcher downloads single trip data files to a local directory.
//
// # Usage
//
//	f := fetcher.New(client, fetcher.Options{
//	    Retries: 3,
//	    Backoff: 5 * time.Second,
//	})
//
//	r := f.Fetch(ctx, fetcher.Job{Location: loc, Dest: "data"})
//	if !r.OK() {
//	    // r.Err is a *TransferError
//	}
//
// # Resume
//
// A file already present under its final name is treated as done and is
// not re-fetched or re-validated. Bodies are streamed into a hidden
// ".<name>.*.part" file next to the destination and renamed into place only
// after the full body was written and synced, so an interrupted transfer
// never leaves a file under the final name.
//
// # Retries
//
// Every failure (network, HTTP status, short body) is retried up to
// Options.Retries attempts in total with a fixed Options.Backoff delay.
package fetcher
