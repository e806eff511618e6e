// Package http provides the HTTP transport used to fetch dataset files.
//
// This package handles:
//   - Connection pooling shared by all fetch workers
//   - HEAD requests to get file metadata
//   - GET requests returning a streaming body
//   - Mapping status codes to sentinel errors
//
// Every call is a single attempt; callers wrap it in their own retry loop.
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	resp, err := client.Get(ctx, url)
//	if err != nil {
//	    // errors.Is(err, http.ErrNotFound), ...
//	}
//	defer resp.Body.Close()
package http
