// Package testutils provides shared test infrastructure.
package testutils

import (
	"bytes"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/ligustah/tlcfetch/internal/tripdata"
)

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 256)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// DatasetServer serves trip data files laid out as /<type>/<filename>, the
// way the release host does, and counts requests per path.
type DatasetServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	fails map[string]int
	hits  map[string]int
	total int
}

// StartDatasetServer starts a server publishing every location in locs with
// size bytes of generated content.
func StartDatasetServer(t *testing.T, size int64, locs ...tripdata.SourceLocation) *DatasetServer {
	t.Helper()

	s := &DatasetServer{
		files: make(map[string][]byte),
		fails: make(map[string]int),
		hits:  make(map[string]int),
	}
	for _, l := range locs {
		s.files[Path(l)] = GenerateTestData(t, size)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Path returns the request path a location is served under.
func Path(l tripdata.SourceLocation) string {
	return "/" + l.Type + "/" + l.Filename()
}

// Data returns the content published for l.
func (s *DatasetServer) Data(l tripdata.SourceLocation) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[Path(l)]
}

// FailFirst makes the next n GET requests for l answer 503.
func (s *DatasetServer) FailFirst(l tripdata.SourceLocation, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[Path(l)] = n
}

// Hits returns the number of requests made for l.
func (s *DatasetServer) Hits(l tripdata.SourceLocation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[Path(l)]
}

// TotalHits returns the number of requests made for any path.
func (s *DatasetServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *DatasetServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.total++
	s.hits[r.URL.Path]++
	data, ok := s.files[r.URL.Path]
	fail := r.Method == http.MethodGet && s.fails[r.URL.Path] > 0
	if fail {
		s.fails[r.URL.Path]--
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Type", "application/gzip")
	if r.Method == http.MethodHead {
		return
	}
	w.Write(data)
}

// CompareReaderToData compares reader output with expected data in chunks.
// This is memory-efficient for large files.
func CompareReaderToData(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()

	chunkSize := 1024 * 1024 // 1MB
	buf := make([]byte, chunkSize)
	offset := 0

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("read more data than expected: offset=%d, n=%d, expected len=%d",
					offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete read: got %d bytes, want %d", offset, len(expected))
	}
}
