// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
)

// MinimalComposition is a small, valid animation document.
const MinimalComposition = `{"v":"5.7.4","nm":"minimal","fr":30,"ip":0,"op":30,"w":100,"h":100,"layers":[{"ty":4,"nm":"dot","shapes":[]}],"markers":[{"cm":"all","tm":0,"dr":30}]}`

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// TruncatedBody yields prefix and then fails, like a connection dropped mid-transfer.
// Close calls are counted.
type TruncatedBody struct {
	prefix []byte
	sent   bool
	Closes atomic.Int32
}

func NewTruncatedBody(prefix string) *TruncatedBody {
	return &TruncatedBody{prefix: []byte(prefix)}
}

func (b *TruncatedBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, b.prefix), nil
	}
	return 0, errors.New("connection reset by peer")
}

func (b *TruncatedBody) Close() error {
	b.Closes.Add(1)
	return nil
}

// CountingServer serves a fixed body and counts requests per path.
type CountingServer struct {
	*httptest.Server
	mu     sync.Mutex
	hits   map[string]int
	status int
	body   string
	gate   chan struct{}
}

// NewCountingServer starts a server answering every GET with status and body.
func NewCountingServer(t *testing.T, status int, body string) *CountingServer {
	t.Helper()
	cs := &CountingServer{hits: make(map[string]int), status: status, body: body}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.hits[r.URL.Path]++
		gate := cs.gate
		cs.mu.Unlock()

		if gate != nil {
			<-gate
		}
		w.WriteHeader(cs.status)
		io.WriteString(w, cs.body)
	}))
	t.Cleanup(cs.Close)
	return cs
}

// Hold makes requests block until the returned release func is called.
func (cs *CountingServer) Hold() (release func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	gate := make(chan struct{})
	cs.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Hits returns the request count for path.
func (cs *CountingServer) Hits(path string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hits[path]
}

// Total returns the request count across all paths.
func (cs *CountingServer) Total() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n := 0
	for _, h := range cs.hits {
		n += h
	}
	return n
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustReadAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
