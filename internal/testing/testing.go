// package testing contains shared test helpers and in-memory Skyeng and AnkiConnect servers
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"testing"
)

var (
	errWrite = errors.New("write failed")
	errRead  = errors.New("read failed")
)

// FWriter fails every write.
type FWriter struct{}

func (*FWriter) Write([]byte) (int, error) { return 0, errWrite }

// LimitedWriter forwards a fixed number of writes to its target, then fails.
type LimitedWriter struct {
	remaining int
	target    io.Writer
}

func NewLimitedWriter(writes int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{remaining: writes, target: target}
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, errors.New("write limit exceeded")
	}
	l.remaining--
	return l.target.Write(p)
}

// RoundTripFunc adapts a function to [http.RoundTripper].
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// FailingTransport fails every request with err, as a dead network would.
func FailingTransport(err error) RoundTripFunc {
	return func(*http.Request) (*http.Response, error) { return nil, err }
}

// BrokenBodyTransport answers every request with status and a body that cannot be read.
func BrokenBodyTransport(status int) RoundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: status, Header: http.Header{}, Body: brokenBody{}, Request: r}, nil
	}
}

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, errRead }
func (brokenBody) Close() error             { return nil }

// MustReadFile returns the content of path, failing the test when it cannot be read.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}
