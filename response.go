package realhttp

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"sort"
	"time"
)

// StatusCode wraps an HTTP status with an explicit "none" state, so a
// Response produced before any byte came back over the wire (e.g. a
// build-time failure) is distinguishable from one that legitimately
// received a 2xx.
type StatusCode struct {
	value int
	set   bool
}

// NoStatus is the zero StatusCode: no response was ever received.
var NoStatus = StatusCode{}

// Status wraps a concrete HTTP status code.
func Status(code int) StatusCode {
	return StatusCode{value: code, set: true}
}

// IsNone reports whether no status was ever recorded.
func (s StatusCode) IsNone() bool {
	return !s.set
}

// Int returns the numeric status, or 0 if IsNone.
func (s StatusCode) Int() int {
	return s.value
}

// Metrics carries timing/size information about one attempt.
type Metrics struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	BytesSent      int64
	BytesReceived  int64
	RedirectCount  int
}

// Duration returns FinishedAt - StartedAt, or 0 if either is zero.
func (m Metrics) Duration() time.Duration {
	if m.StartedAt.IsZero() || m.FinishedAt.IsZero() {
		return 0
	}

	return m.FinishedAt.Sub(m.StartedAt)
}

// Response is the result of one fetch: either a successfully validated
// response, or one carrying an *Error. IsError() is true iff Error is
// non-nil; DataFileURL is non-empty only when the originating request used
// TransferLargeData; a 2xx StatusCode does not by itself imply Error == nil
// (validators may synthesize one).
type Response struct {
	StatusCode StatusCode
	Headers    Headers

	// data holds the in-memory body. Mutually exclusive with dataFilePath
	// in practice (one or the other is populated), though nothing enforces
	// that beyond convention.
	data         []byte
	dataFilePath string

	Metrics Metrics
	Error   *Error

	// OriginalRequest / CurrentRequest link back to both the original and
	// current (post-redirect) transport requests. These are plain
	// back-references, never ownership.
	OriginalRequest *Request
	CurrentRequest  *Request
}

// IsError reports whether this response carries a non-nil Error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// Data returns the response body bytes, reading them from the staged file
// when the transfer used TransferLargeData. Reading Data for a
// file-backed response yields the file contents byte-for-byte.
func (r *Response) Data() ([]byte, error) {
	if r.dataFilePath == "" {
		return r.data, nil
	}

	data, err := os.ReadFile(r.dataFilePath)
	if err != nil {
		return nil, NewError(CategoryInternal, "reading staged download file", err)
	}

	return data, nil
}

// DataFileURL returns the file:// path of the staged download, or "" when
// the response body was kept in memory.
func (r *Response) DataFileURL() string {
	if r.dataFilePath == "" {
		return ""
	}

	return "file://" + r.dataFilePath
}

// Open returns an io.ReadCloser over the response body, preferring the
// staged file (to avoid loading large downloads fully into memory) and
// falling back to the in-memory bytes.
func (r *Response) Open() (io.ReadCloser, error) {
	if r.dataFilePath != "" {
		f, err := os.Open(r.dataFilePath)
		if err != nil {
			return nil, NewError(CategoryInternal, "opening staged download file", err)
		}

		return f, nil
	}

	return io.NopCloser(bytes.NewReader(r.data)), nil
}

// headersFromHTTP converts a stdlib http.Header into our ordered Headers,
// sorted by textproto canonical key order (http.Header has no inherent
// order so this is the best stability available from it).
func headersFromHTTP(h http.Header) Headers {
	out := NewHeaders()

	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		for _, v := range h[name] {
			out.Add(name, v)
		}
	}

	return out
}

// applyToHTTP sets h's headers onto req, in order.
func (h Headers) applyToHTTP(req *http.Request) {
	for _, name := range h.order {
		for _, v := range h.values[name] {
			req.Header.Add(name, v)
		}
	}
}
