package stub

import (
	"os"
	"time"
)

// ResponseInterval controls how a StubResponse's body is delivered over
// time.
type ResponseInterval struct {
	kind       intervalKind
	delay      time.Duration
	bitsPerSec int64
}

type intervalKind int

const (
	intervalImmediate intervalKind = iota
	intervalDelay
	intervalSpeed
)

// Immediate emits the full body in one chunk.
func Immediate() ResponseInterval { return ResponseInterval{kind: intervalImmediate} }

// Delay sleeps d then emits the full body.
func Delay(d time.Duration) ResponseInterval {
	return ResponseInterval{kind: intervalDelay, delay: d}
}

// Speed slices the body and emits chunks across time so total send time ≈
// bodyBytes*8/bitsPerSecond.
func Speed(bitsPerSecond int64) ResponseInterval {
	return ResponseInterval{kind: intervalSpeed, bitsPerSec: bitsPerSecond}
}

// bodySource is the closed set of places StubResponse's body bytes may come
// from: in-memory bytes or a file on disk.
type bodySource int

const (
	bodySourceBytes bodySource = iota
	bodySourceFile
)

// StubResponse is the response a matched Stub synthesizes for one method.
type StubResponse struct {
	StatusCode int
	Headers    map[string]string
	ContentType string

	source   bodySource
	data     []byte
	filePath string

	ResponseInterval ResponseInterval

	// FailureError, when non-nil, is delivered as a transport-level error
	// instead of a body/status, skipping them entirely.
	FailureError error
}

// NewStubResponse builds a StubResponse carrying data in memory.
func NewStubResponse(statusCode int, data []byte, contentType string) StubResponse {
	return StubResponse{
		StatusCode:       statusCode,
		ContentType:      contentType,
		source:           bodySourceBytes,
		data:             data,
		ResponseInterval: Immediate(),
	}
}

// NewStubResponseString builds a StubResponse from a string body.
func NewStubResponseString(statusCode int, body, contentType string) StubResponse {
	return NewStubResponse(statusCode, []byte(body), contentType)
}

// NewStubResponseFile builds a StubResponse whose body is streamed from a
// file on disk at delivery time.
func NewStubResponseFile(statusCode int, path, contentType string) StubResponse {
	return StubResponse{
		StatusCode:       statusCode,
		ContentType:      contentType,
		source:           bodySourceFile,
		filePath:         path,
		ResponseInterval: Immediate(),
	}
}

// NewStubFailure builds a StubResponse that delivers err as a transport
// failure rather than any status/body.
func NewStubFailure(err error) StubResponse {
	return StubResponse{FailureError: err}
}

// bodyBytes resolves the response body to bytes, reading the backing file
// once if the response is file-backed.
func (s StubResponse) bodyBytes() ([]byte, error) {
	if s.source == bodySourceFile {
		return os.ReadFile(s.filePath)
	}

	return s.data, nil
}
