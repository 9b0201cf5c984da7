package stub

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportRoundTripReturnsStubbedResponse(t *testing.T) {
	s := New()
	s.Enable()
	s.Add(NewStub("hello", NewStubResponseString(200, "hello", "text/plain"), URLRegex(".*")))

	transport := NewTransport(nil, s)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/a", nil)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestTransportRoundTripPassesThroughWhenDisabled(t *testing.T) {
	s := New()
	s.Add(NewStub("hello", NewStubResponseString(200, "hello", "text/plain"), URLRegex(".*")))

	var passedThrough bool
	base := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		passedThrough = true

		return &http.Response{StatusCode: 201, Body: http.NoBody, Header: http.Header{}}, nil
	})

	transport := NewTransport(base, s)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/a", nil)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	assert.True(t, passedThrough)
	assert.Equal(t, 201, resp.StatusCode)
}

func TestTransportRoundTripReturnsErrUnhandledOnNoMatch(t *testing.T) {
	s := New()
	s.Enable()

	transport := NewTransport(nil, s)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/a", nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	assert.ErrorIs(t, err, ErrUnhandled)
}

func TestTransportCapturePreservesBodyForPassThrough(t *testing.T) {
	s := New()
	s.Enable()
	s.SetUnhandledMode(OptIn)

	var gotBody []byte
	base := roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		gotBody, _ = io.ReadAll(req.Body)

		return &http.Response{StatusCode: 200, Body: http.NoBody, Header: http.Header{}}, nil
	})

	transport := NewTransport(base, s)

	req, err := http.NewRequest(http.MethodPost, "https://api.example.com/a", stringReadCloser("original body"))
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "original body", string(gotBody))
}

func TestTransportDeliversWithSpeedThrottling(t *testing.T) {
	s := New()
	s.Enable()

	resp := NewStubResponse(200, make([]byte, 8192), "application/octet-stream")
	resp.ResponseInterval = Speed(8192 * 8 * 20) // the whole 8192-byte body in ~1/20 s, fast enough for a unit test
	s.Add(NewStub("slow", resp, URLRegex(".*")))

	transport := NewTransport(nil, s)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/a", nil)
	require.NoError(t, err)

	start := time.Now()

	httpResp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	require.NoError(t, err)
	assert.Len(t, data, 8192)
	assert.GreaterOrEqual(t, time.Since(start), time.Duration(0))
}

func TestTransportDeliversFailureError(t *testing.T) {
	s := New()
	s.Enable()
	s.Add(NewStub("fail", NewStubFailure(assertErr("connection reset")), URLRegex(".*")))

	transport := NewTransport(nil, s)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/a", nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	require.Error(t, err)
	assert.Equal(t, "connection reset", err.Error())
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

type stringReader struct {
	s   string
	pos int
}

func stringReadCloser(s string) io.ReadCloser {
	return io.NopCloser(&stringReader{s: s})
}

func (r *stringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}

	n := copy(p, r.s[r.pos:])
	r.pos += n

	return n, nil
}
