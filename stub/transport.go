package stub

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that intercepts outbound requests
// against a Stubber before any network I/O, when the Stubber is enabled.
// It follows the common net/http.RoundTripper-wrapping pattern: a base
// RoundTripper embedded and delegated to on pass-through.
type Transport struct {
	http.RoundTripper

	stubber *Stubber
}

// NewTransport wraps base (http.DefaultTransport if nil) with interception
// against stubber. Requests the stubber does not intercept (disabled,
// pass-through, ignore rule match) are forwarded to base unchanged.
func NewTransport(base http.RoundTripper, stubber *Stubber) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &Transport{RoundTripper: base, stubber: stubber}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.stubber.IsEnabled() {
		return t.RoundTripper.RoundTrip(req)
	}

	captured, err := capture(req)
	if err != nil {
		return nil, err
	}

	result := t.stubber.lookup(captured)

	if result.passThrough {
		return t.RoundTripper.RoundTrip(req)
	}

	if result.err != nil {
		return nil, result.err
	}

	return synthesize(req, result.response)
}

// capture reads req's body (restoring it, since a pass-through request must
// still be sendable afterward) into a CapturedRequest for matcher use.
func capture(req *http.Request) (*CapturedRequest, error) {
	var body []byte

	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}

		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(data))
		body = data
	}

	return &CapturedRequest{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header.Clone(),
		Body:   body,
	}, nil
}

// synthesize builds an *http.Response from resp, honoring ResponseInterval
// by actually sleeping/chunking — this library intercepts before any real
// I/O, so there is no event loop to schedule virtual time against; a real
// goroutine sleep is the only available "time passes" primitive at this
// layer.
func synthesize(req *http.Request, resp StubResponse) (*http.Response, error) {
	if resp.FailureError != nil {
		return nil, resp.FailureError
	}

	data, err := resp.bodyBytes()
	if err != nil {
		return nil, err
	}

	header := make(http.Header)

	for k, v := range resp.Headers {
		header.Set(k, v)
	}

	if resp.ContentType != "" {
		header.Set("Content-Type", resp.ContentType)
	}

	body := deliver(req.Context(), data, resp.ResponseInterval)

	httpResp := &http.Response{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Header:     header,
		Body:       body,
		Request:    req,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}

	httpResp.ContentLength = int64(len(data))

	return httpResp, nil
}

// deliver returns a reader that yields data either all at once, after a
// fixed delay, or chunked across time to approximate a target bitrate. ctx
// cancellation mid-delivery surfaces as ctx.Err(), never io.EOF — an EOF
// here would read as a clean, complete body instead of an aborted one (see
// net/http's cancelTimerBody, which passes EOF through unconverted).
func deliver(ctx context.Context, data []byte, interval ResponseInterval) io.ReadCloser {
	switch interval.kind {
	case intervalDelay:
		return &delayedReader{ctx: ctx, data: data, delay: interval.delay}

	case intervalSpeed:
		return &throttledReader{ctx: ctx, data: data, bitsPerSec: interval.bitsPerSec}

	default:
		return io.NopCloser(bytes.NewReader(data))
	}
}

// delayedReader sleeps once, on the first Read, then emits all of data.
type delayedReader struct {
	ctx    context.Context
	data   []byte
	delay  time.Duration
	slept  bool
	reader *bytes.Reader
}

func (d *delayedReader) Read(p []byte) (int, error) {
	if !d.slept {
		d.slept = true

		timer := time.NewTimer(d.delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-d.ctx.Done():
			return 0, d.ctx.Err()
		}

		d.reader = bytes.NewReader(d.data)
	}

	return d.reader.Read(p)
}

func (d *delayedReader) Close() error { return nil }

// throttledReader slices data into chunks and paces Read calls so the total
// delivery time approximates len(data)*8/bitsPerSec seconds.
type throttledReader struct {
	ctx        context.Context
	data       []byte
	bitsPerSec int64
	offset     int
	started    bool
	startedAt  time.Time
}

const throttleChunkBytes = 4096

func (t *throttledReader) Read(p []byte) (int, error) {
	if t.offset >= len(t.data) {
		return 0, io.EOF
	}

	if !t.started {
		t.started = true
		t.startedAt = time.Now()
	} else if t.bitsPerSec > 0 {
		elapsedTarget := time.Duration(float64(t.offset) * 8 / float64(t.bitsPerSec) * float64(time.Second))
		actual := time.Since(t.startedAt)

		if wait := elapsedTarget - actual; wait > 0 {
			timer := time.NewTimer(wait)

			select {
			case <-timer.C:
			case <-t.ctx.Done():
				timer.Stop()

				return 0, t.ctx.Err()
			}
		}
	}

	n := throttleChunkBytes
	if remaining := len(t.data) - t.offset; remaining < n {
		n = remaining
	}

	if len(p) < n {
		n = len(p)
	}

	copy(p, t.data[t.offset:t.offset+n])
	t.offset += n

	return n, nil
}

func (t *throttledReader) Close() error { return nil }
