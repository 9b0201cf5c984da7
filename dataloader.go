package realhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// dataLoader drives exactly one network attempt for a Request and produces
// a Response. It unifies request building, transport, and response
// collection into one method that branches on TransferMode instead of
// separate code paths per transfer kind.
type dataLoader struct {
	store *tempStore
}

func newDataLoader(store *tempStore) *dataLoader {
	return &dataLoader{store: store}
}

// run executes one attempt: build the *http.Request, send it via a
// per-attempt *http.Client (attemptHTTPClient), and collect the result into
// a Response. c.security may be nil, as may any of c.delegate's callbacks.
func (d *dataLoader) run(ctx context.Context, c *Client, req *Request) (*Response, error) {
	encoded, err := req.Body.Encode()
	if err != nil {
		return nil, err
	}

	if encoded.Closer != nil {
		defer encoded.Closer() //nolint:errcheck // best-effort cleanup of a stream/file handle
	}

	httpReq, finalURL, err := d.buildHTTPRequest(ctx, c, req, encoded)
	if err != nil {
		return nil, err
	}

	security := effectiveSecurity(req, c.security)
	if err := security.Authorize(ctx, httpReq); err != nil {
		return nil, err
	}

	if req.URLRequestModifier != nil {
		if err := req.URLRequestModifier(httpReq); err != nil {
			return nil, NewError(CategoryFailedBuildingRequest, "URLRequestModifier failed", err)
		}
	}

	attemptClient := d.attemptHTTPClient(c, req)

	metrics := Metrics{StartedAt: timeNow()}

	if c.delegate.DidEnqueue != nil {
		c.delegate.DidEnqueue(req)
	}

	httpResp, doErr := attemptClient.Do(httpReq)

	metrics.FinishedAt = timeNow()

	var resp *Response

	if doErr != nil {
		// Transport-level failures are captured onto the Response rather
		// than returned as a Go error, tagged with the appropriate
		// category", so the validator chain still gets a chance to decide
		// whether to retry a network error.
		resp = &Response{
			Metrics:         metrics,
			OriginalRequest: req,
			CurrentRequest:  req,
			Error:           asRealError(classifyTransportError(ctx, doErr)),
		}
	} else {
		defer httpResp.Body.Close()

		resp = d.collectResponse(ctx, req, httpResp, metrics, finalURL)
	}

	if c.delegate.DidFinish != nil {
		c.delegate.DidFinish(req, resp)
	}

	if c.delegate.DidCollectMetrics != nil {
		c.delegate.DidCollectMetrics(resp.Metrics)
	}

	return resp, nil
}

// asRealError extracts the *Error from an error value that classify*
// functions always return as *Error, falling back to wrapping it generically
// so callers never have to nil-check inconsistently.
func asRealError(err error) *Error {
	if err == nil {
		return nil
	}

	var re *Error
	if errors.As(err, &re) {
		return re
	}

	return NewError(CategoryNetwork, err.Error(), err)
}

// attemptHTTPClient builds a *http.Client sharing the transport (and thus
// any installed stub/interceptor) but with per-request redirect handling
// and timeout, since net/http's CheckRedirect and Timeout are per-Client,
// not per-Request.
func (d *dataLoader) attemptHTTPClient(c *Client, req *Request) *http.Client {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.defaultTimeout
	}

	client := &http.Client{
		Transport: c.transport(),
		Jar:       c.cookieJar,
		Timeout:   timeout,
	}

	switch req.RedirectMode {
	case RedirectRefuse:
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}

	case RedirectFollowWithOriginalSettings:
		client.CheckRedirect = func(newReq *http.Request, via []*http.Request) error {
			orig := via[0]
			newReq.Method = orig.Method
			newReq.Header = orig.Header.Clone()
			newReq.Body = orig.Body

			if orig.GetBody != nil {
				body, err := orig.GetBody()
				if err != nil {
					return err
				}

				newReq.Body = body
				newReq.GetBody = orig.GetBody
				newReq.ContentLength = orig.ContentLength
			}

			return nil
		}

	case RedirectCustom:
		if req.RedirectFunc != nil {
			client.CheckRedirect = req.RedirectFunc
		}

	case RedirectFollow:
		// nil CheckRedirect: net/http's default (follow, drop sensitive
		// headers cross-host) applies.
	}

	return client
}

// buildHTTPRequest resolves the URL, merges headers, and attaches the
// encoded body.
func (d *dataLoader) buildHTTPRequest(ctx context.Context, c *Client, req *Request, encoded Encoded) (*http.Request, string, error) {
	finalURL, err := resolveURL(c, req)
	if err != nil {
		return nil, "", err
	}

	body := encoded.Reader

	if req.TransferMode == TransferLargeData && req.PartialData != nil && req.Method == MethodGet {
		body = http.NoBody
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), finalURL, body)
	if err != nil {
		return nil, "", NewError(CategoryFailedBuildingRequest, "constructing transport request", err)
	}

	merged := Merge(c.defaultHeaders, req.Headers)
	merged.applyToHTTP(httpReq)

	if !merged.Has("Content-Type") && encoded.ContentType != "" {
		httpReq.Header.Set("Content-Type", encoded.ContentType)
	}

	if !merged.Has("Content-Length") && encoded.ContentLength > 0 {
		httpReq.ContentLength = encoded.ContentLength
	}

	for name, value := range c.defaultHeaderFallbacks() {
		if httpReq.Header.Get(name) == "" {
			httpReq.Header.Set(name, value)
		}
	}

	if req.TransferMode == TransferLargeData && req.PartialData != nil {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", len(req.PartialData)))
	}

	return httpReq, finalURL, nil
}

// collectResponse reads httpResp's body per req.TransferMode, emitting
// Progress events along the way, and assembles the Response. Any read/write
// failure is attached as resp.Error (never returned as a Go error) so the
// validator chain can still see — and potentially retry — it.
func (d *dataLoader) collectResponse(ctx context.Context, req *Request, httpResp *http.Response, metrics Metrics, finalURL string) *Response {
	resp := &Response{
		StatusCode:      Status(httpResp.StatusCode),
		Headers:         headersFromHTTP(httpResp.Header),
		Metrics:         metrics,
		OriginalRequest: req,
		CurrentRequest:  req,
	}

	var err error

	if req.TransferMode == TransferLargeData {
		err = d.collectToFile(ctx, req, httpResp, resp)
	} else {
		err = d.collectToMemory(ctx, req, httpResp, resp)
	}

	if err != nil {
		resp.Error = asRealError(err)
	}

	resp.Metrics.BytesReceived = int64(len(resp.data))
	if resp.dataFilePath != "" {
		if info, statErr := os.Stat(resp.dataFilePath); statErr == nil {
			resp.Metrics.BytesReceived = info.Size()
		}
	}

	return resp
}

// collectToMemory reads the entire body into memory, emitting upload-style
// monotonic download progress as it goes.
func (d *dataLoader) collectToMemory(ctx context.Context, req *Request, httpResp *http.Response, resp *Response) error {
	expected := httpResp.ContentLength

	counting := &progressReader{r: httpResp.Body, signal: req.progress, event: EventDownload, expected: expected}

	data, err := io.ReadAll(counting)
	if err != nil {
		return classifyTransportError(ctx, err)
	}

	resp.data = data

	return nil
}

// collectToFile streams the body to a stable, library-managed temp file,
// supporting resumable downloads via req.PartialData. On a cancellation
// mid-stream, the partial bytes already flushed are exposed on a failed
// Progress event so the caller can retry with PartialData set to them.
func (d *dataLoader) collectToFile(ctx context.Context, req *Request, httpResp *http.Response, resp *Response) error {
	finalPath := d.store.finalPath(req.Method, requestKey(req))
	stagingPath := d.store.stagingPath(req.Method, requestKey(req))

	f, err := os.Create(stagingPath)
	if err != nil {
		return NewError(CategoryInternal, "creating staging file for download", err)
	}

	resumed := httpResp.StatusCode == http.StatusPartialContent && len(req.PartialData) > 0

	if resumed {
		if _, err := f.Write(req.PartialData); err != nil {
			f.Close()

			return NewError(CategoryInternal, "writing resumed prefix to staging file", err)
		}

		req.progress.publish(Progress{Event: EventResumed, CurrentBytes: int64(len(req.PartialData))})
	}

	written := int64(len(req.PartialData))
	expected := httpResp.ContentLength
	if expected > 0 && resumed {
		expected += written
	}

	buf := make([]byte, 32*1024)

	for {
		n, readErr := httpResp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()

				return NewError(CategoryInternal, "writing download chunk", werr)
			}

			written += int64(n)
			req.progress.publish(Progress{
				Event:         EventDownload,
				CurrentBytes:  written,
				ExpectedBytes: expected,
				Percentage:    computePercentage(written, expected),
			})
		}

		if readErr != nil {
			f.Close()

			if errors.Is(readErr, io.EOF) {
				break
			}

			partial, _ := os.ReadFile(stagingPath)
			req.progress.publish(Progress{Event: EventFailed, CurrentBytes: written, ExpectedBytes: expected, PartialData: partial})

			return classifyTransportError(ctx, readErr)
		}
	}

	if err := d.store.promote(stagingPath, finalPath); err != nil {
		return err
	}

	resp.dataFilePath = finalPath

	return nil
}

// progressReader wraps an io.Reader, publishing monotonic Progress events
// for each Read as bytes flow through: currentBytes never decreases within
// one attempt.
type progressReader struct {
	r        io.Reader
	signal   *progressSignal
	event    Event
	expected int64
	current  int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)

	if n > 0 {
		p.current += int64(n)

		if p.signal != nil {
			p.signal.publish(Progress{
				Event:         p.event,
				CurrentBytes:  p.current,
				ExpectedBytes: p.expected,
				Percentage:    computePercentage(p.current, p.expected),
			})
		}
	}

	return n, err
}

// classifyTransportError maps a net/http transport-level error into the
// right Category: ctx cancellation, deadline/timeout, or a generic network
// failure (an explicit cancel produces cancelled; a timeout produces
// timeout; a connectivity failure produces missingConnection).
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return NewError(CategoryCancelled, "request cancelled", err)
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(CategoryTimeout, "request timed out", err)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(CategoryTimeout, "request timed out", err)
	}

	if isConnectivityError(err) {
		return NewError(CategoryMissingConnection, "no network connection", err)
	}

	return NewError(CategoryNetwork, "transport error", err)
}

// isConnectivityError heuristically detects a connection-establishment
// failure (as opposed to a mid-stream one), distinguishing CategoryNetwork
// from CategoryMissingConnection.
func isConnectivityError(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "network is unreachable")
}

// requestKey returns the string used to derive a request's deterministic
// temp file name: its AbsoluteURL when set, else its Path as given (not
// resolved against the client's base URL). Client also uses it for log
// fields and the alt-request dedup key.
func requestKey(req *Request) string {
	if req.AbsoluteURL != "" {
		return req.AbsoluteURL
	}

	return req.Path
}

// timeNow is a seam for tests that need deterministic Metrics timestamps;
// production code always uses time.Now.
var timeNow = func() time.Time { return time.Now() }
