package stub

// NewEchoStub builds the built-in echo stub: it matches any request and
// reflects the request's own body back as the response body, with the same
// Content-Type header the request carried (defaulting to
// application/octet-stream).
func NewEchoStub() *Stub {
	return NewDynamicStub("echo", func(req *CapturedRequest) StubResponse {
		contentType := req.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		resp := NewStubResponse(200, req.Body, contentType)

		resp.Headers = map[string]string{
			"X-Echo-Method": req.Method,
		}

		return resp
	})
}
