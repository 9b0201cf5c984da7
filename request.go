package realhttp

import (
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Method is an HTTP method name. A named type (rather than bare string)
// keeps call sites self-documenting: realhttp.MethodPost, not "POST".
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
	MethodHead   Method = http.MethodHead
)

// TransferMode selects between in-memory and file-backed transfer:
// TransferLargeData drives the data loader to use a streaming/download
// task and persist bytes to a file instead of RAM.
type TransferMode int

const (
	TransferDefault TransferMode = iota
	TransferLargeData
)

// RedirectMode controls how the data loader handles 3xx responses.
type RedirectMode int

const (
	// RedirectFollow uses the transport's default redirect handling.
	RedirectFollow RedirectMode = iota
	// RedirectFollowWithOriginalSettings copies body/headers/method from the
	// original request onto the redirected one.
	RedirectFollowWithOriginalSettings
	// RedirectRefuse returns the 3xx response unchanged, without following it.
	RedirectRefuse
	// RedirectCustom delegates to Request.RedirectFunc.
	RedirectCustom
)

// QueryItem is one name/value pair in a request's query string. Multiple
// items may share a Name (multi-value query parameters); order is
// preserved end to end.
type QueryItem struct {
	Name  string
	Value string
}

// Priority hints scheduling preference to the underlying transport. The
// transport this library rides (net/http) has no native concept of
// priority; the field exists so callers and custom RoundTrippers can act on
// it.
type Priority int

const (
	PriorityDefault Priority = iota
	PriorityLow
	PriorityHigh
)

// URLRequestModifier lets a caller rewrite the final *http.Request
// immediately before it is sent, an optional per-request hook.
type URLRequestModifier func(*http.Request) error

// Request is the library's unit of work: everything needed to construct one
// or more transport attempts for a single logical HTTP call. Fetch drives
// every attempt from this same Request: a fresh *http.Request is built from
// it per attempt, the retry counter is advanced on it in place, and retry
// strategies (an alt-request's response handler, an after-task) may change
// its fields between attempts.
type Request struct {
	// Identity: exactly one of AbsoluteURL or (Path, resolved against a
	// Client's BaseURL) must be set.
	AbsoluteURL string
	Path        string

	Method      Method
	Headers     Headers
	QueryItems  []QueryItem
	Body        Body

	// Timeout overrides the client default for this request; 0 means "use
	// the client default".
	Timeout time.Duration
	RedirectMode RedirectMode
	RedirectFunc func(req *http.Request, via []*http.Request) error

	TransferMode TransferMode
	CachePolicy  CachePolicy

	MaxRetries   int
	currentRetry int

	Priority Priority

	// PartialData holds resume bytes from a prior failed largeData transfer.
	// TransferMode must be TransferLargeData whenever PartialData is
	// non-nil.
	PartialData []byte
	// PartialDataFileName is carried on the Request but not read by the
	// data loader: staging file names always come from the temp store.
	PartialDataFileName string

	Security SecurityService // optional per-request override

	URLRequestModifier URLRequestModifier

	// isAltRequest marks a request constructed internally by a retry
	// strategy's alt-request side effect (e.g. token refresh). Such a
	// request bypasses its own retry machinery to avoid infinite
	// recursion.
	isAltRequest bool

	progress *progressSignal
}

// Headers is an ordered, case-insensitive-by-name header set. Unlike
// http.Header (a map), Headers preserves insertion order for names, which
// matters for deterministic multipart/log output; lookups are still
// case-insensitive via textproto.CanonicalMIMEHeaderKey.
type Headers struct {
	order  []string
	values map[string][]string
}

// NewHeaders builds an empty Headers set.
func NewHeaders() Headers {
	return Headers{values: map[string][]string{}}
}

// Set replaces all values for name.
func (h *Headers) Set(name, value string) {
	h.ensure()

	key := textproto.CanonicalMIMEHeaderKey(name)
	if _, exists := h.values[key]; !exists {
		h.order = append(h.order, key)
	}

	h.values[key] = []string{value}
}

// Add appends a value for name without removing existing ones.
func (h *Headers) Add(name, value string) {
	h.ensure()

	key := textproto.CanonicalMIMEHeaderKey(name)
	if _, exists := h.values[key]; !exists {
		h.order = append(h.order, key)
	}

	h.values[key] = append(h.values[key], value)
}

// Get returns the first value for name, or "" if absent.
func (h Headers) Get(name string) string {
	vals := h.values[textproto.CanonicalMIMEHeaderKey(name)]
	if len(vals) == 0 {
		return ""
	}

	return vals[0]
}

// Has reports whether name has at least one value set.
func (h Headers) Has(name string) bool {
	_, ok := h.values[textproto.CanonicalMIMEHeaderKey(name)]

	return ok
}

func (h *Headers) ensure() {
	if h.values == nil {
		h.values = map[string][]string{}
	}
}

// Merge combines base and override headers: finalHeaders = base ⊕ override,
// override headers winning on name match. It is idempotent —
// Merge(Merge(a, b), b) == Merge(a, b) — because overriding the same name
// twice with the same value is a no-op.
func Merge(base, override Headers) Headers {
	merged := NewHeaders()

	for _, name := range base.order {
		for _, v := range base.values[name] {
			merged.Add(name, v)
		}
	}

	for _, name := range override.order {
		merged.values[name] = append([]string(nil), override.values[name]...)
		found := false

		for _, existing := range merged.order {
			if existing == name {
				found = true
				break
			}
		}

		if !found {
			merged.order = append(merged.order, name)
		}
	}

	return merged
}

// clone returns a value copy of h safe for independent mutation (e.g. by a
// per-attempt http.Request) without aliasing the slices backing values.
func (h Headers) clone() Headers {
	cloned := NewHeaders()
	for _, name := range h.order {
		cloned.order = append(cloned.order, name)
		cloned.values[name] = append([]string(nil), h.values[name]...)
	}

	return cloned
}

// CachePolicy mirrors the handful of net/http cache-control behaviors a
// caller typically wants to pick between; it is intentionally small — full
// HTTP caching semantics are the transport's concern.
type CachePolicy int

const (
	CachePolicyUseProtocol CachePolicy = iota
	CachePolicyReloadIgnoringCache
	CachePolicyReturnCacheDataElseLoad
)

// NewRequest builds a Request for method and path, with sane zero values:
// TransferDefault, RedirectFollow, CachePolicyUseProtocol, no retries.
func NewRequest(method Method, path string) *Request {
	return &Request{
		Method:       method,
		Path:         path,
		Headers:      NewHeaders(),
		RedirectMode: RedirectFollow,
		CachePolicy:  CachePolicyUseProtocol,
		progress:     newProgressSignal(),
	}
}

// Progress returns the request's progress signal for subscription:
// Subscribe is the push form, Latest() is the pull form.
func (r *Request) Progress() *progressSignal {
	if r.progress == nil {
		r.progress = newProgressSignal()
	}

	return r.progress
}

// CurrentRetry reports how many retry attempts have already been made for
// this request (0 on the first attempt).
func (r *Request) CurrentRetry() int {
	return r.currentRetry
}

// IsAltRequest reports whether this request was constructed as a retry
// strategy's alt-request side effect.
func (r *Request) IsAltRequest() bool {
	return r.isAltRequest
}

// Reset clears the response-affecting state of a Request so it can be
// resubmitted, clearing the progress signal and (optionally) the retry
// counter.
func (r *Request) Reset(clearRetryCounter bool) {
	if clearRetryCounter {
		r.currentRetry = 0
	}

	r.progress = newProgressSignal()
}

// validate checks the invariants: exactly one of {AbsoluteURL, Path},
// currentRetry <= MaxRetries, TransferLargeData whenever PartialData is
// set, and no CR/LF in header values.
func (r *Request) validate() error {
	if r.AbsoluteURL == "" && r.Path == "" {
		return NewError(CategoryInvalidURL, "request has neither an absolute URL nor a path", nil)
	}

	if r.AbsoluteURL != "" && r.Path != "" {
		return NewError(CategoryInvalidURL, "request has both an absolute URL and a path; exactly one is allowed", nil)
	}

	if r.currentRetry > r.MaxRetries {
		return NewError(CategoryInternal, "currentRetry exceeds maxRetries", nil)
	}

	if r.PartialData != nil && r.TransferMode != TransferLargeData {
		return NewError(CategoryInternal, "partialData is set but transferMode is not largeData", nil)
	}

	for _, name := range r.Headers.order {
		for _, v := range r.Headers.values[name] {
			if strings.ContainsAny(v, "\r\n") {
				return NewError(CategoryInvalidURL, "header value contains CR/LF", nil)
			}
		}
	}

	return nil
}

// clone returns a shallow-but-independent copy of r: headers and query
// items are copied, so changing them (or currentRetry) on the copy leaves r
// untouched.
func (r *Request) clone() *Request {
	dup := *r
	dup.Headers = r.Headers.clone()
	dup.QueryItems = append([]QueryItem(nil), r.QueryItems...)

	return &dup
}
