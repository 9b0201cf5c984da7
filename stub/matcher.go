package stub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
)

// Matcher decides whether a captured request satisfies one condition. A Stub
// matches when every one of its Matchers returns true.
type Matcher func(req *CapturedRequest) bool

// CapturedRequest is the subset of an outbound *http.Request a Matcher needs,
// captured once per RoundTrip call so matchers never re-read (and
// potentially exhaust) the request body.
type CapturedRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// URLRegex matches when the request URL's string form matches pattern.
func URLRegex(pattern string) Matcher {
	re := regexp.MustCompile(pattern)

	return func(req *CapturedRequest) bool {
		return re.MatchString(req.URL.String())
	}
}

// URLOptions controls how URLExact compares the request's URL to want.
type URLOptions struct {
	IgnorePath           bool
	IgnoreQueryParameters bool
}

// URLExact matches when the request's URL equals want, modulo options.
func URLExact(want string, opts URLOptions) Matcher {
	wantURL, err := url.Parse(want)
	if err != nil {
		// A malformed literal passed by the caller never matches anything,
		// rather than panicking at stub-registration time.
		return func(*CapturedRequest) bool { return false }
	}

	return func(req *CapturedRequest) bool {
		if req.URL.Scheme != wantURL.Scheme || req.URL.Host != wantURL.Host {
			return false
		}

		if !opts.IgnorePath && req.URL.Path != wantURL.Path {
			return false
		}

		if !opts.IgnoreQueryParameters && req.URL.RawQuery != wantURL.RawQuery {
			return false
		}

		return true
	}
}

// uriTemplatePlaceholder matches a single RFC 6570 {name} path segment.
var uriTemplatePlaceholder = regexp.MustCompile(`\{[^{}]+\}`)

// URITemplate matches a request path against a minimal RFC 6570 template: a
// template segment `{name}` matches any one non-slash path segment, and
// everything else must match literally. Full RFC 6570 expansion (query-string
// operators, reserved-expansion) is out of this library's scope —
// URITemplateExpander is the external collaborator for that; this matcher
// only needs to recognize, not expand, templates.
func URITemplate(template string) Matcher {
	escaped := regexp.QuoteMeta(template)
	pattern := uriTemplatePlaceholder.ReplaceAllStringFunc(escaped, func(string) string {
		return `[^/]+`
	})

	re := regexp.MustCompile("^" + pattern + "$")

	return func(req *CapturedRequest) bool {
		return re.MatchString(req.URL.Path)
	}
}

// JSONObjectEqualTo matches when the request body, parsed as JSON, is deeply
// equal to want after both are normalized through encoding/json.
func JSONObjectEqualTo(want any) Matcher {
	wantBytes, err := json.Marshal(want)
	if err != nil {
		return func(*CapturedRequest) bool { return false }
	}

	var wantNormalized any
	_ = json.Unmarshal(wantBytes, &wantNormalized)

	return func(req *CapturedRequest) bool {
		var gotNormalized any
		if err := json.Unmarshal(req.Body, &gotNormalized); err != nil {
			return false
		}

		gotBytes, err := json.Marshal(gotNormalized)
		if err != nil {
			return false
		}

		wantReserialized, err := json.Marshal(wantNormalized)
		if err != nil {
			return false
		}

		return bytes.Equal(gotBytes, wantReserialized)
	}
}

// BodyExactBytes matches when the request body equals want byte-for-byte.
func BodyExactBytes(want []byte) Matcher {
	return func(req *CapturedRequest) bool {
		return bytes.Equal(req.Body, want)
	}
}

// CustomPredicate adapts an arbitrary function to Matcher, an escape hatch
// for conditions the built-in matchers cannot express.
func CustomPredicate(fn func(req *CapturedRequest) bool) Matcher {
	return fn
}

// HeaderEquals matches when the request carries header name with exactly
// value, case-insensitive on the header name per net/http convention. It is
// provided as a first-class Matcher so callers need not write the
// equivalent CustomPredicate closure.
func HeaderEquals(name, value string) Matcher {
	return func(req *CapturedRequest) bool {
		return req.Header.Get(name) == value
	}
}

// matchAll reports whether every matcher in matchers accepts req.
func matchAll(matchers []Matcher, req *CapturedRequest) bool {
	for _, m := range matchers {
		if m == nil {
			continue
		}

		if !m(req) {
			return false
		}
	}

	return true
}
