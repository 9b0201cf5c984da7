package realhttp

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// ChallengeDisposition is the closed set of ways a SecurityService may
// respond to an authentication challenge.
type ChallengeDisposition int

const (
	// ChallengePerformDefaultHandling defers to the transport's built-in
	// handling (e.g. net/http's default TLS/auth behavior).
	ChallengePerformDefaultHandling ChallengeDisposition = iota
	// ChallengeUseCredential retries the request with updated headers.
	ChallengeUseCredential
	// ChallengeCancel aborts the request.
	ChallengeCancel
)

// Challenge describes an authentication failure the transport or a
// validator surfaced mid-flight (e.g. a 401).
type Challenge struct {
	Response   *Response
	StatusCode int
}

// SecurityService is the closed sum type for "how does this request get
// authenticated/how do we respond to an auth challenge". SecurityFunc is
// the ad hoc extensibility variant; the default OAuth2 implementation is
// oauth2Security, built via NewOAuth2Security.
type SecurityService interface {
	// Authorize mutates req's headers (typically Authorization) before it is
	// sent.
	Authorize(ctx context.Context, req *http.Request) error
	// HandleChallenge decides what to do when the transport reports an auth
	// challenge.
	HandleChallenge(ctx context.Context, challenge Challenge) ChallengeDisposition
}

// SecurityFunc adapts a plain function to SecurityService for ad hoc
// authorization, performing default challenge handling.
type SecurityFunc func(ctx context.Context, req *http.Request) error

func (f SecurityFunc) Authorize(ctx context.Context, req *http.Request) error { return f(ctx, req) }

func (f SecurityFunc) HandleChallenge(context.Context, Challenge) ChallengeDisposition {
	return ChallengePerformDefaultHandling
}

// oauth2Security is the default SecurityService: a bearer token sourced
// from an oauth2.TokenSource, refreshed transparently by the oauth2
// package's own caching wrapper.
type oauth2Security struct {
	source oauth2.TokenSource
}

// NewOAuth2Security builds the default SecurityService from an
// oauth2.TokenSource. Callers typically build source from an
// oauth2.Config's TokenSource(ctx, tok) or a refresh-token flow; this
// library does not itself perform the OAuth2 dance — only transport-layer
// consumption of tokens is this library's concern.
func NewOAuth2Security(source oauth2.TokenSource) SecurityService {
	return &oauth2Security{source: source}
}

func (s *oauth2Security) Authorize(_ context.Context, req *http.Request) error {
	tok, err := s.source.Token()
	if err != nil {
		return NewError(CategorySessionError, "obtaining OAuth2 token", err)
	}

	tok.SetAuthHeader(req)

	return nil
}

func (s *oauth2Security) HandleChallenge(_ context.Context, challenge Challenge) ChallengeDisposition {
	if challenge.StatusCode == http.StatusUnauthorized {
		return ChallengeUseCredential
	}

	return ChallengePerformDefaultHandling
}

// NoSecurity performs no authorization and always defers to default
// challenge handling — the zero-value security policy for unauthenticated
// clients.
var NoSecurity SecurityService = noSecurity{}

type noSecurity struct{}

func (noSecurity) Authorize(context.Context, *http.Request) error { return nil }
func (noSecurity) HandleChallenge(context.Context, Challenge) ChallengeDisposition {
	return ChallengePerformDefaultHandling
}

// effectiveSecurity resolves the per-request override (if any) against the
// client default.
func effectiveSecurity(req *Request, clientDefault SecurityService) SecurityService {
	if req.Security != nil {
		return req.Security
	}

	if clientDefault != nil {
		return clientDefault
	}

	return NoSecurity
}
