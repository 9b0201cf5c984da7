package realhttp

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type staticTokenSource struct {
	token *oauth2.Token
	err   error
}

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	if s.err != nil {
		return nil, s.err
	}

	return s.token, nil
}

func TestOAuth2SecurityAuthorizeSetsHeader(t *testing.T) {
	security := NewOAuth2Security(staticTokenSource{token: &oauth2.Token{AccessToken: "abc123", TokenType: "Bearer"}})

	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)

	require.NoError(t, security.Authorize(context.Background(), req))
	assert.Equal(t, "Bearer abc123", req.Header.Get("Authorization"))
}

func TestOAuth2SecurityAuthorizeFailurePropagatesAsSessionError(t *testing.T) {
	security := NewOAuth2Security(staticTokenSource{err: errors.New("refresh failed")})

	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)

	authErr := security.Authorize(context.Background(), req)
	require.Error(t, authErr)
	assert.True(t, IsCategory(authErr, CategorySessionError))
}

func TestOAuth2SecurityHandleChallenge(t *testing.T) {
	security := NewOAuth2Security(staticTokenSource{})

	assert.Equal(t, ChallengeUseCredential, security.HandleChallenge(context.Background(), Challenge{StatusCode: 401}))
	assert.Equal(t, ChallengePerformDefaultHandling, security.HandleChallenge(context.Background(), Challenge{StatusCode: 500}))
}

func TestNoSecurityIsNoop(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)

	assert.NoError(t, NoSecurity.Authorize(context.Background(), req))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestSecurityFuncAdapter(t *testing.T) {
	called := false
	fn := SecurityFunc(func(context.Context, *http.Request) error {
		called = true
		return nil
	})

	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)

	require.NoError(t, fn.Authorize(context.Background(), req))
	assert.True(t, called)
	assert.Equal(t, ChallengePerformDefaultHandling, fn.HandleChallenge(context.Background(), Challenge{}))
}

func TestEffectiveSecurityPrefersRequestOverride(t *testing.T) {
	var calledDefault, calledOverride bool

	clientDefault := SecurityFunc(func(context.Context, *http.Request) error { calledDefault = true; return nil })
	override := SecurityFunc(func(context.Context, *http.Request) error { calledOverride = true; return nil })

	req := NewRequest(MethodGet, "/a")
	req.Security = override

	resolved := effectiveSecurity(req, clientDefault)
	require.NoError(t, resolved.Authorize(context.Background(), &http.Request{Header: http.Header{}}))

	assert.True(t, calledOverride)
	assert.False(t, calledDefault)
}

func TestEffectiveSecurityFallsBackToClientDefault(t *testing.T) {
	var calledDefault bool

	clientDefault := SecurityFunc(func(context.Context, *http.Request) error { calledDefault = true; return nil })

	req := NewRequest(MethodGet, "/a")

	resolved := effectiveSecurity(req, clientDefault)
	require.NoError(t, resolved.Authorize(context.Background(), &http.Request{Header: http.Header{}}))

	assert.True(t, calledDefault)
}

func TestEffectiveSecurityFallsBackToNoSecurity(t *testing.T) {
	req := NewRequest(MethodGet, "/a")

	assert.Equal(t, NoSecurity, effectiveSecurity(req, nil))
}
