package realhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolveTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := NewClient(baseURL, WithTempDir(t.TempDir()))
	require.NoError(t, err)

	return c
}

func TestResolveURLAbsoluteWinsOverBaseURL(t *testing.T) {
	c := newResolveTestClient(t, "http://base.example.com")
	req := NewRequest(MethodGet, "")
	req.AbsoluteURL = "http://override.example.com/x"

	got, err := resolveURL(c, req)
	require.NoError(t, err)
	assert.Equal(t, "http://override.example.com/x", got)
}

func TestResolveURLJoinsBaseAndPath(t *testing.T) {
	c := newResolveTestClient(t, "http://example.com/api/")
	req := NewRequest(MethodGet, "/v1/items")

	got, err := resolveURL(c, req)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/v1/items", got)
}

func TestResolveURLMissingBaseURLErrors(t *testing.T) {
	c := newResolveTestClient(t, "")
	req := NewRequest(MethodGet, "/v1/items")

	_, err := resolveURL(c, req)
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryInvalidURL))
}

func TestResolveURLMergesAndEncodesQuery(t *testing.T) {
	c, err := NewClient("http://example.com", WithTempDir(t.TempDir()), WithDefaultQuery([]QueryItem{{Name: "token", Value: "secret"}}))
	require.NoError(t, err)

	req := NewRequest(MethodGet, "/items")
	req.QueryItems = append(req.QueryItems, QueryItem{Name: "q", Value: "a b"})

	got, err := resolveURL(c, req)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/items?token=secret&q=a+b", got)
}

func TestResolveURLAppendsQueryWhenAbsoluteURLAlreadyHasOne(t *testing.T) {
	c := newResolveTestClient(t, "http://example.com")
	req := NewRequest(MethodGet, "")
	req.AbsoluteURL = "http://override.example.com/x?existing=1"
	req.QueryItems = append(req.QueryItems, QueryItem{Name: "q", Value: "v"})

	got, err := resolveURL(c, req)
	require.NoError(t, err)
	assert.Equal(t, "http://override.example.com/x?existing=1&q=v", got)
}

func TestJoinURLSingleSlashBoundary(t *testing.T) {
	assert.Equal(t, "http://example.com/a/b", joinURL("http://example.com/a/", "/b"))
	assert.Equal(t, "http://example.com/a/b", joinURL("http://example.com/a", "b"))
}
