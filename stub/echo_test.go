package stub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoStubReflectsBodyAndContentType(t *testing.T) {
	echo := NewEchoStub()

	req := mustCapturedRequest(t, "PUT", "https://api.example.com/a", []byte(`{"x":1}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := echo.responseFor(req)
	require.NoError(t, err)

	data, err := resp.bodyBytes()
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(data))
	assert.Equal(t, "application/json", resp.ContentType)
	assert.Equal(t, "PUT", resp.Headers["X-Echo-Method"])
}

func TestEchoStubDefaultsContentTypeWhenAbsent(t *testing.T) {
	echo := NewEchoStub()

	req := mustCapturedRequest(t, "POST", "https://api.example.com/a", []byte("raw"))

	resp, err := echo.responseFor(req)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", resp.ContentType)
}

func TestEchoStubMatchesAnyRequest(t *testing.T) {
	echo := NewEchoStub()

	assert.True(t, echo.matches(mustCapturedRequest(t, "GET", "https://anything.example.com/x", nil)))
}
