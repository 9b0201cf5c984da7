package stub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubberLookupInsertionOrderFirstMatchWins(t *testing.T) {
	s := New()
	s.Enable()

	first := NewStub("first", NewStubResponseString(200, "first", "text/plain"), URLRegex(".*"))
	second := NewStub("second", NewStubResponseString(200, "second", "text/plain"), URLRegex(".*"))
	s.Add(first)
	s.Add(second)

	req := mustCapturedRequest(t, "GET", "https://api.example.com/a", nil)

	result := s.lookup(req)
	require.Same(t, first, result.stub)
}

func TestStubberIgnoreRuleTakesPrecedenceOverStubs(t *testing.T) {
	s := New()
	s.Enable()

	s.Add(NewStub("catchall", NewStubResponseString(200, "body", "text/plain"), URLRegex(".*")))
	s.AddIgnoreRule(NewStub("ignore-health", StubResponse{}, URLRegex(`/health$`)))

	req := mustCapturedRequest(t, "GET", "https://api.example.com/health", nil)

	result := s.lookup(req)
	assert.True(t, result.passThrough)
}

func TestStubberOptOutReturnsErrUnhandledWhenNoMatch(t *testing.T) {
	s := New()
	s.Enable()

	req := mustCapturedRequest(t, "GET", "https://api.example.com/a", nil)

	result := s.lookup(req)
	assert.ErrorIs(t, result.err, ErrUnhandled)
}

func TestStubberOptInPassesThroughWhenNoMatch(t *testing.T) {
	s := New()
	s.Enable()
	s.SetUnhandledMode(OptIn)

	req := mustCapturedRequest(t, "GET", "https://api.example.com/a", nil)

	result := s.lookup(req)
	assert.True(t, result.passThrough)
}

func TestStubberEchoStubWinsOverUnhandledPolicy(t *testing.T) {
	s := New()
	s.Enable()
	s.SetEcho(NewEchoStub())

	req := mustCapturedRequest(t, "POST", "https://api.example.com/a", []byte("payload"))

	result := s.lookup(req)
	require.NoError(t, result.err)
	assert.False(t, result.passThrough)
	data, err := result.response.bodyBytes()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestStubberRemoveDeregistersStub(t *testing.T) {
	s := New()
	s.Enable()

	target := NewStub("target", NewStubResponseString(200, "body", "text/plain"), URLRegex(".*"))
	s.Add(target)
	s.Remove(target)

	req := mustCapturedRequest(t, "GET", "https://api.example.com/a", nil)
	result := s.lookup(req)
	assert.ErrorIs(t, result.err, ErrUnhandled)
}

func TestStubberRemoveAllClearsEverything(t *testing.T) {
	s := New()
	s.Enable()
	s.Add(NewStub("a", NewStubResponseString(200, "a", "text/plain"), URLRegex(".*")))
	s.AddIgnoreRule(NewStub("b", StubResponse{}, URLRegex(".*")))
	s.SetEcho(NewEchoStub())

	s.RemoveAll()

	req := mustCapturedRequest(t, "GET", "https://api.example.com/a", nil)
	result := s.lookup(req)
	assert.ErrorIs(t, result.err, ErrUnhandled)
}

func TestStubResponseForMethodFallsBackToCatchAll(t *testing.T) {
	st := NewStub("s", NewStubResponseString(200, "body", "text/plain"))

	resp, err := st.responseFor(mustCapturedRequest(t, "POST", "https://api.example.com/a", nil))
	require.NoError(t, err)
	data, _ := resp.bodyBytes()
	assert.Equal(t, "body", string(data))
}

func TestStubResponseForMethodPrefersExactMethod(t *testing.T) {
	st := NewStubForMethod("s", "GET", NewStubResponseString(200, "get-body", "text/plain"))

	_, err := st.responseFor(mustCapturedRequest(t, "POST", "https://api.example.com/a", nil))
	assert.ErrorIs(t, err, ErrNoResponseForMethod)
}

func TestEnableDisableIsEnabled(t *testing.T) {
	s := New()
	assert.False(t, s.IsEnabled())

	s.Enable()
	assert.True(t, s.IsEnabled())

	s.Disable()
	assert.False(t, s.IsEnabled())
}
