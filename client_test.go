package realhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodedPayload struct {
	OK bool `json:"ok"`
}

func TestNewClientDefaultsHaveDefaultValidator(t *testing.T) {
	c, err := NewClient("http://example.com", WithTempDir(t.TempDir()))
	require.NoError(t, err)

	vs := *c.Validators()
	require.Len(t, vs, 1)
}

func TestFetchReturnsSuccessOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()))
	require.NoError(t, err)

	resp, err := c.Fetch(context.Background(), NewRequest(MethodGet, "/a"))
	require.NoError(t, err)
	require.False(t, resp.IsError())
	assert.Equal(t, Status(200), resp.StatusCode)
}

func TestFetchDecodedDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()))
	require.NoError(t, err)

	decoded, resp, err := FetchDecoded[decodedPayload](context.Background(), c, NewRequest(MethodGet, "/a"))
	require.NoError(t, err)
	require.False(t, resp.IsError())
	assert.True(t, decoded.OK)
}

func TestFetchDecodedSurfacesDecodeFailureOnResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()))
	require.NoError(t, err)

	_, resp, err := FetchDecoded[decodedPayload](context.Background(), c, NewRequest(MethodGet, "/a"))
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.True(t, IsCategory(resp.Error, CategoryDecodeFailed))
}

func TestFetchRetriesImmediateThenSucceeds(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	retryOn500 := func(resp *Response, req *Request) Action {
		if resp.StatusCode.Int() == 500 {
			return Retry(RetryImmediate())
		}

		return NextValidator()
	}

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()), WithValidators(retryOn500, DefaultValidator(false)))
	require.NoError(t, err)

	req := NewRequest(MethodGet, "/a")
	req.MaxRetries = 5

	resp, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.IsError())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchRetryExhaustionFinalizesWithError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	retryOn500 := func(resp *Response, req *Request) Action {
		if resp.StatusCode.Int() == 500 {
			return Retry(RetryImmediate())
		}

		return NextValidator()
	}

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()), WithValidators(retryOn500))
	require.NoError(t, err)

	req := NewRequest(MethodGet, "/a")
	req.MaxRetries = 2

	resp, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.True(t, IsCategory(resp.Error, CategoryRetryAttemptsReached))
}

func TestFetchRunsWillRetryWithStrategyDelegate(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	retryOn500 := func(resp *Response, req *Request) Action {
		if resp.StatusCode.Int() == 500 {
			return Retry(RetryImmediate())
		}

		return NextValidator()
	}

	var sawStrategy bool

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()), WithValidators(retryOn500),
		WithDelegates(Delegates{WillRetryWithStrategy: func(req *Request, strategy RetryStrategy) { sawStrategy = true }}))
	require.NoError(t, err)

	req := NewRequest(MethodGet, "/a")
	req.MaxRetries = 3

	_, err = c.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, sawStrategy)
}

func TestFetchAltRequestRefreshesThenRetriesOriginal(t *testing.T) {
	var tokenCalls int32
	var protectedCalls int32
	var lastAuth atomic.Value
	lastAuth.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("refreshed-token"))
	})
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&protectedCalls, 1)
		lastAuth.Store(r.Header.Get("Authorization"))

		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	var client *Client

	authValidator := func(resp *Response, req *Request) Action {
		if resp.StatusCode.Int() == http.StatusUnauthorized {
			alt := NewRequest(MethodGet, "/token")

			return Retry(RetryAfter(alt, 0, func(altResp *Response) {
				data, _ := altResp.Data()
				req.Headers.Set("Authorization", "Bearer "+string(data))
			}))
		}

		return NextValidator()
	}

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()), WithValidators(authValidator))
	require.NoError(t, err)
	client = c

	req := NewRequest(MethodGet, "/protected")
	req.MaxRetries = 2

	resp, err := client.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.IsError())
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&protectedCalls))
	assert.Equal(t, "Bearer refreshed-token", lastAuth.Load())
}

func TestFetchAfterTaskStrategyRunsAsyncTaskThenRetries(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var taskRan bool

	v := func(resp *Response, req *Request) Action {
		if resp.StatusCode.Int() == http.StatusServiceUnavailable {
			return Retry(RetryAfterTask(0, func(ctx context.Context, original *Request) error {
				taskRan = true

				return nil
			}, nil))
		}

		return NextValidator()
	}

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()), WithValidators(v))
	require.NoError(t, err)

	req := NewRequest(MethodGet, "/a")
	req.MaxRetries = 2

	resp, err := c.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.IsError())
	assert.True(t, taskRan)
}

func TestFetchRespectsMaxConcurrentOperations(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()), WithMaxConcurrentOperations(1))
	require.NoError(t, err)

	done := make(chan struct{})

	go func() {
		_, _ = c.Fetch(context.Background(), NewRequest(MethodGet, "/a"))
		close(done)
	}()

	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = c.Fetch(ctx, NewRequest(MethodGet, "/b"))
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryCancelled))

	close(release)
	<-done
}

func TestFetchAppliesResponseTransformers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tagged := func(resp *Response, req *Request) *Response {
		resp.Headers.Set("X-Transformed", "yes")

		return resp
	}

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()), WithResponseTransformers(tagged))
	require.NoError(t, err)

	resp, err := c.Fetch(context.Background(), NewRequest(MethodGet, "/a"))
	require.NoError(t, err)
	assert.Equal(t, "yes", resp.Headers.Get("X-Transformed"))
}

func TestFetchDidEnqueueAndDidFinishDelegatesFire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var enqueued, finished bool

	c, err := NewClient(srv.URL, WithTempDir(t.TempDir()), WithDelegates(Delegates{
		DidEnqueue: func(req *Request) { enqueued = true },
		DidFinish:  func(req *Request, resp *Response) { finished = true },
	}))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), NewRequest(MethodGet, "/a"))
	require.NoError(t, err)
	assert.True(t, enqueued)
	assert.True(t, finished)
}
