package realhttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoaderTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := NewClient(baseURL, WithTempDir(t.TempDir()))
	require.NoError(t, err)

	return c
}

func TestDataLoaderRunCollectsInMemoryBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	c := newLoaderTestClient(t, srv.URL)
	req := NewRequest(MethodGet, "/a")

	resp, err := c.loader.run(context.Background(), c, req)
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	data, err := resp.Data()
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, Status(200), resp.StatusCode)
}

func TestDataLoaderRunCollectsToFileForLargeData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("staged payload"))
	}))
	defer srv.Close()

	c := newLoaderTestClient(t, srv.URL)
	req := NewRequest(MethodGet, "/a")
	req.TransferMode = TransferLargeData

	resp, err := c.loader.run(context.Background(), c, req)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	require.NotEmpty(t, resp.dataFilePath)

	data, err := os.ReadFile(resp.dataFilePath)
	require.NoError(t, err)
	assert.Equal(t, "staged payload", string(data))
}

func TestDataLoaderRunAttachesTransportErrorToResponse(t *testing.T) {
	c := newLoaderTestClient(t, "http://127.0.0.1:0")
	req := NewRequest(MethodGet, "/a")
	req.Timeout = 10 * time.Millisecond

	resp, err := c.loader.run(context.Background(), c, req)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
}

func TestDataLoaderRunPropagatesCancellation(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	c := newLoaderTestClient(t, srv.URL)
	req := NewRequest(MethodGet, "/a")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	resp, err := c.loader.run(ctx, c, req)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.True(t, IsCategory(resp.Error, CategoryCancelled))
}

func TestDataLoaderRunHonorsBuildRequestError(t *testing.T) {
	c := newLoaderTestClient(t, "")
	req := NewRequest(MethodGet, "/a")

	_, err := c.loader.run(context.Background(), c, req)
	require.Error(t, err)
	assert.True(t, IsCategory(err, CategoryInvalidURL))
}

func TestClassifyTransportErrorDetectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classifyTransportError(ctx, context.Canceled)
	assert.True(t, IsCategory(err, CategoryCancelled))
}

func TestClassifyTransportErrorDetectsConnectivityFailure(t *testing.T) {
	err := classifyTransportError(context.Background(), assertErr("dial tcp: connection refused"))
	assert.True(t, IsCategory(err, CategoryMissingConnection))
}

func TestClassifyTransportErrorDefaultsToNetwork(t *testing.T) {
	err := classifyTransportError(context.Background(), assertErr("something else broke"))
	assert.True(t, IsCategory(err, CategoryNetwork))
}

func TestProgressReaderPublishesMonotonicEvents(t *testing.T) {
	signal := newProgressSignal()

	var events []Progress
	signal.Subscribe(func(p Progress) { events = append(events, p) })

	r := &progressReader{r: newRepeatReader("abcdef", 2), signal: signal, event: EventDownload, expected: 6}

	buf := make([]byte, 2)
	for {
		_, err := r.Read(buf)
		if err != nil {
			break
		}
	}

	require.NotEmpty(t, events)
	assert.Equal(t, int64(6), events[len(events)-1].CurrentBytes)
}

// assertErr builds a plain error value for classifyTransportError tests.
type assertErr string

func (e assertErr) Error() string { return string(e) }

// repeatReader reads s out in chunks of size step, then io.EOF.
type repeatReader struct {
	data []byte
	pos  int
	step int
}

func newRepeatReader(s string, step int) *repeatReader {
	return &repeatReader{data: []byte(s), step: step}
}

func (r *repeatReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}

	n := r.step
	if n > len(p) {
		n = len(p)
	}

	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}

	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n

	return n, nil
}
