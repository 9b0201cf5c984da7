package realhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Delegates are optional lifecycle callbacks a Client invokes around each
// attempt. DidReceiveAuthChallenge and TaskIsWaitingForConnectivity are
// accepted but never invoked by the Client.
type Delegates struct {
	DidEnqueue                   func(req *Request)
	DidFinish                    func(req *Request, resp *Response)
	DidCollectMetrics            func(m Metrics)
	DidReceiveAuthChallenge      func(challenge Challenge) ChallengeDisposition
	TaskIsWaitingForConnectivity func(req *Request)
	WillRetryWithStrategy        func(req *Request, strategy RetryStrategy)
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithDefaultHeaders sets the headers merged into every request.
func WithDefaultHeaders(h Headers) Option { return func(c *Client) { c.defaultHeaders = h } }

// WithDefaultQuery sets the query items prepended to every request's own.
func WithDefaultQuery(items []QueryItem) Option { return func(c *Client) { c.defaultQuery = items } }

// WithCookieJar installs a cookie jar shared by every fetch on this Client.
func WithCookieJar(jar http.CookieJar) Option { return func(c *Client) { c.cookieJar = jar } }

// WithSecurity sets the Client-level default SecurityService.
func WithSecurity(s SecurityService) Option { return func(c *Client) { c.security = s } }

// WithTransport overrides the underlying http.RoundTripper. This is the
// layer the Stubber intercepts at, before any network I/O.
func WithTransport(rt http.RoundTripper) Option { return func(c *Client) { c.roundTripper = rt } }

// WithDefaultTimeout sets the per-fetch timeout applied when a Request does
// not specify one. 0 or unset means the client default.
func WithDefaultTimeout(d time.Duration) Option { return func(c *Client) { c.defaultTimeout = d } }

// WithMaxConcurrentOperations caps in-flight transport tasks.
func WithMaxConcurrentOperations(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithLogger sets the structured logger, defaulting to slog.Default() when
// nil.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithTempDir overrides the library-managed temp directory largeData
// downloads are staged under.
func WithTempDir(dir string) Option { return func(c *Client) { c.tempDir = dir } }

// WithDelegates installs the Client's lifecycle callbacks.
func WithDelegates(d Delegates) Option { return func(c *Client) { c.delegate = d } }

// WithValidators replaces the Client's validator chain outright. Without
// this option, NewClient installs DefaultValidator(false) as the sole
// initial validator, present unless explicitly removed.
func WithValidators(vs ...Validator) Option { return func(c *Client) { c.validators = vs } }

// WithResponseTransformers installs response transformers, run in order
// after the validator chain settles.
func WithResponseTransformers(ts ...ResponseTransformer) Option {
	return func(c *Client) { c.transformers = ts }
}

// attemptHandle is one in-flight attempt, tracked in Client.inFlight purely
// so a future cancellation/introspection API has something to key off of.
// This map is a known historical race-site: all access goes through
// trackAttempt/untrackAttempt under mu.
type attemptHandle struct {
	request *Request
	cancel  context.CancelFunc
}

// Client owns a base URL, shared defaults, and the validator/transformer
// pipeline every Fetch runs through.
type Client struct {
	baseURL        string
	defaultHeaders Headers
	defaultQuery   []QueryItem
	cookieJar      http.CookieJar
	security       SecurityService
	roundTripper   http.RoundTripper
	defaultTimeout time.Duration
	tempDir        string
	logger         *slog.Logger
	delegate       Delegates

	validators   []Validator
	transformers []ResponseTransformer

	sem *semaphore.Weighted

	mu            sync.Mutex
	inFlight      map[uint64]*attemptHandle
	nextAttemptID uint64

	altRefresh singleflight.Group

	loader *dataLoader
	store  *tempStore
}

// NewClient builds a Client. baseURL may be empty if every Request the
// Client fetches carries an AbsoluteURL. Defaults: DefaultValidator(false)
// as the sole validator, slog.Default() logger, no cookie jar, no security,
// unbounded concurrency.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:        baseURL,
		defaultHeaders: NewHeaders(),
		logger:         slog.Default(),
		validators:     []Validator{DefaultValidator(false)},
		inFlight:       map[uint64]*attemptHandle{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	store, err := newTempStore(c.tempDir)
	if err != nil {
		return nil, err
	}

	c.store = store
	c.loader = newDataLoader(store)

	return c, nil
}

// Validators returns the live, mutable validator chain.
func (c *Client) Validators() *[]Validator { return &c.validators }

// ResponseTransformers returns the live, mutable transformer list.
func (c *Client) ResponseTransformers() *[]ResponseTransformer { return &c.transformers }

// transport returns the effective http.RoundTripper, defaulting to
// http.DefaultTransport so a Stubber installed via WithTransport is honored
// and otherwise real network I/O proceeds normally.
func (c *Client) transport() http.RoundTripper {
	if c.roundTripper != nil {
		return c.roundTripper
	}

	return http.DefaultTransport
}

// defaultHeaderFallbacks returns the library default headers applied only
// when the caller has not already supplied them: Accept-Encoding,
// Accept-Language, and User-Agent.
func (c *Client) defaultHeaderFallbacks() map[string]string {
	return map[string]string{
		"Accept-Encoding": "gzip, deflate",
		"Accept-Language": "en-US,en;q=0.9",
		"User-Agent":      "realhttp-go/1.0",
	}
}

// trackAttempt and untrackAttempt guard the per-task handler map against
// concurrent-completion races: every insertion/removal goes through these
// two functions, never a direct map write.
func (c *Client) trackAttempt(id uint64, h *attemptHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight[id] = h
}

func (c *Client) untrackAttempt(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, id)
}

func (c *Client) allocateAttemptID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextAttemptID++

	return c.nextAttemptID
}

// Fetch drives req from pending through one or more attempts to a final
// Response, running the validator chain and honoring retry strategies.
// Failures before an attempt is sent (invalid URL, body encoding failure,
// security authorization or URLRequestModifier failure, or ctx ending while
// waiting for a concurrency slot) are returned directly as the error value,
// synchronously; all other outcomes are carried on the returned Response's
// Error field, with a nil Go error.
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, NewError(CategoryCancelled, "waiting for a concurrency slot", err)
		}

		defer c.sem.Release(1)
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := c.allocateAttemptID()
	c.trackAttempt(id, &attemptHandle{request: req, cancel: cancel})
	defer c.untrackAttempt(id)

	for {
		c.logger.Debug("dispatching attempt",
			slog.String("method", string(req.Method)),
			slog.String("url", requestKey(req)),
			slog.Int("attempt", req.currentRetry+1),
		)

		resp, err := c.loader.run(attemptCtx, c, req)
		if err != nil {
			c.logger.Error("request failed building attempt",
				slog.String("method", string(req.Method)),
				slog.String("url", requestKey(req)),
				slog.String("error", err.Error()),
			)

			return nil, err
		}

		result := runValidators(c.validators, resp, req)

		if !result.retry {
			if result.response.IsError() {
				c.logger.Warn("request failed",
					slog.String("method", string(req.Method)),
					slog.String("url", requestKey(req)),
					slog.Int("attempts", req.currentRetry+1),
					slog.String("error", result.response.Error.Error()),
				)
			} else {
				c.logger.Debug("request succeeded",
					slog.String("method", string(req.Method)),
					slog.String("url", requestKey(req)),
					slog.Int("status", result.response.StatusCode.Int()),
				)
			}

			final := applyTransformers(c.transformers, result.response, req)

			return final, nil
		}

		if c.delegate.WillRetryWithStrategy != nil {
			c.delegate.WillRetryWithStrategy(req, result.strategy)
		}

		c.logger.Warn("retrying after failed attempt",
			slog.String("method", string(req.Method)),
			slog.String("url", requestKey(req)),
			slog.Int("attempt", req.currentRetry+1),
			slog.String("strategy", result.strategy.kind.String()),
		)

		nextResp, retryErr := c.executeRetry(attemptCtx, req, result.strategy)
		if retryErr != nil {
			c.logger.Error("request failed after retries",
				slog.String("method", string(req.Method)),
				slog.String("url", requestKey(req)),
				slog.Int("attempts", req.currentRetry+1),
				slog.String("error", retryErr.Error()),
			)

			failed := result.response
			failed.Error = asRealError(retryErr)

			return applyTransformers(c.transformers, failed, req), nil
		}

		if nextResp != nil {
			// The retry strategy itself produced a terminal response; return
			// it without looping again. executeRetry has no strategy that
			// does this today.
			return applyTransformers(c.transformers, nextResp, req), nil
		}

		req.currentRetry++
	}
}

// executeRetry carries out strategy's side effects (sleeping, running an
// alt-request, running an async task) before the caller loops back to
// re-fetch. It returns a non-nil *Response only when the strategy itself
// determined the chain is already done (there is currently no such case —
// reserved for forward compatibility with strategies that might short
// circuit), and a non-nil error when the strategy failed outright (e.g. the
// context was cancelled mid-sleep).
func (c *Client) executeRetry(ctx context.Context, req *Request, strategy RetryStrategy) (*Response, error) {
	switch strategy.kind {
	case RetryKindAfterAltRequest:
		return nil, c.runAltRequestStrategy(ctx, req, strategy)

	case RetryKindAfterTask:
		return nil, c.runAfterTaskStrategy(ctx, req, strategy)

	default:
		d, err := backoffDuration(strategy, req.currentRetry)
		if err != nil {
			return nil, err
		}

		return nil, sleepCtx(ctx, d)
	}
}

// runAltRequestStrategy executes strategy.altRequest (deduped via
// singleflight so concurrent retriers of the same Client trigger exactly
// one alt-request), invokes onAltResponse, then sleeps
// delayBeforeOriginal before returning so the caller re-fetches the
// original.
func (c *Client) runAltRequestStrategy(ctx context.Context, req *Request, strategy RetryStrategy) error {
	altResp, err, _ := c.altRefresh.Do(altRequestGroupKey(strategy.altRequest), func() (any, error) {
		resp, fetchErr := c.Fetch(ctx, strategy.altRequest)
		if fetchErr != nil {
			return nil, fetchErr
		}

		return resp, nil
	})

	if err != nil {
		return err
	}

	if strategy.onAltResponse != nil {
		if resp, ok := altResp.(*Response); ok {
			strategy.onAltResponse(resp)
		}
	}

	return sleepCtx(ctx, strategy.delayBeforeOriginal)
}

// altRequestGroupKey derives a singleflight dedup key from the alt
// request's method+URL, so refreshing two different alt-endpoints (e.g. two
// distinct auth servers) never serialize against each other.
func altRequestGroupKey(req *Request) string {
	return string(req.Method) + " " + requestKey(req)
}

// runAfterTaskStrategy executes strategy.asyncTask, swallowing (optionally
// reporting) its error, then sleeps strategy.delay.
func (c *Client) runAfterTaskStrategy(ctx context.Context, req *Request, strategy RetryStrategy) error {
	if strategy.asyncTask != nil {
		if taskErr := strategy.asyncTask(ctx, req); taskErr != nil && strategy.onTaskError != nil {
			strategy.onTaskError(taskErr)
		}
	}

	return sleepCtx(ctx, strategy.delay)
}

// FetchDecoded fetches req and decodes the successful response body as T
// via json.Unmarshal, after the validator chain and transformers have run.
// A decode failure surfaces as CategoryDecodeFailed on the response rather
// than as a Go error.
func FetchDecoded[T any](ctx context.Context, c *Client, req *Request) (T, *Response, error) {
	var zero T

	resp, err := c.Fetch(ctx, req)
	if err != nil {
		return zero, nil, err
	}

	if resp.IsError() {
		return zero, resp, nil
	}

	data, err := resp.Data()
	if err != nil {
		return zero, resp, err
	}

	var decoded T
	if err := json.Unmarshal(data, &decoded); err != nil {
		resp.Error = NewError(CategoryDecodeFailed, "decoding response body", err)

		return zero, resp, nil
	}

	return decoded, resp, nil
}
