package stub

import (
	"errors"
	"sync"
)

// UnhandledMode is the stubber's policy for a request matching no stub.
type UnhandledMode int

const (
	// OptOut errors on any request that matches no stub (the default).
	OptOut UnhandledMode = iota
	// OptIn passes unmatched requests through to the real transport.
	OptIn
)

// ErrNoResponseForMethod is returned when a Stub matches a request but has
// no StubResponse registered for its method.
var ErrNoResponseForMethod = errors.New("stub: matched stub has no response for this method")

// ErrUnhandled is returned (as the captured request's failure) when no stub
// or ignore rule matches and unhandledMode is OptOut.
var ErrUnhandled = errors.New("stub: no stub matched and unhandledMode is optout")

// Stub is a named set of matchers plus a response keyed by HTTP method.
type Stub struct {
	Name              string
	Matchers          []Matcher
	ResponsesByMethod map[string]StubResponse

	// dynamic, when set, builds the response per request instead of reading
	// ResponsesByMethod.
	dynamic func(req *CapturedRequest) StubResponse
}

// NewStub builds a Stub matching every one of matchers, responding resp to
// every method.
func NewStub(name string, resp StubResponse, matchers ...Matcher) *Stub {
	return &Stub{
		Name:     name,
		Matchers: matchers,
		ResponsesByMethod: map[string]StubResponse{
			"*": resp,
		},
	}
}

// NewStubForMethod builds a Stub that only responds to method.
func NewStubForMethod(name, method string, resp StubResponse, matchers ...Matcher) *Stub {
	return &Stub{
		Name:     name,
		Matchers: matchers,
		ResponsesByMethod: map[string]StubResponse{
			method: resp,
		},
	}
}

// NewDynamicStub builds a Stub whose response is computed per request via
// build, a response builder of the form (request) -> StubResponse.
func NewDynamicStub(name string, build func(req *CapturedRequest) StubResponse, matchers ...Matcher) *Stub {
	return &Stub{Name: name, Matchers: matchers, dynamic: build}
}

func (s *Stub) matches(req *CapturedRequest) bool {
	return matchAll(s.Matchers, req)
}

// responseFor resolves s's response for req, honoring a per-method
// registration, a "*" catch-all, or a dynamic builder.
func (s *Stub) responseFor(req *CapturedRequest) (StubResponse, error) {
	if s.dynamic != nil {
		return s.dynamic(req), nil
	}

	if resp, ok := s.ResponsesByMethod[req.Method]; ok {
		return resp, nil
	}

	if resp, ok := s.ResponsesByMethod["*"]; ok {
		return resp, nil
	}

	return StubResponse{}, ErrNoResponseForMethod
}

// Stubber is the process-wide interception registry: a singleton with an
// enabled flag and an unhandledMode. All mutation goes through
// Add/Remove/RemoveAll/Enable/Disable, which serialize on mu, since the
// stub list is read-many/write-few.
type Stubber struct {
	mu            sync.RWMutex
	stubs         []*Stub
	ignoreRules   []*Stub
	unhandledMode UnhandledMode
	enabled       bool
	echo          *Stub
}

// Default is the package-level singleton most callers use directly. Tests
// that need isolation should go through Session (session.go) rather than
// mutating Default from multiple goroutines concurrently.
var Default = New()

// New builds an independent Stubber, for callers who want isolation from the
// package-level Default (e.g. parallel test suites).
func New() *Stubber {
	return &Stubber{unhandledMode: OptOut}
}

// Enable turns interception on.
func (s *Stubber) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = true
}

// Disable turns interception off; RoundTrip calls pass straight through.
func (s *Stubber) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = false
}

// IsEnabled reports whether interception is currently active.
func (s *Stubber) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.enabled
}

// SetUnhandledMode sets the policy applied when no stub or ignore rule
// matches a request.
func (s *Stubber) SetUnhandledMode(mode UnhandledMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unhandledMode = mode
}

// Add registers stub, evaluated after every previously added stub: stub
// lookup iterates stubs in insertion order.
func (s *Stubber) Add(stub *Stub) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stubs = append(s.stubs, stub)
}

// AddIgnoreRule registers a Stub whose match causes the request to pass
// through to the real transport instead of being answered. Ignore rules
// work identically to stubs but cause the interceptor to pass the request
// through instead of answering it.
func (s *Stubber) AddIgnoreRule(rule *Stub) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ignoreRules = append(s.ignoreRules, rule)
}

// SetEcho installs the built-in echo stub, matched only after all explicit
// stubs fail to match. A match on the echo stub wins over the unhandled
// policy, so it is itself checked before falling back to unhandledMode.
func (s *Stubber) SetEcho(echo *Stub) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.echo = echo
}

// Remove deregisters stub, if present.
func (s *Stubber) Remove(stub *Stub) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stubs = removeStub(s.stubs, stub)
}

// RemoveAll clears every registered stub, ignore rule, and echo stub,
// leaving enabled/unhandledMode untouched.
func (s *Stubber) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stubs = nil
	s.ignoreRules = nil
	s.echo = nil
}

func removeStub(stubs []*Stub, target *Stub) []*Stub {
	out := stubs[:0:0]

	for _, st := range stubs {
		if st != target {
			out = append(out, st)
		}
	}

	return out
}

// lookupResult is what lookup hands the transport: either "pass through",
// or a resolved Stub plus its response for this request.
type lookupResult struct {
	passThrough bool
	stub        *Stub
	response    StubResponse
	err         error
}

// lookup resolves req against ignore rules, then stubs in insertion order,
// then the echo stub, then unhandledMode: a match wins over the unhandled
// policy at every stage.
func (s *Stubber) lookup(req *CapturedRequest) lookupResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.ignoreRules {
		if rule.matches(req) {
			return lookupResult{passThrough: true}
		}
	}

	for _, st := range s.stubs {
		if !st.matches(req) {
			continue
		}

		resp, err := st.responseFor(req)

		return lookupResult{stub: st, response: resp, err: err}
	}

	if s.echo != nil && s.echo.matches(req) {
		resp, err := s.echo.responseFor(req)

		return lookupResult{stub: s.echo, response: resp, err: err}
	}

	if s.unhandledMode == OptIn {
		return lookupResult{passThrough: true}
	}

	return lookupResult{err: ErrUnhandled}
}
