package stub

// TestingT is the subset of *testing.T this package depends on, so session.go
// does not import the testing package directly (keeping it usable from
// non-test helper code too).
type TestingT interface {
	Cleanup(func())
}

// Session is a scoped handle onto a Stubber: it snapshots enough state to
// restore it on Stop, so tests can install and revert stubs without relying
// on implicit setup/teardown.
type Session struct {
	stubber *Stubber

	prevStubs       []*Stub
	prevIgnoreRules []*Stub
	prevEcho        *Stub
	prevMode        UnhandledMode
	prevEnabled     bool
}

// Start begins a scoped stubbing session against Default, enabling
// interception and registering t.Cleanup to call Stop automatically.
func Start(t TestingT) *Session {
	return StartOn(t, Default)
}

// StartOn begins a scoped stubbing session against a specific Stubber
// (typically one built with New() for test isolation rather than the shared
// Default).
func StartOn(t TestingT, stubber *Stubber) *Session {
	stubber.mu.RLock()
	session := &Session{
		stubber:         stubber,
		prevStubs:       append([]*Stub(nil), stubber.stubs...),
		prevIgnoreRules: append([]*Stub(nil), stubber.ignoreRules...),
		prevEcho:        stubber.echo,
		prevMode:        stubber.unhandledMode,
		prevEnabled:     stubber.enabled,
	}
	stubber.mu.RUnlock()

	stubber.Enable()

	if t != nil {
		t.Cleanup(session.Stop)
	}

	return session
}

// Add registers stub for the duration of the session.
func (s *Session) Add(stub *Stub) { s.stubber.Add(stub) }

// AddIgnoreRule registers an ignore rule for the duration of the session.
func (s *Session) AddIgnoreRule(rule *Stub) { s.stubber.AddIgnoreRule(rule) }

// SetEcho installs the echo stub for the duration of the session.
func (s *Session) SetEcho(echo *Stub) { s.stubber.SetEcho(echo) }

// SetUnhandledMode overrides the unhandled-request policy for the duration
// of the session.
func (s *Session) SetUnhandledMode(mode UnhandledMode) { s.stubber.SetUnhandledMode(mode) }

// Stubber returns the underlying Stubber this session wraps, for building a
// realhttp.Client transport via stub.NewTransport.
func (s *Session) Stubber() *Stubber { return s.stubber }

// Stop restores the Stubber to its pre-Start state: prior stubs, ignore
// rules, echo stub, unhandled mode, and enabled flag.
func (s *Session) Stop() {
	s.stubber.mu.Lock()
	defer s.stubber.mu.Unlock()

	s.stubber.stubs = s.prevStubs
	s.stubber.ignoreRules = s.prevIgnoreRules
	s.stubber.echo = s.prevEcho
	s.stubber.unhandledMode = s.prevMode
	s.stubber.enabled = s.prevEnabled
}
