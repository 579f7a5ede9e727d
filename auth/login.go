package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/jekyllbuildr/buildr/observe"
	"github.com/jekyllbuildr/buildr/resilience"
	"github.com/jekyllbuildr/buildr/session"
)

// Login status values reported by the service.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Poll outcomes recorded in metrics besides the service status.
const (
	pollError = "error"
)

// LoginUser describes the user attached to a completed login.
type LoginUser struct {
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// LoginStatus is the service's answer to a login status poll.
type LoginStatus struct {
	Status string     `json:"status"`
	Token  string     `json:"token,omitempty"`
	User   *LoginUser `json:"user,omitempty"`
}

// Completed reports whether the login finished.
func (s LoginStatus) Completed() bool {
	return s.Status == StatusCompleted
}

// StatusChecker asks the service whether a login session has completed.
type StatusChecker interface {
	CheckLogin(ctx context.Context, sessionID string) (LoginStatus, error)
}

// State is a step of the login negotiation.
type State int

const (
	StateCheckExisting State = iota
	StateStartLogin
	StatePolling
	StateValid
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateCheckExisting:
		return "check_existing"
	case StateStartLogin:
		return "start_login"
	case StatePolling:
		return "polling"
	case StateValid:
		return "valid"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// LoginConfig configures the login negotiation.
type LoginConfig struct {
	// LoginURL is the login page; the session identifier is appended as
	// the sessionId query parameter.
	LoginURL string

	// PollInterval is the wait before each status poll.
	// Default: 3 seconds
	PollInterval time.Duration

	// Timeout bounds the whole login.
	// Default: 5 minutes
	Timeout time.Duration

	// RequestTimeout bounds each status poll.
	// Default: 5 seconds
	RequestTimeout time.Duration
}

func (c *LoginConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = resilience.DefaultTimeout
	}
}

// BrowserOpener opens a URL for the user.
type BrowserOpener func(url string) error

// Negotiator produces a valid credential, logging in when needed.
//
// Contract:
//   - Concurrency: safe for concurrent use; negotiations are serialized.
//   - Context: cancellation aborts a login in progress with ctx.Err().
//   - Errors: ErrLoginTimeout leaves the session store untouched.
type Negotiator struct {
	sessions *session.Store
	checker  StatusChecker
	config   LoginConfig

	out          io.Writer
	openBrowser  BrowserOpener
	logger       observe.Logger
	metrics      observe.Metrics
	now          func() time.Time
	newSessionID func() (string, error)
	onState      func(State)

	mu sync.Mutex
}

// NegotiatorOption configures a Negotiator.
type NegotiatorOption func(*Negotiator)

// WithOutput sets where login instructions are printed. Default: os.Stderr.
func WithOutput(w io.Writer) NegotiatorOption {
	return func(n *Negotiator) { n.out = w }
}

// WithBrowserOpener replaces the system browser launcher.
func WithBrowserOpener(open BrowserOpener) NegotiatorOption {
	return func(n *Negotiator) { n.openBrowser = open }
}

// WithLogger sets the logger.
func WithLogger(logger observe.Logger) NegotiatorOption {
	return func(n *Negotiator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for status polls.
func WithMetrics(metrics observe.Metrics) NegotiatorOption {
	return func(n *Negotiator) {
		if metrics != nil {
			n.metrics = metrics
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) NegotiatorOption {
	return func(n *Negotiator) { n.now = now }
}

// WithSessionIDFunc overrides session identifier generation.
func WithSessionIDFunc(fn func() (string, error)) NegotiatorOption {
	return func(n *Negotiator) { n.newSessionID = fn }
}

// WithStateHook registers a function called on every state transition.
func WithStateHook(fn func(State)) NegotiatorOption {
	return func(n *Negotiator) { n.onState = fn }
}

// NewNegotiator creates a Negotiator over the given session store and status checker.
func NewNegotiator(sessions *session.Store, checker StatusChecker, config LoginConfig, opts ...NegotiatorOption) *Negotiator {
	config.applyDefaults()
	n := &Negotiator{
		sessions:     sessions,
		checker:      checker,
		config:       config,
		out:          os.Stderr,
		openBrowser:  browser.OpenURL,
		logger:       observe.NopLogger(),
		metrics:      observe.NopMetrics(),
		now:          time.Now,
		newSessionID: NewSessionID,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Config returns the effective login configuration.
func (n *Negotiator) Config() LoginConfig {
	return n.config
}

// EnsureSession returns the stored credential when its token is unexpired
// and runs a login otherwise. Undecodable or expired credentials are
// deleted before the login starts.
func (n *Negotiator) EnsureSession(ctx context.Context) (session.Credential, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.enter(StateCheckExisting)
	if cred, ok := n.checkExisting(ctx); ok {
		n.enter(StateValid)
		return cred, nil
	}
	return n.login(ctx)
}

// Login runs the login protocol regardless of any stored credential.
func (n *Negotiator) Login(ctx context.Context) (session.Credential, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.login(ctx)
}

// Logout deletes the stored credential.
func (n *Negotiator) Logout(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessions.Delete(ctx)
}

// Current returns the identity of the stored credential without logging in.
// Expired credentials are returned together with ErrTokenExpired.
func (n *Negotiator) Current(ctx context.Context) (*Identity, error) {
	cred, ok := n.sessions.Load(ctx)
	if !ok || cred.Empty() {
		return nil, ErrNotLoggedIn
	}
	id, err := NewIdentity(cred)
	if err != nil {
		return nil, err
	}
	if id.IsExpired(n.now()) {
		return id, ErrTokenExpired
	}
	return id, nil
}

// Token implements TokenSource.
func (n *Negotiator) Token(ctx context.Context) (string, error) {
	cred, err := n.EnsureSession(ctx)
	if err != nil {
		return "", err
	}
	return cred.IDToken, nil
}

func (n *Negotiator) enter(s State) {
	if n.onState != nil {
		n.onState(s)
	}
}

func (n *Negotiator) checkExisting(ctx context.Context) (session.Credential, bool) {
	cred, ok := n.sessions.Load(ctx)
	if !ok {
		return session.Credential{}, false
	}

	claims, err := DecodeClaims(cred.IDToken)
	if err != nil {
		n.logger.Warn(ctx, "stored session unreadable, logging in again", observe.Err(err))
		n.discard(ctx)
		return session.Credential{}, false
	}
	if claims.Expired(n.now()) {
		n.logger.Info(ctx, "session expired, logging in again", observe.F("expired_at", claims.ExpiresAt))
		n.discard(ctx)
		return session.Credential{}, false
	}
	return cred, true
}

func (n *Negotiator) discard(ctx context.Context) {
	if err := n.sessions.Delete(ctx); err != nil {
		n.logger.Warn(ctx, "failed to delete stale session", observe.Err(err))
	}
}

func (n *Negotiator) login(ctx context.Context) (session.Credential, error) {
	n.enter(StateStartLogin)

	sessionID, err := n.newSessionID()
	if err != nil {
		return session.Credential{}, err
	}
	loginURL, err := n.loginURL(sessionID)
	if err != nil {
		return session.Credential{}, err
	}

	fmt.Fprintf(n.out, "Opening your browser to log in.\nIf it does not open, visit:\n\n  %s\n\n", loginURL)
	if err := n.openBrowser(loginURL); err != nil {
		fmt.Fprintf(n.out, "Could not open a browser (%v). Open the link above manually.\n", err)
		n.logger.Debug(ctx, "browser open failed", observe.Err(err))
	}

	n.enter(StatePolling)
	cred, err := n.poll(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrLoginTimeout) {
			n.enter(StateTimedOut)
		}
		return session.Credential{}, err
	}

	if err := n.sessions.Save(ctx, cred); err != nil {
		n.logger.Warn(ctx, "failed to persist session", observe.Err(err))
	}
	n.enter(StateValid)
	return cred, nil
}

func (n *Negotiator) loginURL(sessionID string) (string, error) {
	u, err := url.Parse(n.config.LoginURL)
	if err != nil {
		return "", fmt.Errorf("auth: login url: %w", err)
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// poll waits PollInterval before each status check until the login
// completes, Timeout elapses, or ctx ends. The deadline also cuts short a
// wait or a status check in flight.
func (n *Negotiator) poll(ctx context.Context, sessionID string) (session.Credential, error) {
	deadline, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	// expired maps the end of deadline to the caller's error or a timeout.
	expired := func() (session.Credential, error) {
		if err := ctx.Err(); err != nil {
			return session.Credential{}, err
		}
		return session.Credential{}, ErrLoginTimeout
	}

	timer := time.NewTimer(n.config.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-deadline.Done():
			return expired()
		case <-timer.C:
		}

		status, err := n.check(deadline, sessionID)
		switch {
		case err != nil:
			if deadline.Err() != nil {
				return expired()
			}
			n.metrics.RecordLoginPoll(ctx, pollError)
			n.logger.Debug(ctx, "login status poll failed", observe.Err(err))
		case status.Completed() && status.Token == "":
			n.metrics.RecordLoginPoll(ctx, status.Status)
			n.logger.Warn(ctx, "login status check", observe.Err(ErrMissingToken))
		default:
			n.metrics.RecordLoginPoll(ctx, status.Status)
			if status.Completed() {
				cred := session.Credential{IDToken: status.Token}
				if status.User != nil {
					cred.DisplayName = status.User.DisplayName
					cred.Role = status.User.Role
				}
				return cred, nil
			}
		}

		timer.Reset(n.config.PollInterval)
	}
}

func (n *Negotiator) check(ctx context.Context, sessionID string) (LoginStatus, error) {
	result := make(chan LoginStatus, 1)
	err := resilience.ExecuteWithTimeout(ctx, n.config.RequestTimeout, func(ctx context.Context) error {
		status, err := n.checker.CheckLogin(ctx, sessionID)
		if err != nil {
			return err
		}
		result <- status
		return nil
	})
	if err != nil {
		return LoginStatus{}, err
	}
	return <-result, nil
}

var _ TokenSource = (*Negotiator)(nil)
