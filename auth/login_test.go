package auth

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jekyllbuildr/buildr/session"
	"github.com/jekyllbuildr/buildr/store"
)

// fakeChecker answers status polls from a script.
type fakeChecker struct {
	mu         sync.Mutex
	calls      int
	sessionIDs []string
	respond    func(call int) (LoginStatus, error)
}

func (f *fakeChecker) CheckLogin(_ context.Context, sessionID string) (LoginStatus, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.sessionIDs = append(f.sessionIDs, sessionID)
	f.mu.Unlock()
	return f.respond(call)
}

func (f *fakeChecker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	root     string
	sessions *session.Store
	checker  *fakeChecker
	out      *bytes.Buffer
	opened   []string
	states   []State
	n        *Negotiator
}

func newHarness(t *testing.T, respond func(call int) (LoginStatus, error), cfg LoginConfig) *harness {
	t.Helper()
	h := &harness{
		root:    t.TempDir(),
		checker: &fakeChecker{respond: respond},
		out:     &bytes.Buffer{},
	}
	h.sessions = session.New(store.New(h.root), nil)
	if cfg.LoginURL == "" {
		cfg.LoginURL = "https://buildr.example/cli-login"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	h.n = NewNegotiator(h.sessions, h.checker, cfg,
		WithOutput(h.out),
		WithBrowserOpener(func(u string) error {
			h.opened = append(h.opened, u)
			return nil
		}),
		WithStateHook(func(s State) { h.states = append(h.states, s) }),
	)
	return h
}

func pendingThenComplete(t *testing.T, completeOn int, token string) func(int) (LoginStatus, error) {
	return func(call int) (LoginStatus, error) {
		if call < completeOn {
			return LoginStatus{Status: StatusPending}, nil
		}
		return LoginStatus{
			Status: StatusCompleted,
			Token:  token,
			User:   &LoginUser{DisplayName: "Ada", Role: "pro"},
		}, nil
	}
}

func TestEnsureSession_ReusesValidCredential(t *testing.T) {
	h := newHarness(t, func(int) (LoginStatus, error) {
		t.Fatal("no status poll expected")
		return LoginStatus{}, nil
	}, LoginConfig{})
	ctx := context.Background()

	stored := session.Credential{IDToken: tokenExpiringAt(t, time.Now().Add(time.Hour)), DisplayName: "Ada"}
	if err := h.sessions.Save(ctx, stored); err != nil {
		t.Fatal(err)
	}

	got, err := h.n.EnsureSession(ctx)
	if err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}
	if got != stored {
		t.Errorf("EnsureSession() = %+v, want %+v", got, stored)
	}
	if len(h.opened) != 0 {
		t.Error("browser should not be opened for a valid session")
	}
	want := []State{StateCheckExisting, StateValid}
	if !equalStates(h.states, want) {
		t.Errorf("states = %v, want %v", h.states, want)
	}
}

func TestEnsureSession_LoginCompletesOnThirdPoll(t *testing.T) {
	newToken := tokenExpiringAt(t, time.Now().Add(time.Hour))
	h := newHarness(t, pendingThenComplete(t, 3, newToken), LoginConfig{})
	ctx := context.Background()

	cred, err := h.n.EnsureSession(ctx)
	if err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}

	want := session.Credential{IDToken: newToken, DisplayName: "Ada", Role: "pro"}
	if cred != want {
		t.Errorf("credential = %+v, want %+v", cred, want)
	}
	if calls := h.checker.Calls(); calls != 3 {
		t.Errorf("status polls = %d, want 3", calls)
	}

	persisted, ok := h.sessions.Load(ctx)
	if !ok || persisted != want {
		t.Errorf("persisted = %+v (ok=%v), want %+v", persisted, ok, want)
	}

	wantStates := []State{StateCheckExisting, StateStartLogin, StatePolling, StateValid}
	if !equalStates(h.states, wantStates) {
		t.Errorf("states = %v, want %v", h.states, wantStates)
	}

	if len(h.opened) != 1 {
		t.Fatalf("browser opened %d times, want 1", len(h.opened))
	}
	u, err := url.Parse(h.opened[0])
	if err != nil {
		t.Fatal(err)
	}
	sessionID := u.Query().Get("sessionId")
	if len(sessionID) != 64 || !strings.HasPrefix(h.opened[0], "https://buildr.example/cli-login?") {
		t.Errorf("unexpected login url %q", h.opened[0])
	}
	for _, id := range h.checker.sessionIDs {
		if id != sessionID {
			t.Errorf("poll used session id %q, want %q", id, sessionID)
		}
	}
	if !strings.Contains(h.out.String(), h.opened[0]) {
		t.Error("login url should be printed for the user")
	}
}

func TestEnsureSession_ExpiredCredentialRefreshed(t *testing.T) {
	newToken := tokenExpiringAt(t, time.Now().Add(time.Hour))
	h := newHarness(t, pendingThenComplete(t, 1, newToken), LoginConfig{})
	ctx := context.Background()

	expired := session.Credential{IDToken: tokenExpiringAt(t, time.Now().Add(-time.Minute))}
	if err := h.sessions.Save(ctx, expired); err != nil {
		t.Fatal(err)
	}

	cred, err := h.n.EnsureSession(ctx)
	if err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}
	if cred.IDToken != newToken {
		t.Error("expected a fresh token after expiry")
	}
	if h.checker.Calls() != 1 {
		t.Errorf("status polls = %d, want 1", h.checker.Calls())
	}
}

func TestEnsureSession_MalformedCredentialDeleted(t *testing.T) {
	h := newHarness(t, func(int) (LoginStatus, error) {
		return LoginStatus{Status: StatusPending}, nil
	}, LoginConfig{Timeout: 30 * time.Millisecond})
	ctx := context.Background()

	if err := h.sessions.Save(ctx, session.Credential{IDToken: "garbage"}); err != nil {
		t.Fatal(err)
	}

	if _, err := h.n.EnsureSession(ctx); !errors.Is(err, ErrLoginTimeout) {
		t.Fatalf("EnsureSession() error = %v, want ErrLoginTimeout", err)
	}
	if _, ok := h.sessions.Load(ctx); ok {
		t.Error("malformed credential should have been deleted")
	}
}

func TestLogin_TimeoutLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t, func(int) (LoginStatus, error) {
		return LoginStatus{Status: StatusPending}, nil
	}, LoginConfig{Timeout: 40 * time.Millisecond})
	ctx := context.Background()

	existing := session.Credential{IDToken: tokenExpiringAt(t, time.Now().Add(time.Hour)), DisplayName: "Old"}
	if err := h.sessions.Save(ctx, existing); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(filepath.Join(h.root, session.FileName))
	if err != nil {
		t.Fatal(err)
	}

	_, err = h.n.Login(ctx)
	if !errors.Is(err, ErrLoginTimeout) {
		t.Fatalf("Login() error = %v, want ErrLoginTimeout", err)
	}

	after, err := os.ReadFile(filepath.Join(h.root, session.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("session file changed after timed out login")
	}
	if last := h.states[len(h.states)-1]; last != StateTimedOut {
		t.Errorf("final state = %v, want %v", last, StateTimedOut)
	}
	if h.checker.Calls() == 0 {
		t.Error("expected at least one status poll before timing out")
	}
}

func TestLogin_TimesOutOnDeadline(t *testing.T) {
	tests := []struct {
		name    string
		respond func(int) (LoginStatus, error)
		config  LoginConfig
	}{
		{
			name: "during poll wait",
			respond: func(int) (LoginStatus, error) {
				return LoginStatus{Status: StatusPending}, nil
			},
			config: LoginConfig{PollInterval: time.Second, Timeout: 30 * time.Millisecond},
		},
		{
			name: "during status check",
			respond: func(int) (LoginStatus, error) {
				time.Sleep(time.Second)
				return LoginStatus{Status: StatusPending}, nil
			},
			config: LoginConfig{RequestTimeout: 5 * time.Second, Timeout: 30 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.respond, tt.config)

			start := time.Now()
			_, err := h.n.Login(context.Background())
			if !errors.Is(err, ErrLoginTimeout) {
				t.Fatalf("Login() error = %v, want ErrLoginTimeout", err)
			}
			if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
				t.Errorf("Login() took %v, want close to the 30ms timeout", elapsed)
			}
			if last := h.states[len(h.states)-1]; last != StateTimedOut {
				t.Errorf("final state = %v, want %v", last, StateTimedOut)
			}
		})
	}
}

func TestLogin_PollErrorsAbsorbed(t *testing.T) {
	newToken := tokenExpiringAt(t, time.Now().Add(time.Hour))
	h := newHarness(t, func(call int) (LoginStatus, error) {
		switch call {
		case 1:
			return LoginStatus{}, errors.New("connection refused")
		case 2:
			return LoginStatus{Status: StatusCompleted}, nil // no token
		default:
			return LoginStatus{Status: StatusCompleted, Token: newToken}, nil
		}
	}, LoginConfig{})

	cred, err := h.n.Login(context.Background())
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if cred.IDToken != newToken {
		t.Errorf("IDToken = %q", cred.IDToken)
	}
	if h.checker.Calls() != 3 {
		t.Errorf("status polls = %d, want 3", h.checker.Calls())
	}
}

func TestLogin_SlowPollBoundedByRequestTimeout(t *testing.T) {
	newToken := tokenExpiringAt(t, time.Now().Add(time.Hour))
	h := newHarness(t, func(call int) (LoginStatus, error) {
		if call == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		return LoginStatus{Status: StatusCompleted, Token: newToken}, nil
	}, LoginConfig{RequestTimeout: 10 * time.Millisecond})

	start := time.Now()
	if _, err := h.n.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("Login() took %v; slow poll was not cut off", elapsed)
	}
}

func TestLogin_ContextCancelled(t *testing.T) {
	h := newHarness(t, func(int) (LoginStatus, error) {
		return LoginStatus{Status: StatusPending}, nil
	}, LoginConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := h.n.Login(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Login() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestLogin_BrowserFailureNotFatal(t *testing.T) {
	newToken := tokenExpiringAt(t, time.Now().Add(time.Hour))
	var out bytes.Buffer
	sessions := session.New(store.New(t.TempDir()), nil)
	n := NewNegotiator(sessions, &fakeChecker{respond: pendingThenComplete(t, 1, newToken)},
		LoginConfig{LoginURL: "https://buildr.example/cli-login", PollInterval: time.Millisecond},
		WithOutput(&out),
		WithBrowserOpener(func(string) error { return errors.New("no display") }),
	)

	if _, err := n.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !strings.Contains(out.String(), "no display") {
		t.Errorf("browser failure should be reported, output: %q", out.String())
	}
}

func TestNegotiator_CurrentAndLogout(t *testing.T) {
	h := newHarness(t, func(int) (LoginStatus, error) { return LoginStatus{}, nil }, LoginConfig{})
	ctx := context.Background()

	if _, err := h.n.Current(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Current() error = %v, want ErrNotLoggedIn", err)
	}

	_ = h.sessions.Save(ctx, session.Credential{IDToken: tokenExpiringAt(t, time.Now().Add(-time.Hour)), DisplayName: "Ada"})
	id, err := h.n.Current(ctx)
	if !errors.Is(err, ErrTokenExpired) || id == nil || id.DisplayName != "Ada" {
		t.Errorf("Current() = %+v, %v; want identity with ErrTokenExpired", id, err)
	}

	if err := h.n.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok := h.sessions.Load(ctx); ok {
		t.Error("credential still present after Logout")
	}
}

func TestNegotiator_Token(t *testing.T) {
	h := newHarness(t, nil, LoginConfig{})
	ctx := context.Background()
	valid := tokenExpiringAt(t, time.Now().Add(time.Hour))
	_ = h.sessions.Save(ctx, session.Credential{IDToken: valid})

	got, err := h.n.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != valid {
		t.Error("Token() did not return the stored token")
	}
}

func TestLoginConfig_Defaults(t *testing.T) {
	n := NewNegotiator(nil, nil, LoginConfig{})
	cfg := n.Config()
	if cfg.PollInterval != 3*time.Second || cfg.Timeout != 5*time.Minute || cfg.RequestTimeout != 5*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
