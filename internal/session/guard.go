// Package session owns the authenticated/expired lifecycle of a client session.
//
// A Guard sits between the API client and the network. Outgoing requests get
// credentials attached; incoming responses are checked for 401, which moves the
// session to expired exactly once and cancels the session context that every
// in-flight request is bound to.
package session

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"civicfeed/internal/models"
	"civicfeed/internal/observability"

	"github.com/google/uuid"
)

// State is the session lifecycle state. It only moves forward.
type State int32

const (
	StateAuthenticated State = iota
	StateExpired
)

func (s State) String() string {
	if s == StateExpired {
		return "expired"
	}
	return "authenticated"
}

// RequestIDHeader carries a per-request uuid for log correlation.
const RequestIDHeader = "X-Request-ID"

var log = observability.NewComponentLogger("session")

// Guard attaches credentials to requests and turns any 401 into a global
// session expiry. It is safe for concurrent use.
type Guard struct {
	tokens TokenStore
	state  atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	hooks []func()
}

// NewGuard returns an authenticated guard reading credentials from tokens.
func NewGuard(tokens TokenStore) *Guard {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Guard{tokens: tokens, ctx: ctx, cancel: cancel}
}

// Tokens returns the credential store the guard reads from.
func (g *Guard) Tokens() TokenStore {
	return g.tokens
}

// OnExpired registers a hook run on every observed 401. Hooks typically
// navigate the UI to the login screen; they must not block.
func (g *Guard) OnExpired(fn func()) {
	g.mu.Lock()
	g.hooks = append(g.hooks, fn)
	g.mu.Unlock()
}

// Guard attaches the bearer token and a request id. The body is never read.
func (g *Guard) Guard(req *http.Request) (*http.Request, error) {
	if g.Expired() {
		return nil, models.ErrSessionExpired
	}
	out := req.Clone(req.Context())
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if token := g.tokens.Token(); token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return out, nil
}

// Observe inspects a response. A 401 expires the session and returns a
// SessionExpired error; every other response passes through unchanged.
func (g *Guard) Observe(resp *http.Response) (*http.Response, error) {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	g.Expire()
	return resp, models.NewSessionExpiredError(nil)
}

// Expire moves the session to expired. The transition happens once; token
// clearing, cancellation and hooks are repeated harmlessly on later calls.
func (g *Guard) Expire() {
	if g.state.CompareAndSwap(int32(StateAuthenticated), int32(StateExpired)) {
		observability.SessionExpirations.Inc()
		log.Info(context.Background(), "expired", map[string]any{"state": StateExpired.String()})
	}
	g.tokens.Clear()
	g.cancel()

	g.mu.Lock()
	hooks := append([]func(){}, g.hooks...)
	g.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Expired reports whether a 401 has been observed.
func (g *Guard) Expired() bool {
	return g.State() == StateExpired
}

// State returns the current lifecycle state.
func (g *Guard) State() State {
	return State(g.state.Load())
}

// Done is closed when the session expires.
func (g *Guard) Done() <-chan struct{} {
	return g.ctx.Done()
}

// Bind derives a context from parent that is also cancelled on expiry.
func (g *Guard) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	stop := context.AfterFunc(g.ctx, func() {
		cancel(models.ErrSessionExpired)
	})
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// Classify maps err to the failure taxonomy. Once the session has expired
// every failure is reported as SessionExpired, including requests that were
// cancelled because of the expiry.
func (g *Guard) Classify(err error) error {
	if err == nil {
		return nil
	}
	if models.IsSessionExpired(err) {
		return err
	}
	if g.Expired() {
		return models.NewSessionExpiredError(err)
	}
	if models.IsNetworkFailure(err) {
		return err
	}
	return models.NewNetworkFailure(models.ErrNetworkFailure.Message, err)
}
