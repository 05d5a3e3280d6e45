package client

import (
	"context"
	"net/http"

	"github.com/vitalia/portal/internal/domain/account"
)

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unauthenticated"
	}
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Token returns the current access token, empty when signed out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Profile returns the signed-in user's profile as of the last sign-in,
// Restore or RefreshProfile.
func (c *Client) Profile() *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// OnStateChange registers fn to be called after every transition. fn runs on
// the goroutine that caused the transition.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// transition applies set under the lock and notifies listeners when the
// state changed. It is a no-op once the client is closed.
func (c *Client) transition(set func()) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	before := c.state
	set()
	after := c.state
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	if before != after {
		for _, fn := range listeners {
			fn(after)
		}
	}
}

func (c *Client) authenticate(s *Session) {
	c.transition(func() {
		c.state = StateAuthenticated
		c.token = s.AccessToken
		c.user = s.User
		c.profile = s.Profile
	})
}

func (c *Client) clear() {
	c.transition(func() {
		c.state = StateUnauthenticated
		c.token = ""
		c.user = nil
		c.profile = nil
	})
}

// Restore initializes the client from a previously issued token. A token the
// server no longer accepts leaves the client unauthenticated and returns
// ErrNotSignedIn.
func (c *Client) Restore(ctx context.Context, token string) error {
	c.transition(func() { c.token = token })

	var cur struct {
		User    *User    `json:"user"`
		Profile *Profile `json:"profile"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/v1/session", nil, &cur)
	if IsStatus(err, http.StatusUnauthorized) {
		c.clear()
		return ErrNotSignedIn
	}
	if err != nil {
		c.clear()
		return err
	}
	c.authenticate(&Session{AccessToken: token, User: cur.User, Profile: cur.Profile})
	return nil
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	if c.State() == StateAuthenticated {
		return nil, ErrAlreadySignedIn
	}
	var s Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", req, &s); err != nil {
		return nil, err
	}
	c.authenticate(&s)
	return &s, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if c.State() == StateAuthenticated {
		return nil, ErrAlreadySignedIn
	}
	var s Session
	body := account.CredentialsRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", body, &s); err != nil {
		return nil, err
	}
	c.authenticate(&s)
	return &s, nil
}

// SignOut revokes the session on the server and clears it locally. The local
// session is cleared even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	if c.State() != StateAuthenticated {
		return ErrNotSignedIn
	}
	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	c.clear()
	return err
}

// RecoverPassword asks the server to email a reset link. It succeeds whether
// or not the address is registered.
func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", account.RecoverRequest{Email: email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/reset", account.ResetRequest{Token: token, Password: password}, nil)
}

// RefreshProfile reloads the signed-in user's profile.
func (c *Client) RefreshProfile(ctx context.Context) (*Profile, error) {
	if c.State() != StateAuthenticated {
		return nil, ErrNotSignedIn
	}
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &p); err != nil {
		return nil, err
	}
	c.transition(func() { c.profile = &p })
	return &p, nil
}

// Close tears the client down. It does not revoke the server session; call
// SignOut first for that.
func (c *Client) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.token = ""
	c.user = nil
	c.profile = nil
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(StateClosed)
	}
}
