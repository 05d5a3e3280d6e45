// Package client is a Go SDK for the Vitalia API.
//
// A Client owns one session. Its lifecycle is explicit: it starts
// unauthenticated (or is initialized from a stored token with Restore),
// becomes authenticated on SignIn or SignUp, and is torn down with Close.
// After Close every call fails with ErrClosed and results of requests that
// were still in flight are discarded.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vitalia/portal/internal/domain/account"
	"github.com/vitalia/portal/internal/domain/health"
	"github.com/vitalia/portal/internal/domain/insights"
	"github.com/vitalia/portal/internal/domain/profile"
)

type (
	User          = account.User
	Session       = account.Session
	SignUpRequest = account.SignUpRequest
	Profile       = profile.Profile
	SymptomInput  = health.SymptomInput
	SymptomLog    = health.SymptomLog
	BMIInput      = health.BMIInput
	BMIRecord     = health.BMIRecord
	BMIResult     = health.BMIResult
	Vitals        = health.HealthVitals
	RiskVitals    = insights.Vitals
	Risk          = insights.RiskAssessment
	Extraction    = insights.ClinicalExtraction
	Snapshot      = insights.PatientSnapshot
	RundownVitals = insights.RundownVitals
)

var (
	ErrClosed          = errors.New("client: closed")
	ErrNotSignedIn     = errors.New("client: not signed in")
	ErrAlreadySignedIn = errors.New("client: already signed in")
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vitalia: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// errorBody covers both error envelopes the API uses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Config struct {
	BaseURL string
	// APIKey is the deployment's publishable key, sent as the apikey header.
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	http *resty.Client

	mu        sync.RWMutex
	state     State
	token     string
	user      *User
	profile   *Profile
	listeners []func(State)
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rc.SetHeader("apikey", cfg.APIKey)
	}
	return &Client{http: rc, state: StateUnauthenticated}
}

// request builds a call bound to ctx that carries the session token when
// there is one.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == StateClosed {
		return nil, ErrClosed
	}
	r := c.http.R().SetContext(ctx)
	if c.token != "" {
		r.SetAuthToken(c.token)
	}
	return r, nil
}

// do sends the request and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	r, err := c.request(ctx)
	if err != nil {
		return err
	}
	var eb errorBody
	r.SetError(&eb)
	if body != nil {
		r.SetBody(body)
	}
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if c.State() == StateClosed {
		return ErrClosed
	}
	if resp.IsError() {
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		if msg == "" {
			msg = resp.Status()
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}
