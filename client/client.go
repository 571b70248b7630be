package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLoginPath   = "/api/users/login"
	DefaultRefreshPath = "/api/users/refresh-token"

	requestIDHeader = "X-Request-Id"
)

// User is the principal returned alongside tokens. Some backend builds send the Mongo
// "_id" instead of "id"; both are accepted.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
		Role    string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	u.Role = raw.Role
	return nil
}

// LoginResult is the data payload of a successful login.
type LoginResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Validate rejects payloads that could not be rehydrated later: a session must carry
// both the access token and the principal's role.
func (r LoginResult) Validate() error {
	switch {
	case r.Token == "":
		return fmt.Errorf("%w: login response missing token", ErrMalformedResponse)
	case r.User.Role == "":
		return fmt.Errorf("%w: login response missing user role", ErrMalformedResponse)
	}
	return nil
}

// RefreshResult is the data payload of a successful refresh. Backends send the rotated
// token as newRefreshToken; RefreshToken is read as a fallback.
type RefreshResult struct {
	Token           string `json:"token"`
	NewRefreshToken string `json:"newRefreshToken"`
	RefreshToken    string `json:"refreshToken"`
	User            User   `json:"user"`
}

// NextRefreshToken returns the rotated refresh token, or "" when the backend sent none.
func (r RefreshResult) NextRefreshToken() string {
	if r.NewRefreshToken != "" {
		return r.NewRefreshToken
	}
	return r.RefreshToken
}

// Client calls the backend session endpoints.
type Client struct {
	base        *url.URL
	http        *http.Client
	timeout     time.Duration
	loginPath   string
	refreshPath string
	requestID   func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client. It has no
// effect when WithHTTPClient supplies a client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPaths overrides the login and refresh endpoint paths. Empty values keep defaults.
func WithPaths(loginPath, refreshPath string) Option {
	return func(c *Client) {
		if loginPath != "" {
			c.loginPath = loginPath
		}
		if refreshPath != "" {
			c.refreshPath = refreshPath
		}
	}
}

// WithRequestIDFunc replaces the X-Request-Id generator.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

// New returns a Client for the backend at baseURL, e.g. "https://api.immoworld.example".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("base url must be absolute")
	}

	c := &Client{
		base:        u,
		timeout:     15 * time.Second,
		loginPath:   DefaultLoginPath,
		refreshPath: DefaultRefreshPath,
		requestID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Endpoint resolves path against the base URL.
func (c *Client) Endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	res, err := postJSON[LoginResult](ctx, c, c.loginPath, body)
	if err != nil {
		return LoginResult{}, err
	}
	if err := res.Validate(); err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	body := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}

	res, err := postJSON[RefreshResult](ctx, c, c.refreshPath, body)
	if err != nil {
		return RefreshResult{}, err
	}
	if res.Token == "" {
		return RefreshResult{}, fmt.Errorf("%w: refresh response missing token", ErrMalformedResponse)
	}
	return res, nil
}

func postJSON[T any](ctx context.Context, c *Client, path string, payload any) (T, error) {
	var zero T

	data, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(path), bytes.NewReader(data))
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, c.requestID())

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return Decode[T](resp)
}
