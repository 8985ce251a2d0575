// Package remote implements store.Store over the postjournal REST API, so the
// client core can run against a server instead of a local database.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/auth"
	"github.com/starford/postjournal/internal/store"
)

// TokenSource returns the bearer token for a call. The owner the call is made
// for is available through auth.OwnerFrom(ctx). *session.FileAuth implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to a postjournal server.
type Client struct {
	base   string
	httpc  *http.Client
	tokens TokenSource
	logger *slog.Logger
}

var _ store.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the API mounted at baseURL (e.g.
// "http://localhost:8080/api"). tokens may be nil when the server runs with
// auth disabled.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		httpc:  &http.Client{Timeout: 30 * time.Second},
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorResponse struct {
	Error string `json:"error"`
}

// do sends one request as owner. in, when non-nil, is sent as JSON; out,
// when non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, owner, method, path string, in, out any) error {
	if err := store.RequireOwner(owner); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, owner, req); err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp, method, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, owner string, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(auth.WithOwner(ctx, owner))
	if err != nil {
		return fmt.Errorf("remote: token: %w", err)
	}
	if sub, err := auth.Subject(token); err != nil || sub != owner {
		return fmt.Errorf("remote: token is not for owner %s: %w", owner, apperr.ErrUnauthenticated)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func statusError(resp *http.Response, method, path string) error {
	var e errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &e) != nil || e.Error == "" {
		e.Error = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = apperr.ErrNotFound
	case http.StatusConflict:
		sentinel = apperr.ErrConflict
	case http.StatusBadRequest:
		sentinel = apperr.ErrInvalid
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = apperr.ErrUnauthenticated
	default:
		return fmt.Errorf("remote: %s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	}
	return fmt.Errorf("remote: %s %s: %s: %w", method, path, e.Error, sentinel)
}

func esc(s string) string { return url.PathEscape(s) }

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}
