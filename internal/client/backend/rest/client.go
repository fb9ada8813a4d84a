// Package rest talks to the hosted platform: a PostgREST-style relational
// API, a password-grant auth endpoint, and a websocket change feed. One
// Client carries the session; the gateway, auth, and feed surfaces all hang
// off it so a token refresh is visible everywhere at once.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/config"
	"github.com/dmitrijs2005/framefeed/internal/common"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

const requestTimeout = 15 * time.Second

// Client implements backend.Gateway and backend.Auth against the hosted
// platform. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     logging.Logger

	mu           sync.Mutex
	session      *backend.Session
	nextListener int
	listeners    map[int]func(*backend.Session)
}

func NewClient(cfg *config.Config, log logging.Logger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		http:      &http.Client{Timeout: requestTimeout},
		log:       log,
		listeners: map[int]func(*backend.Session){},
	}
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// do issues one request with auth headers. A 401 answer triggers a single
// token refresh and one retry, like the UI client does; a second 401 is
// surfaced to the caller.
func (c *Client) do(ctx context.Context, method, url string, body []byte, prefer string) (*http.Response, error) {
	return c.doWith(ctx, method, url, body, "application/json", prefer)
}

func (c *Client) doWith(ctx context.Context, method, url string, body []byte, contentType, prefer string) (*http.Response, error) {
	resp, err := c.attempt(ctx, method, url, body, contentType, prefer)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || c.refreshToken() == "" {
		return resp, nil
	}

	drain(resp)
	if err := c.refreshSession(ctx); err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}
	return c.attempt(ctx, method, url, body, contentType, prefer)
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte, contentType, prefer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	if token := c.accessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	return c.http.Do(req)
}

// statusError maps an unexpected response to the client's sentinel errors.
// The body is consumed for the message.
func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		sentinel = common.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		sentinel = common.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		sentinel = common.ErrConflict
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(text, "23505"):
		// PostgREST reports unique violations with the postgres error code
		sentinel = common.ErrConflict
	case resp.StatusCode >= 500:
		sentinel = common.ErrUnavailable
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, text)
	}
	return fmt.Errorf("status %d: %s: %w", resp.StatusCode, text, sentinel)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
