package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/models"
)

var (
	ErrUnauthorized = errors.New("telemetry api: unauthorized")
	ErrNotFound     = errors.New("telemetry api: not found")
)

type Options struct {
	BaseURL  string
	Token    string
	Username string
	Password string
	// RequestsPerSecond paces outgoing calls; zero or less disables pacing.
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client reads sessions from the telemetry API. It logs in lazily with
// username and password unless a token is preset.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	token string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type sessionsResponse struct {
	Sessions []models.Session `json:"sessions"`
}

var _ input.Provider = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, fmt.Errorf("invalid scheme in baseURL")
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("baseURL has no host")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}

		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    parsed.String(),
		username:   opts.Username,
		password:   opts.Password,
		token:      opts.Token,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// Login exchanges the configured credentials for a bearer token.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" {
		return fmt.Errorf("%w: no token or credentials configured", ErrUnauthorized)
	}

	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return fmt.Errorf("marshaling login request: %w", err)
	}

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/token", bytes.NewReader(body), "", &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if resp.Token == "" {
		return fmt.Errorf("login: %w: empty token", ErrUnauthorized)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()

	return nil
}

func (c *Client) ListSessions(ctx context.Context, filter input.Filter) ([]models.Session, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if filter.App != "" {
		query.Set("app", filter.App)
	}

	if filter.Device != "" {
		query.Set("device", filter.Device)
	}

	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/v1/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp sessionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, token, &resp); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	// the API filters by app and device; ids and the limit are applied here too
	return input.Apply(resp.Sessions, input.Filter{IDs: filter.IDs, Limit: filter.Limit}), nil
}

func (c *Client) GetSession(ctx context.Context, id string) (models.Session, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, token, &session); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %w: %s", input.ErrSessionNotFound, err, id)
		}

		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	return session, nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token != "" {
		return token, nil
	}

	if err := c.Login(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, token string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req) // #nosec G704: baseURL validated in constructor
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("request failed: %s - %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	return nil
}
