package capital

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is an authenticated Capital.com REST client.
type Client struct {
	apiKey     string
	email      string
	password   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	confirmRetries int
	confirmDelay   time.Duration

	mu            sync.RWMutex
	cst           string
	securityToken string

	logger *zap.Logger
}

// Config holds the credentials and transport settings of a Client.
type Config struct {
	APIKey         string
	Email          string
	Password       string
	BaseURL        string
	RequestsPerSec float64
	ConfirmRetries int
	ConfirmDelay   time.Duration
	Timeout        time.Duration
}

// APIError captures structured error info returned by Capital.com.
type APIError struct {
	StatusCode int
	ErrorCode  string `json:"errorCode"`
	Body       string
}

func (e *APIError) Error() string {
	if e == nil {
		return "capital API error"
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("capital API error %d: %s", e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("capital API error %d: %s", e.StatusCode, e.Body)
}

func parseAPIError(statusCode int, body []byte) error {
	var parsed struct {
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.ErrorCode != "" {
		return &APIError{StatusCode: statusCode, ErrorCode: parsed.ErrorCode, Body: string(body)}
	}
	return &APIError{StatusCode: statusCode, Body: string(body)}
}

// ErrNoSession is returned by authenticated calls made before CreateSession.
var ErrNoSession = errors.New("capital: no active session")

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ConfirmRetries <= 0 {
		cfg.ConfirmRetries = 6
	}
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = 500 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:         cfg.APIKey,
		email:          cfg.Email,
		password:       cfg.Password,
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(limit, 1),
		confirmRetries: cfg.ConfirmRetries,
		confirmDelay:   cfg.ConfirmDelay,
		logger:         logger,
	}
}

// CreateSession logs in and stores the session tokens.
func (c *Client) CreateSession(ctx context.Context) error {
	body := map[string]any{
		"identifier":        c.email,
		"password":          c.password,
		"encryptedPassword": false,
	}
	var resp struct {
		AccountType string `json:"accountType"`
		AccountInfo struct {
			Balance   float64 `json:"balance"`
			Available float64 `json:"available"`
		} `json:"accountInfo"`
		CurrentAccountID string `json:"currentAccountId"`
	}
	header, err := c.send(ctx, http.MethodPost, "/api/v1/session", nil, body, &resp, false)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	cst, token := header.Get("CST"), header.Get("X-SECURITY-TOKEN")
	if cst == "" || token == "" {
		return errors.New("create session: response carries no session tokens")
	}
	c.mu.Lock()
	c.cst, c.securityToken = cst, token
	c.mu.Unlock()

	c.logger.Info("Broker session created",
		zap.String("account", resp.CurrentAccountID),
		zap.String("accountType", resp.AccountType),
	)
	return nil
}

// RefreshSession replaces the session tokens with a fresh login.
func (c *Client) RefreshSession(ctx context.Context) error {
	if err := c.CreateSession(ctx); err != nil {
		return err
	}
	c.logger.Debug("Broker session refreshed")
	return nil
}

// DestroySession logs out. It is a no-op without a session.
func (c *Client) DestroySession(ctx context.Context) error {
	if !c.hasSession() {
		return nil
	}
	_, err := c.send(ctx, http.MethodDelete, "/api/v1/session", nil, nil, nil, true)

	c.mu.Lock()
	c.cst, c.securityToken = "", ""
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	c.logger.Info("Broker session destroyed")
	return nil
}

func (c *Client) hasSession() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cst != ""
}

// send performs one rate-limited request and decodes a JSON response into out.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, in, out any, auth bool) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CAP-API-KEY", c.apiKey)

	if auth {
		c.mu.RLock()
		cst, token := c.cst, c.securityToken
		c.mu.RUnlock()
		if cst == "" {
			return nil, ErrNoSession
		}
		req.Header.Set("CST", cst)
		req.Header.Set("X-SECURITY-TOKEN", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.Header, nil
}

// get is an authenticated GET.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.send(ctx, http.MethodGet, path, query, nil, out, true)
	return err
}
