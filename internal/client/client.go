// Package client is the HTTP client for the files API, used by the CLI and
// the mounted view.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
	"github.com/sorenbs/ai-chatbot-full/internal/protocol"
	"github.com/sorenbs/ai-chatbot-full/internal/retry"
)

// StatusError is a non-2xx answer from the files API.
type StatusError struct {
	Status  int
	Message string
	Details string
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("files api %d: %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("files api %d: %s", e.Status, e.Message)
}

// AsStatus checks if an error is a StatusError and returns it.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	AuthToken   string
}

// Client talks to the files API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config

	mu        sync.RWMutex
	online    bool
	lastPing  time.Time
	authToken string
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		online:      true,
		authToken:   cfg.AuthToken,
	}
}

// SetAuthToken sets the session token for requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// IsOnline returns true if the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("files api is back online", zap.String("base_url", c.baseURL))
		} else {
			logging.Warn("files api is offline", zap.String("base_url", c.baseURL))
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	c.setOnline(true)
	return nil
}

// ListFiles returns one directory level of tenant's tree, sorted.
func (c *Client) ListFiles(ctx context.Context, tenant, path string) ([]*models.TreeNode, error) {
	q := url.Values{}
	q.Set("projectId", tenant)
	q.Set("path", path)

	var resp protocol.FilesResponse
	if err := c.getJSON(ctx, "/files/files?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Files == nil {
		resp.Files = []*models.TreeNode{}
	}
	return resp.Files, nil
}

// ReadFile returns the content of the file at path.
func (c *Client) ReadFile(ctx context.Context, tenant, path string) (string, error) {
	q := url.Values{}
	q.Set("projectId", tenant)
	q.Set("path", path)

	var resp protocol.ContentResponse
	if err := c.getJSON(ctx, "/files/content?"+q.Encode(), &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// WriteFile overwrites the file at path. Writes are sent once and never
// retried.
func (c *Client) WriteFile(ctx context.Context, tenant, path, content string) error {
	body, err := json.Marshal(protocol.WriteContentRequest{
		Path:      path,
		Content:   &content,
		ProjectID: tenant,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/content", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()
	c.setOnline(true)

	if resp.StatusCode != http.StatusOK {
		return decodeStatusError(resp)
	}

	var sr protocol.SuccessResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return fmt.Errorf("decode write response: %w", err)
	}
	if !sr.Success {
		return fmt.Errorf("write of %s was not acknowledged", path)
	}
	return nil
}

// getJSON issues an idempotent GET with retries on transport errors and
// 5xx answers, and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, target string, v interface{}) error {
	return retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+target, nil)
		if err != nil {
			return err
		}
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return retry.Retryable(err)
		}
		defer resp.Body.Close()
		c.setOnline(true)

		if resp.StatusCode != http.StatusOK {
			se := decodeStatusError(resp)
			if resp.StatusCode >= 500 {
				return retry.Retryable(se)
			}
			return se
		}

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func decodeStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var er protocol.ErrorResponse
	if err := json.Unmarshal(b, &er); err == nil && er.Error != "" {
		se.Message = er.Error
		se.Details = er.Details
	}
	return se
}
