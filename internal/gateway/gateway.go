// Package gateway performs authenticated, path-addressed reads and writes
// against the remote file store on behalf of one tenant.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
)

// RootPath is the root designator sent for an empty path.
const RootPath = "/"

const maxErrorBody = 512

// Config holds the fixed tenant/base-address/credential triple.
type Config struct {
	Tenant  string
	BaseURL string
	Token   string
	Timeout time.Duration

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Gateway talks to the remote file store for exactly one tenant. It holds
// no mutable state and is safe for concurrent use.
type Gateway struct {
	tenant     string
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
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
		}
	}
	return &Gateway{
		tenant:     cfg.Tenant,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: hc,
	}
}

// Tenant returns the tenant this gateway is bound to.
func (g *Gateway) Tenant() string {
	return g.tenant
}

// NormalizePath strips leading separators and maps the empty path to the
// root designator, so "/a/b" and "a/b" address the same resource.
func NormalizePath(p string) string {
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return RootPath
	}
	return p
}

func (g *Gateway) endpoint(path string) string {
	q := url.Values{}
	q.Set("path", NormalizePath(path))
	return g.baseURL + "/files/" + url.PathEscape(g.tenant) + "?" + q.Encode()
}

// ListDirectory returns the raw entries of the directory at path.
func (g *Gateway) ListDirectory(ctx context.Context, path string) ([]models.RawEntry, error) {
	const op = "list"
	var entries []models.RawEntry

	err := g.do(ctx, op, path, http.MethodGet, nil, "", func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(&entries); err != nil {
			return fmt.Errorf("decode listing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.RawEntry{}
	}
	return entries, nil
}

// ReadFile returns the raw content of the file at path.
func (g *Gateway) ReadFile(ctx context.Context, path string) ([]byte, error) {
	const op = "read"
	var content []byte

	err := g.do(ctx, op, path, http.MethodGet, nil, "", func(body io.Reader) error {
		b, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		content = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordContentBytes("down", int64(len(content)))
	return content, nil
}

// WriteFile overwrites the file at path with content.
func (g *Gateway) WriteFile(ctx context.Context, path string, content []byte) error {
	const op = "write"
	err := g.do(ctx, op, path, http.MethodPost, bytes.NewReader(content), "text/plain", func(io.Reader) error {
		return nil
	})
	if err != nil {
		return err
	}
	metrics.RecordContentBytes("up", int64(len(content)))
	return nil
}

// do performs one round trip. handle consumes a 2xx body; any error it
// returns is reported as a TransportError.
func (g *Gateway) do(ctx context.Context, op, path, method string, body io.Reader, contentType string, handle func(io.Reader) error) error {
	start := time.Now()
	logger := logging.WithContext(ctx).With(
		zap.String("tenant", g.tenant),
		zap.String("op", op),
		zap.String("path", path),
	)

	req, err := http.NewRequestWithContext(ctx, method, g.endpoint(path), body)
	if err != nil {
		metrics.RecordGatewayCall(op, "transport_error", time.Since(start))
		return &TransportError{Op: op, Path: path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	if id := logging.RequestID(ctx); id != "" {
		req.Header.Set(logging.RequestIDHeader, id)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayCall(op, "transport_error", time.Since(start))
		logger.Warn("remote store unreachable", zap.Error(err))
		return &TransportError{Op: op, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordGatewayCall(op, "backend_error", time.Since(start))
		msg := readErrorMessage(resp)
		logger.Warn("remote store error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return &BackendError{Op: op, Path: path, Status: resp.StatusCode, Message: msg}
	}

	if err := handle(resp.Body); err != nil {
		metrics.RecordGatewayCall(op, "transport_error", time.Since(start))
		return &TransportError{Op: op, Path: path, Err: err}
	}

	metrics.RecordGatewayCall(op, "success", time.Since(start))
	logger.Debug("remote store call", zap.Duration("duration", time.Since(start)))
	return nil
}

func readErrorMessage(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
