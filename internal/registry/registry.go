// Package registry holds one gateway per tenant, created on first use and
// kept for the life of the process.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/gateway"
	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
)

// ErrEmptyTenant is returned for an empty tenant id.
var ErrEmptyTenant = errors.New("tenant id is required")

// ConfigurationError reports process configuration missing at gateway
// construction. It is not retried.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("files gateway not configured: missing %s", strings.Join(e.Missing, ", "))
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Config is the process-level configuration shared by all tenants.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Registry maps tenant ids to gateways. Entries are never evicted.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	gateways map[string]*gateway.Gateway
}

// New creates an empty registry. Configuration is validated lazily, on the
// first Get.
func New(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		gateways: make(map[string]*gateway.Gateway),
	}
}

// Get returns the gateway for tenant, creating it on first access.
func (r *Registry) Get(tenant string) (*gateway.Gateway, error) {
	if tenant == "" {
		return nil, ErrEmptyTenant
	}

	r.mu.RLock()
	g, ok := r.gateways[tenant]
	r.mu.RUnlock()
	if ok {
		return g, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created it while we waited for the lock.
	if g, ok := r.gateways[tenant]; ok {
		return g, nil
	}

	if err := r.validate(); err != nil {
		logging.Error("cannot create files gateway",
			zap.String("tenant", tenant), zap.Error(err))
		return nil, err
	}

	g = gateway.New(gateway.Config{
		Tenant:  tenant,
		BaseURL: r.cfg.BaseURL,
		Token:   r.cfg.Token,
		Timeout: r.cfg.Timeout,
	})
	r.gateways[tenant] = g
	metrics.SetTenantCount(len(r.gateways))

	logging.Info("files gateway created",
		zap.String("tenant", tenant),
		zap.String("base_url", r.cfg.BaseURL),
		zap.Bool("has_token", r.cfg.Token != ""))
	return g, nil
}

func (r *Registry) validate() error {
	var missing []string
	if r.cfg.BaseURL == "" {
		missing = append(missing, "base address")
	}
	if r.cfg.Token == "" {
		missing = append(missing, "service credential")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Len returns the number of cached gateways.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}

// Tenants returns the cached tenant ids in sorted order.
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.gateways))
	for t := range r.gateways {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
