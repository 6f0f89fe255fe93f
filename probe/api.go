package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/healops/health"
)

// ErrKeyNotConfigured is reported when an API probe has no usable key.
var ErrKeyNotConfigured = errors.New("probe: API key not configured")

// maxBodyBytes caps how much of a response body is read for Describe.
const maxBodyBytes = 1 << 20

// APIConfig configures an HTTP API probe.
type APIConfig struct {
	// Name is the stable dependency name.
	Name string

	// URL is the endpoint to GET.
	URL string

	// APIKey is sent as a bearer token. Empty or placeholder keys make the
	// probe fail without a request.
	APIKey string

	// Query is merged into the URL query string.
	Query map[string]string

	// ExpectedStatus is the status code that means healthy.
	// Default: 200
	ExpectedStatus int

	// Timeout bounds the request.
	// Default: 10 seconds
	Timeout time.Duration

	// Client performs the request. Default: a client with Timeout.
	Client *http.Client

	// Describe turns a healthy response body into detail text.
	// Default: "API connection successful".
	Describe func(body []byte) string
}

// APIProbe checks a bearer-authenticated HTTP API.
type APIProbe struct {
	config APIConfig
}

// NewAPIProbe creates an API probe.
func NewAPIProbe(config APIConfig) *APIProbe {
	if config.ExpectedStatus == 0 {
		config.ExpectedStatus = http.StatusOK
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: config.Timeout}
	}
	return &APIProbe{config: config}
}

// Name returns the dependency name.
func (p *APIProbe) Name() string { return p.config.Name }

// Kind returns health.KindAPI.
func (p *APIProbe) Kind() health.Kind { return health.KindAPI }

// Probe performs one GET request.
func (p *APIProbe) Probe(ctx context.Context) health.Check {
	if IsPlaceholderKey(p.config.APIKey) {
		return health.Unhealthy("API key not configured", ErrKeyNotConfigured)
	}

	start := time.Now()
	var detail string

	err := withTimeout(ctx, p.config.Timeout, func(ctx context.Context) error {
		req, err := p.newRequest(ctx)
		if err != nil {
			return err
		}

		resp, err := p.config.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != p.config.ExpectedStatus {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return fmt.Errorf("unexpected status code: got %d, expected %d", resp.StatusCode, p.config.ExpectedStatus)
		}

		if p.config.Describe == nil {
			detail = "API connection successful"
			return nil
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		detail = p.config.Describe(body)
		return nil
	})

	latency := time.Since(start)
	if err != nil {
		return health.Unhealthy("Failed to connect to "+p.config.Name, err).WithLatency(latency)
	}
	return health.Healthy(detail).WithLatency(latency)
}

func (p *APIProbe) newRequest(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(p.config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(p.config.Query) > 0 {
		q := u.Query()
		for k, v := range p.config.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// IsPlaceholderKey reports whether key is empty or a template value such as
// "your_openai_api_key_here".
func IsPlaceholderKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}
	lower := strings.ToLower(key)
	return strings.HasPrefix(lower, "your_") && strings.HasSuffix(lower, "_here")
}

var _ health.Probe = (*APIProbe)(nil)
