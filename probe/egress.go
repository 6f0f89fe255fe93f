package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/jonwraymond/healops/health"
)

// DefaultEgressURL is an IP echo service returning {"ip": "..."}.
const DefaultEgressURL = "https://api.ipify.org?format=json"

// ErrNoIP is reported when the echo service returns no usable address.
var ErrNoIP = errors.New("probe: no IP address in response")

// EgressConfig configures an egress IP probe.
type EgressConfig struct {
	// Name is the stable dependency name.
	Name string

	// URL is the IP echo endpoint. Default: DefaultEgressURL
	URL string

	// Timeout bounds the request.
	// Default: 10 seconds
	Timeout time.Duration

	// Client performs the request. Default: a client with Timeout.
	Client *http.Client
}

// EgressIPProbe checks that the external IP of this host can be resolved.
type EgressIPProbe struct {
	config EgressConfig
}

// NewEgressIPProbe creates an egress IP probe.
func NewEgressIPProbe(config EgressConfig) *EgressIPProbe {
	if config.URL == "" {
		config.URL = DefaultEgressURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: config.Timeout}
	}
	return &EgressIPProbe{config: config}
}

// Name returns the dependency name.
func (p *EgressIPProbe) Name() string { return p.config.Name }

// Kind returns health.KindNetwork.
func (p *EgressIPProbe) Kind() health.Kind { return health.KindNetwork }

// Probe resolves the external IP.
func (p *EgressIPProbe) Probe(ctx context.Context) health.Check {
	start := time.Now()
	var addr netip.Addr

	err := withTimeout(ctx, p.config.Timeout, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
		if err != nil {
			return err
		}

		resp, err := p.config.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		var payload struct {
			IP string `json:"ip"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if payload.IP == "" {
			return ErrNoIP
		}
		parsed, err := netip.ParseAddr(payload.IP)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrNoIP, payload.IP)
		}
		addr = parsed
		return nil
	})

	latency := time.Since(start)
	if err != nil {
		return health.Unhealthy("Failed to resolve external IP", err).WithLatency(latency)
	}
	return health.Healthy("External IP: " + addr.String()).WithLatency(latency)
}

var _ health.Probe = (*EgressIPProbe)(nil)
