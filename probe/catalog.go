package probe

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/healops/health"
)

// Stable dependency names.
const (
	NameLLM       = "primary-llm-api"
	NameTelephony = "telephony-api"
	NameVoice     = "voice-api"
	NameDatabase  = "primary-database"
	NameEgress    = "egress-ip-resolution"
)

// Default endpoints of the standard dependencies.
const (
	DefaultLLMURL       = "https://api.openai.com/v1/models"
	DefaultTelephonyURL = "https://api.telnyx.com/v2/phone_numbers"
	DefaultVoiceURL     = "https://api.retellai.com/health"
)

// Endpoint is the address and credential of one HTTP API dependency.
type Endpoint struct {
	URL    string
	APIKey string
}

// CatalogConfig configures the standard probe set.
type CatalogConfig struct {
	// Timeout applies to every probe.
	// Default: 10 seconds
	Timeout time.Duration

	// Client is shared by the HTTP probes. Default: one client per probe.
	Client *http.Client

	LLM       Endpoint
	Telephony Endpoint
	Voice     Endpoint
	Database  SQLConfig

	// EgressURL overrides DefaultEgressURL.
	EgressURL string
}

// Catalog builds the standard probes in their canonical order.
func Catalog(cfg CatalogConfig) []health.Probe {
	db := cfg.Database
	db.Name = NameDatabase
	if db.Timeout <= 0 {
		db.Timeout = cfg.Timeout
	}

	return []health.Probe{
		NewAPIProbe(APIConfig{
			Name:     NameLLM,
			URL:      orDefault(cfg.LLM.URL, DefaultLLMURL),
			APIKey:   cfg.LLM.APIKey,
			Timeout:  cfg.Timeout,
			Client:   cfg.Client,
			Describe: countModels,
		}),
		NewAPIProbe(APIConfig{
			Name:    NameTelephony,
			URL:     orDefault(cfg.Telephony.URL, DefaultTelephonyURL),
			APIKey:  cfg.Telephony.APIKey,
			Query:   map[string]string{"page[size]": "1"},
			Timeout: cfg.Timeout,
			Client:  cfg.Client,
		}),
		NewAPIProbe(APIConfig{
			Name:    NameVoice,
			URL:     orDefault(cfg.Voice.URL, DefaultVoiceURL),
			APIKey:  cfg.Voice.APIKey,
			Timeout: cfg.Timeout,
			Client:  cfg.Client,
		}),
		NewSQLProbe(db),
		NewEgressIPProbe(EgressConfig{
			Name:    NameEgress,
			URL:     cfg.EgressURL,
			Timeout: cfg.Timeout,
			Client:  cfg.Client,
		}),
	}
}

// countModels describes a model listing response as "N models available".
func countModels(body []byte) string {
	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(body, &payload)
	return fmt.Sprintf("%d models available", len(payload.Data))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
