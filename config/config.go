package config

import (
	"time"

	"github.com/jonwraymond/healops/observe"
	"github.com/jonwraymond/healops/probe"
)

// Config is the complete healops configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// ReportDir receives the health and startup reports.
	ReportDir string `yaml:"report_dir"`

	Healing HealingConfig  `yaml:"healing"`
	Startup StartupConfig  `yaml:"startup"`
	Probes  ProbesConfig   `yaml:"probes"`
	Auth    AuthConfig     `yaml:"auth"`
	Observe observe.Config `yaml:"observe"`
}

// HealingConfig configures the policy and the orchestrator.
type HealingConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	Cooldown        time.Duration `yaml:"cooldown"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Critical        []string      `yaml:"critical"`
	AutoRestart     bool          `yaml:"auto_restart"`
	HistoryCapacity int           `yaml:"history_capacity"`

	// Strategies pins strategies by dependency name, e.g.
	// {"voice-api": "network_refresh"}.
	Strategies map[string]string `yaml:"strategies"`
}

// StartupConfig configures the startup gate.
type StartupConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxWait      time.Duration `yaml:"max_wait"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Required     []string      `yaml:"required"`
}

// ProbesConfig configures the standard dependency probes.
type ProbesConfig struct {
	Timeout   time.Duration  `yaml:"timeout"`
	LLM       EndpointConfig `yaml:"llm"`
	Telephony EndpointConfig `yaml:"telephony"`
	Voice     EndpointConfig `yaml:"voice"`
	Database  DatabaseConfig `yaml:"database"`
	EgressURL string         `yaml:"egress_url"`
}

// EndpointConfig is one HTTP API dependency.
type EndpointConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// DatabaseConfig is the MySQL dependency.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// AuthConfig configures operator authentication on the admin endpoints.
type AuthConfig struct {
	Enabled   bool           `yaml:"enabled"`
	JWTSecret string         `yaml:"jwt_secret"`
	Issuer    string         `yaml:"issuer"`
	Audience  string         `yaml:"audience"`
	APIKeys   []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig is one operator API key.
type APIKeyConfig struct {
	ID        string   `yaml:"id"`
	Key       string   `yaml:"key"`
	Principal string   `yaml:"principal"`
	Roles     []string `yaml:"roles"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		ReportDir: "logs",
		Healing: HealingConfig{
			Enabled:     true,
			Interval:    60 * time.Second,
			Cooldown:    5 * time.Minute,
			MaxAttempts: 5,
			Critical: []string{
				probe.NameLLM,
				probe.NameTelephony,
				probe.NameVoice,
				probe.NameDatabase,
			},
			AutoRestart:     true,
			HistoryCapacity: 100,
		},
		Startup: StartupConfig{
			Enabled:      true,
			MaxWait:      120 * time.Second,
			PollInterval: 5 * time.Second,
			Required: []string{
				probe.NameLLM,
				probe.NameTelephony,
				probe.NameVoice,
				probe.NameDatabase,
				probe.NameEgress,
			},
		},
		Probes: ProbesConfig{
			Timeout: 10 * time.Second,
			Database: DatabaseConfig{
				Host: "localhost",
				Port: 3306,
			},
		},
		Observe: observe.Config{
			ServiceName: "healops",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Catalog converts the probe settings for probe.Catalog.
func (c *Config) Catalog() probe.CatalogConfig {
	p := c.Probes
	return probe.CatalogConfig{
		Timeout:   p.Timeout,
		LLM:       probe.Endpoint{URL: p.LLM.URL, APIKey: p.LLM.APIKey},
		Telephony: probe.Endpoint{URL: p.Telephony.URL, APIKey: p.Telephony.APIKey},
		Voice:     probe.Endpoint{URL: p.Voice.URL, APIKey: p.Voice.APIKey},
		Database: probe.SQLConfig{
			Host:     p.Database.Host,
			Port:     p.Database.Port,
			User:     p.Database.User,
			Password: p.Database.Password,
			Database: p.Database.Database,
		},
		EgressURL: p.EgressURL,
	}
}
