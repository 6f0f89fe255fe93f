package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/healops/secret"
)

// DefaultEnvFiles are read in order; earlier files win.
var DefaultEnvFiles = []string{".env.local", ".env"}

// Options controls Load.
type Options struct {
	// Path is the YAML file. Empty skips the file.
	Path string

	// EnvFiles are dotenv files read in order. Missing files are skipped.
	// Default: DefaultEnvFiles
	EnvFiles []string

	// Lookup reads the process environment. Default: os.LookupEnv
	Lookup secret.LookupFunc
}

// Load reads configuration from path and the environment, then validates it.
func Load(path string) (*Config, secret.LookupFunc, error) {
	return LoadWith(Options{Path: path})
}

// LoadWith reads configuration with explicit options. The returned lookup
// merges the process environment with the dotenv files and should back
// secret resolution.
func LoadWith(opts Options) (*Config, secret.LookupFunc, error) {
	if opts.EnvFiles == nil {
		opts.EnvFiles = DefaultEnvFiles
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}

	lookup, err := envLookup(opts.Lookup, opts.EnvFiles)
	if err != nil {
		return nil, nil, err
	}

	cfg := Default()
	if opts.Path != "" {
		if err := readYAML(opts.Path, cfg); err != nil {
			return nil, nil, err
		}
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, lookup, nil
}

// envLookup layers dotenv files under the process environment. godotenv.Read
// is used instead of godotenv.Load so the process environment is not mutated.
func envLookup(base secret.LookupFunc, files []string) (secret.LookupFunc, error) {
	var layers []map[string]string
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		m, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRead, f, err)
		}
		layers = append(layers, m)
	}

	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		for _, m := range layers {
			if v, ok := m[key]; ok {
				return v, true
			}
		}
		return "", false
	}, nil
}

func readYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRead, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	return nil
}

// applyEnv applies HEALOPS_* overrides and the conventional credential
// variables of the standard dependencies.
func applyEnv(cfg *Config, lookup secret.LookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
				return
			}
			*dst = b
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = splitList(v)
		}
	}

	str("HEALOPS_LISTEN", &cfg.Listen)
	str("HEALOPS_REPORT_DIR", &cfg.ReportDir)

	flag("HEALOPS_HEALING_ENABLED", &cfg.Healing.Enabled)
	dur("HEALOPS_HEAL_INTERVAL", &cfg.Healing.Interval)
	dur("HEALOPS_HEAL_COOLDOWN", &cfg.Healing.Cooldown)
	num("HEALOPS_HEAL_MAX_ATTEMPTS", &cfg.Healing.MaxAttempts)
	list("HEALOPS_CRITICAL", &cfg.Healing.Critical)
	flag("HEALOPS_AUTO_RESTART", &cfg.Healing.AutoRestart)

	flag("HEALOPS_STARTUP_ENABLED", &cfg.Startup.Enabled)
	dur("HEALOPS_STARTUP_MAX_WAIT", &cfg.Startup.MaxWait)
	dur("HEALOPS_STARTUP_POLL", &cfg.Startup.PollInterval)
	list("HEALOPS_REQUIRED", &cfg.Startup.Required)

	dur("HEALOPS_PROBE_TIMEOUT", &cfg.Probes.Timeout)
	str("OPENAI_API_KEY", &cfg.Probes.LLM.APIKey)
	str("TELNYX_API_KEY", &cfg.Probes.Telephony.APIKey)
	str("RETELL_API_KEY", &cfg.Probes.Voice.APIKey)
	str("MYSQL_HOST", &cfg.Probes.Database.Host)
	num("MYSQL_PORT", &cfg.Probes.Database.Port)
	str("MYSQL_USER", &cfg.Probes.Database.User)
	str("MYSQL_PASSWORD", &cfg.Probes.Database.Password)
	str("MYSQL_DATABASE", &cfg.Probes.Database.Database)

	str("HEALOPS_JWT_SECRET", &cfg.Auth.JWTSecret)
	if v, ok := lookup("HEALOPS_OPERATOR_KEY"); ok && v != "" {
		cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, APIKeyConfig{
			ID:        "env-operator",
			Key:       v,
			Principal: "operator",
			Roles:     []string{"operator"},
		})
	}
	flag("HEALOPS_AUTH_ENABLED", &cfg.Auth.Enabled)

	str("HEALOPS_LOG_LEVEL", &cfg.Observe.Logging.Level)
	str("HEALOPS_METRICS_EXPORTER", &cfg.Observe.Metrics.Exporter)
	if cfg.Observe.Metrics.Exporter != "" && cfg.Observe.Metrics.Exporter != "none" {
		cfg.Observe.Metrics.Enabled = true
	}
	str("HEALOPS_TRACING_EXPORTER", &cfg.Observe.Tracing.Exporter)
	if cfg.Observe.Tracing.Exporter != "" && cfg.Observe.Tracing.Exporter != "none" {
		cfg.Observe.Tracing.Enabled = true
		if cfg.Observe.Tracing.SamplePct == 0 {
			cfg.Observe.Tracing.SamplePct = 1
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Resolve replaces credential references in place through r.
func (c *Config) Resolve(ctx context.Context, r *secret.Resolver) error {
	fields := map[string]*string{
		"probes.llm.api_key":       &c.Probes.LLM.APIKey,
		"probes.telephony.api_key": &c.Probes.Telephony.APIKey,
		"probes.voice.api_key":     &c.Probes.Voice.APIKey,
		"probes.database.password": &c.Probes.Database.Password,
		"auth.jwt_secret":          &c.Auth.JWTSecret,
	}
	for i := range c.Auth.APIKeys {
		fields[fmt.Sprintf("auth.api_keys[%d].key", i)] = &c.Auth.APIKeys[i].Key
	}
	return r.ResolveFields(ctx, fields)
}
