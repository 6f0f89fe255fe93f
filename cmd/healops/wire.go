package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonwraymond/healops/auth"
	"github.com/jonwraymond/healops/config"
	"github.com/jonwraymond/healops/heal"
	"github.com/jonwraymond/healops/health"
	"github.com/jonwraymond/healops/observe"
	"github.com/jonwraymond/healops/probe"
	"github.com/jonwraymond/healops/report"
	"github.com/jonwraymond/healops/secret"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	observer observe.Observer
	inst     observe.Instruments
	registry *health.Registry
	policy   *heal.Policy
	reporter *report.Writer
	closers  []io.Closer
}

func newApp(ctx context.Context, opts config.Options) (*app, error) {
	cfg, lookup, err := config.LoadWith(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := resolveConfig(ctx, cfg, lookup); err != nil {
		return nil, err
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("create observer: %w", err)
	}
	inst, err := observe.InstrumentsFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	a := &app{
		cfg:      cfg,
		observer: obs,
		inst:     inst,
		registry: health.NewRegistry(health.RegistryConfig{
			Timeout:     cfg.Probes.Timeout,
			Instruments: inst,
		}),
		reporter: report.NewWriter(report.Config{
			Dir:         cfg.ReportDir,
			Instruments: inst,
		}),
	}
	for _, p := range probe.Catalog(cfg.Catalog()) {
		a.registry.Register(p)
		if c, ok := p.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
	}
	a.policy = heal.NewPolicy(heal.PolicyConfig{
		Cooldown:    cfg.Healing.Cooldown,
		MaxAttempts: cfg.Healing.MaxAttempts,
		Strategies:  strategies(cfg.Healing.Strategies),
		KindOf:      a.registry.Kind,
		Instruments: inst,
	})
	return a, nil
}

// resolveConfig replaces secret references in cfg.
func resolveConfig(ctx context.Context, cfg *config.Config, lookup secret.LookupFunc) (err error) {
	resolver := secret.NewDefaultResolver(lookup, "")
	defer func() {
		if cerr := resolver.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close secret resolver: %w", cerr)
		}
	}()
	if err := cfg.Resolve(ctx, resolver); err != nil {
		return fmt.Errorf("resolve secrets: %w", err)
	}
	return nil
}

// Close releases probe connections and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.observer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown observer: %w", err))
	}
	return errors.Join(errs...)
}

func (a *app) startupGate() (*heal.StartupGate, error) {
	return heal.NewStartupGate(a.registry, a.policy, heal.StartupConfig{
		Reporter:    a.reporter,
		Instruments: a.inst,
	})
}

// strategies converts configured strategy names. Names are validated by
// config.Validate, so unknown ones do not reach here.
func strategies(names map[string]string) map[string]heal.Strategy {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]heal.Strategy, len(names))
	for dep, name := range names {
		out[dep] = heal.ParseStrategy(name)
	}
	return out
}

// authenticator builds the operator authenticator, or nil when auth is
// disabled.
func authenticator(cfg config.AuthConfig) auth.Authenticator {
	if !cfg.Enabled {
		return nil
	}

	var auths []auth.Authenticator
	if cfg.JWTSecret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(jwtConfig(cfg)))
	}
	if len(cfg.APIKeys) > 0 {
		store := auth.NewMemoryKeyStore()
		for _, k := range cfg.APIKeys {
			principal := k.Principal
			if principal == "" {
				principal = k.ID
			}
			store.AddKey(k.ID, k.Key, principal, k.Roles...)
		}
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store))
	}
	return auth.NewComposite(auths...)
}

func jwtConfig(cfg config.AuthConfig) auth.JWTConfig {
	return auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
	}
}
