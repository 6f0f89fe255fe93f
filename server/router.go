package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/healops/auth"
	"github.com/jonwraymond/healops/heal"
	"github.com/jonwraymond/healops/health"
	"github.com/jonwraymond/healops/observe"
)

// ErrNilRegistry indicates RouterConfig.Registry is nil.
var ErrNilRegistry = errors.New("server: registry is nil")

// RouterConfig wires the handlers.
type RouterConfig struct {
	// Registry backs the health routes. Required.
	Registry *health.Registry

	// Orchestrator backs the /heal routes. Nil omits them.
	Orchestrator *heal.Orchestrator

	// Authenticator guards the probing and reset routes, which also
	// require auth.RoleOperator. Nil omits them.
	Authenticator auth.Authenticator

	// Metrics serves /metrics. Nil omits the route.
	Metrics http.Handler

	// Logger receives request logs.
	Logger observe.Logger
}

// PrometheusHandler serves the default Prometheus registry, which the
// prometheus metrics exporter registers with.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	if cfg.Registry == nil {
		return nil, ErrNilRegistry
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(cfg.Logger))

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(cfg.Registry))
	r.Get("/health", health.DetailedHandler(cfg.Registry))
	r.Get("/health/{name}", health.DependencyHandler(cfg.Registry, urlParam("name")))

	o := cfg.Orchestrator
	if o != nil {
		r.Get("/heal/stats", heal.StatsHandler(o))
		r.Get("/heal/history", heal.HistoryHandler(o))
	}

	if cfg.Authenticator != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Authenticator, cfg.Logger))
			r.Use(auth.RequireRole(auth.RoleOperator))

			r.Post("/health/check", health.RefreshHandler(cfg.Registry))
			r.Post("/health/check/{name}", health.ProbeHandler(cfg.Registry, urlParam("name")))

			if o != nil {
				r.Post("/heal/reset", heal.ResetHandler(o.Policy(), nil))
				r.Post("/heal/reset/{name}", heal.ResetHandler(o.Policy(), urlParam("name")))
			}
		})
	}

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	return r, nil
}

func urlParam(key string) func(*http.Request) string {
	return func(r *http.Request) string {
		return chi.URLParam(r, key)
	}
}

func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug(r.Context(), "http request",
				observe.F("method", r.Method),
				observe.F("path", r.URL.Path),
				observe.F("status", ww.Status()),
				observe.F("duration_ms", time.Since(start).Milliseconds()),
				observe.F("request_id", middleware.GetReqID(r.Context())),
				observe.F("principal", auth.PrincipalFromContext(r.Context())),
			)
		})
	}
}
