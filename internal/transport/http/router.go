// Package httptransport assembles the HTTP surface: middleware chain, route
// groups per audience, health and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/unrolled/secure"

	platformmetrics "civictrust/internal/platform/metrics"
	dErrors "civictrust/pkg/domain-errors"
	"civictrust/pkg/platform/httputil"
	"civictrust/pkg/platform/middleware/metadata"
	"civictrust/pkg/platform/middleware/request"
	"civictrust/pkg/platform/middleware/requesttime"
	"civictrust/pkg/requestcontext"
)

// Module is a feature handler with public routes.
type Module interface {
	Register(r chi.Router)
}

// CitizenModule has routes for authenticated citizens.
type CitizenModule interface {
	RegisterCitizen(r chi.Router)
}

// AdminModule has operator routes.
type AdminModule interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck = func(ctx context.Context) error

type Config struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry

	Public  []Module
	Citizen []CitizenModule
	Admin   []AdminModule

	CitizenAuth func(http.Handler) http.Handler
	AdminAuth   func(http.Handler) http.Handler

	// WritesPerMinute limits citizen and admin writes per caller. Zero
	// disables the limiter.
	WritesPerMinute int
	Production      bool
	Health          map[string]HealthCheck
}

func NewRouter(cfg Config) http.Handler {
	httpMetrics := platformmetrics.NewHTTP(cfg.Registry)
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !cfg.Production,
	})

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(secureMiddleware.Handler)
	r.Use(httpMetrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{Error: "method_not_allowed"})
	})

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Method(http.MethodGet, "/metrics", platformmetrics.Handler(cfg.Registry))

	for _, m := range cfg.Public {
		m.Register(r)
	}

	limiter := writeLimiter(cfg.WritesPerMinute)
	if cfg.CitizenAuth != nil {
		r.Group(func(g chi.Router) {
			g.Use(cfg.CitizenAuth)
			g.Use(limiter)
			for _, m := range cfg.Citizen {
				m.RegisterCitizen(g)
			}
		})
	}
	if cfg.AdminAuth != nil {
		r.Group(func(g chi.Router) {
			g.Use(cfg.AdminAuth)
			g.Use(limiter)
			for _, m := range cfg.Admin {
				m.RegisterAdmin(g)
			}
		})
	}
	return r
}

func writeLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error:       "rate_limited",
				Description: "too many requests, retry later",
			})
		}),
	)
}

// rateLimitKey buckets authenticated citizens by ID and everyone else by IP.
func rateLimitKey(r *http.Request) (string, error) {
	if id := requestcontext.CitizenID(r.Context()); !id.IsNil() {
		return "citizen:" + id.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
