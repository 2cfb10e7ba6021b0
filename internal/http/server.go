// Package http serves the subscription list page and its form endpoints.
package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"abbonamenti/internal/cache"
	applog "abbonamenti/internal/log"
	"abbonamenti/internal/metrics"
	"abbonamenti/internal/middleware/ratelimit"
	"abbonamenti/internal/middleware/security"
	"abbonamenti/internal/middleware/trace"
	"abbonamenti/internal/services"
	"abbonamenti/internal/store"
	appweb "abbonamenti/web"
)

// Config wires the server to its dependencies.
type Config struct {
	Addr               string
	Service            *services.SubscriptionService
	Store              store.Store // checked by /readyz
	Logger             *applog.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	templates *template.Template
	svc       *services.SubscriptionService
	store     store.Store
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics

	shutdownOnce sync.Once
}

// cacheStatser is implemented by stores that cache remote reads.
type cacheStatser interface {
	CacheStats() cache.Stats
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("http: nil subscription service")
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.New(applog.DefaultConfig())
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	limiterCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		templates: t,
		svc:       cfg.Service,
		store:     cfg.Store,
		logger:    cfg.Logger.WithComponent(applog.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(limiterCfg),
		metrics:   metrics.New(),
	}
	s.registerRuntimeMetrics()

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	tracer := trace.NewMiddleware(s.logger, security.ClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(tracer.Middleware)
	r.Use(s.metrics.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(headers.Middleware)
	r.Use(s.limiter.Middleware(security.ClientIP, http.MethodPost))

	r.Get("/", s.handleIndex)
	r.Post("/", s.handleIndexForm)
	r.Post("/subscriptions", s.handleAdd)
	r.Post("/subscriptions/{id}", s.handleEdit)
	r.Get("/delete/{id}", s.handleDelete)
	r.Post("/delete/{id}", s.handleDelete)

	r.Get("/api/subscriptions", s.handleAPIList)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(static))
	}
	return r
}

func (s *Server) registerRuntimeMetrics() {
	s.metrics.Register(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "abbonamenti_rate_limit_rejections_total",
			Help: "Requests rejected by the per-client rate limiter",
		}, func() float64 { return float64(s.limiter.GetMetrics().TotalHits) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "abbonamenti_rate_limit_clients",
			Help: "Clients tracked by the rate limiter",
		}, func() float64 { return float64(s.limiter.GetMetrics().ClientCount) }),
	)

	cs, ok := s.store.(cacheStatser)
	if !ok {
		return
	}
	s.metrics.Register(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "abbonamenti_store_cache_hits_total",
			Help: "Store loads served from cache",
		}, func() float64 { return float64(cs.CacheStats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "abbonamenti_store_cache_misses_total",
			Help: "Store loads that went to the backend",
		}, func() float64 { return float64(cs.CacheStats().Misses) }),
	)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
	})
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if _, err := s.store.Load(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
