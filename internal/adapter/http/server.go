// Package http serves the relay's public JSON API together with the health,
// readiness and metrics endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/cache"
	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/couchcryptid/bmkg-relay/internal/region"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resources resolves cached BMKG resources. *feed.Service implements it.
type Resources interface {
	LatestEarthquake(ctx context.Context) (domain.EarthquakeEvent, error)
	RecentEarthquakes(ctx context.Context) ([]domain.EarthquakeEvent, error)
	FeltEarthquakes(ctx context.Context) ([]domain.EarthquakeEvent, error)
	NearbyEarthquakes(ctx context.Context, lat, lon, radiusKM float64) ([]domain.NearbyEarthquake, error)
	Forecast(ctx context.Context, adm4 string) (domain.WeatherForecast, error)
	CurrentWeather(ctx context.Context, adm4 string) (domain.CurrentWeather, error)
	ActiveAlerts(ctx context.Context, lang string) ([]domain.ActiveAlert, error)
	ProvinceNowcast(ctx context.Context, province string) (domain.ProvinceNowcast, error)
	CheckLocation(ctx context.Context, location string) (domain.LocationCheck, error)
	Resolve(ctx context.Context, key string) (any, error)
}

// Regions answers region queries. *region.Index implements it.
type Regions interface {
	Lookup(code string) (domain.RegionRecord, error)
	Children(parentCode string, level domain.Level) ([]domain.RegionRecord, error)
	Provinces() []domain.RegionRecord
	FullPath(code string) (string, error)
	Search(query string, limit int) ([]domain.RegionRecord, error)
	Stats() region.Stats
	Len() int
}

// CacheStatus reports cache health. *cache.Cache implements it.
type CacheStatus interface {
	Status() cache.Status
	Ping(ctx context.Context) error
}

// Deps are the components the API serves from.
type Deps struct {
	Resources   Resources
	Regions     Regions
	Cache       CacheStatus
	MaxRadiusKM float64
}

// Server exposes the public API plus /healthz, /readyz and /metrics.
type Server struct {
	httpServer *http.Server
	deps       Deps
	validate   *validator.Validate
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer builds the router and the underlying http.Server.
func NewServer(addr string, deps Deps, logger *slog.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		metrics:  metrics,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Route("/earthquakes", func(r chi.Router) {
			r.Get("/latest", s.handleLatestEarthquake)
			r.Get("/recent", s.handleRecentEarthquakes)
			r.Get("/felt", s.handleFeltEarthquakes)
			r.Get("/nearby", s.handleNearbyEarthquakes)
		})
		r.Route("/weather/{adm4}", func(r chi.Router) {
			r.Get("/", s.handleForecast)
			r.Get("/current", s.handleCurrentWeather)
		})
		r.Route("/nowcast", func(r chi.Router) {
			r.Get("/", s.handleActiveAlerts)
			r.Get("/check", s.handleCheckLocation)
			r.Get("/{province}", s.handleProvinceNowcast)
		})
		r.Route("/regions", func(r chi.Router) {
			r.Get("/provinces", s.handleProvinces)
			r.Get("/search", s.handleSearch)
			r.Get("/{code}", s.handleRegion)
			r.Get("/{code}/children", s.handleChildren)
		})
		r.Get("/resources/{key}", s.handleResource)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady requires a loaded region index. The remote cache tier is
// probed and reported, but a degraded tier does not fail readiness because
// the local tier keeps serving.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.deps.Regions == nil || s.deps.Regions.Len() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "region index not loaded",
		})
		return
	}
	_ = s.deps.Cache.Ping(ctx)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"regions":      s.deps.Regions.Len(),
		"cache_remote": s.deps.Cache.Status().Remote.State,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]any{
		"cache":   s.deps.Cache.Status(),
		"regions": s.deps.Regions.Stats(),
	}, 1)
}
