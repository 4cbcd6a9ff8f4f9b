// Package feed binds resource keys to their upstream fetch, parser and TTL
// category, and implements the derived resources built on top of them.
package feed

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	"github.com/jonboulle/clockwork"
)

// DefaultMaxRadiusKM bounds nearby-earthquake queries.
const DefaultMaxRadiusKM = 2000

// Upstream fetches raw BMKG payloads. *bmkg.Client implements it.
type Upstream interface {
	LatestEarthquake(ctx context.Context) ([]byte, error)
	RecentEarthquakes(ctx context.Context) ([]byte, error)
	FeltEarthquakes(ctx context.Context) ([]byte, error)
	ShakemapBase() string
	Forecast(ctx context.Context, adm4 string) ([]byte, error)
	ActiveAlerts(ctx context.Context, lang string) ([]byte, error)
	Alert(ctx context.Context, lang, alertCode string) ([]byte, error)
}

// RegionLookup resolves region codes. *region.Index implements it.
type RegionLookup interface {
	Lookup(code string) (domain.RegionRecord, error)
}

// Service resolves every resource in the key namespace.
type Service struct {
	upstream    Upstream
	regions     RegionLookup
	orch        *fetch.Orchestrator
	clock       clockwork.Clock
	logger      *slog.Logger
	maxRadiusKM float64
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to pick the current forecast interval.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger for recoverable upstream gaps. The default
// discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxRadiusKM overrides DefaultMaxRadiusKM.
func WithMaxRadiusKM(km float64) Option {
	return func(s *Service) { s.maxRadiusKM = km }
}

// NewService creates a Service.
func NewService(upstream Upstream, regions RegionLookup, orch *fetch.Orchestrator, opts ...Option) *Service {
	s := &Service{
		upstream:    upstream,
		regions:     regions,
		orch:        orch,
		clock:       clockwork.NewRealClock(),
		logger:      slog.New(slog.DiscardHandler),
		maxRadiusKM: DefaultMaxRadiusKM,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxRadiusKM is the largest accepted nearby radius.
func (s *Service) MaxRadiusKM() float64 { return s.maxRadiusKM }
