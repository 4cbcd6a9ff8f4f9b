package feed

import (
	"context"
	"strconv"
	"strings"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/fetch"
)

// resource is one row of the key dispatch table. parts is the key split on
// ":"; match decides whether the row owns the key and resolve produces it.
type resource struct {
	pattern  string
	category fetch.Category
	match    func(parts []string) bool
	resolve  func(ctx context.Context, s *Service, parts []string) (any, error)
}

// resources is ordered: the first matching row wins.
var resources = []resource{
	{
		pattern:  KeyEarthquakeLatest,
		category: fetch.CategoryLatest,
		match:    exact("earthquake", "latest"),
		resolve: func(ctx context.Context, s *Service, _ []string) (any, error) {
			return s.LatestEarthquake(ctx)
		},
	},
	{
		pattern:  KeyEarthquakeRecent,
		category: fetch.CategoryList,
		match:    exact("earthquake", "recent"),
		resolve: func(ctx context.Context, s *Service, _ []string) (any, error) {
			return s.RecentEarthquakes(ctx)
		},
	},
	{
		pattern:  KeyEarthquakeFelt,
		category: fetch.CategoryList,
		match:    exact("earthquake", "felt"),
		resolve: func(ctx context.Context, s *Service, _ []string) (any, error) {
			return s.FeltEarthquakes(ctx)
		},
	},
	{
		pattern:  "earthquake:nearby:<lat>:<lon>:<radius_km>",
		category: fetch.CategoryList,
		match: func(p []string) bool {
			return len(p) == 5 && p[0] == "earthquake" && p[1] == "nearby"
		},
		resolve: func(ctx context.Context, s *Service, p []string) (any, error) {
			var vals [3]float64
			for i, name := range []string{"lat", "lon", "radius_km"} {
				v, err := strconv.ParseFloat(p[i+2], 64)
				if err != nil {
					return nil, domain.InvalidArgumentf("%s %q is not a number", name, p[i+2])
				}
				vals[i] = v
			}
			return s.NearbyEarthquakes(ctx, vals[0], vals[1], vals[2])
		},
	},
	{
		pattern:  "weather:<adm4>:current",
		category: fetch.CategoryLatest,
		match: func(p []string) bool {
			return len(p) == 3 && p[0] == "weather" && p[2] == "current"
		},
		resolve: func(ctx context.Context, s *Service, p []string) (any, error) {
			return s.CurrentWeather(ctx, p[1])
		},
	},
	{
		pattern:  "weather:<adm4>",
		category: fetch.CategoryForecast,
		match: func(p []string) bool {
			return len(p) == 2 && p[0] == "weather"
		},
		resolve: func(ctx context.Context, s *Service, p []string) (any, error) {
			return s.Forecast(ctx, p[1])
		},
	},
	{
		pattern:  KeyNowcastActive,
		category: fetch.CategoryNowcast,
		match:    exact("nowcast", "active"),
		resolve: func(ctx context.Context, s *Service, _ []string) (any, error) {
			return s.ActiveAlerts(ctx, LangID)
		},
	},
	{
		pattern:  "nowcast:active:<lang>",
		category: fetch.CategoryNowcast,
		match: func(p []string) bool {
			return len(p) == 3 && p[0] == "nowcast" && p[1] == "active"
		},
		resolve: func(ctx context.Context, s *Service, p []string) (any, error) {
			if p[2] == LangID {
				return nil, domain.InvalidArgumentf("use %s for the Indonesian list", KeyNowcastActive)
			}
			return s.ActiveAlerts(ctx, p[2])
		},
	},
	{
		pattern:  "nowcast:check:<location>",
		category: fetch.CategoryNowcast,
		match: func(p []string) bool {
			return len(p) >= 3 && p[0] == "nowcast" && p[1] == "check"
		},
		resolve: func(ctx context.Context, s *Service, p []string) (any, error) {
			return s.CheckLocation(ctx, strings.Join(p[2:], ":"))
		},
	},
	{
		pattern:  "nowcast:<province_code>",
		category: fetch.CategoryNowcast,
		match: func(p []string) bool {
			return len(p) == 2 && p[0] == "nowcast"
		},
		resolve: func(ctx context.Context, s *Service, p []string) (any, error) {
			return s.ProvinceNowcast(ctx, p[1])
		},
	},
}

func exact(parts ...string) func([]string) bool {
	return func(p []string) bool {
		if len(p) != len(parts) {
			return false
		}
		for i := range parts {
			if p[i] != parts[i] {
				return false
			}
		}
		return true
	}
}

func lookupResource(key string) (resource, []string, bool) {
	parts := strings.Split(key, ":")
	for _, r := range resources {
		if r.match(parts) {
			return r, parts, true
		}
	}
	return resource{}, nil, false
}

// Resolve dispatches any key in the resource namespace to its resolver.
func (s *Service) Resolve(ctx context.Context, key string) (any, error) {
	r, parts, ok := lookupResource(key)
	if !ok {
		return nil, domain.NotFoundf("unknown resource key %q", key)
	}
	return r.resolve(ctx, s, parts)
}

// Category returns the TTL category of key.
func Category(key string) (fetch.Category, bool) {
	r, _, ok := lookupResource(key)
	return r.category, ok
}

// Patterns lists the key namespace in dispatch order.
func Patterns() []string {
	out := make([]string, len(resources))
	for i, r := range resources {
		out[i] = r.pattern
	}
	return out
}
