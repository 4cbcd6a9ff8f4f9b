package feed

import (
	"context"
	"slices"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	"github.com/couchcryptid/bmkg-relay/internal/parser"
	"golang.org/x/sync/errgroup"
)

// LatestEarthquake returns the most recent significant event.
func (s *Service) LatestEarthquake(ctx context.Context) (domain.EarthquakeEvent, error) {
	return fetch.Resolve(ctx, s.orch, KeyEarthquakeLatest, fetch.CategoryLatest,
		s.upstream.LatestEarthquake,
		func(raw []byte) (domain.EarthquakeEvent, error) {
			return parser.ParseLatestEarthquake(raw, s.upstream.ShakemapBase())
		})
}

// RecentEarthquakes returns the latest M5.0+ events.
func (s *Service) RecentEarthquakes(ctx context.Context) ([]domain.EarthquakeEvent, error) {
	return s.earthquakeList(ctx, KeyEarthquakeRecent, s.upstream.RecentEarthquakes)
}

// FeltEarthquakes returns the latest events reported as felt.
func (s *Service) FeltEarthquakes(ctx context.Context) ([]domain.EarthquakeEvent, error) {
	return s.earthquakeList(ctx, KeyEarthquakeFelt, s.upstream.FeltEarthquakes)
}

func (s *Service) earthquakeList(ctx context.Context, key string, get func(context.Context) ([]byte, error)) ([]domain.EarthquakeEvent, error) {
	return fetch.Resolve(ctx, s.orch, key, fetch.CategoryList, get,
		func(raw []byte) ([]domain.EarthquakeEvent, error) {
			return parser.ParseEarthquakes(raw, s.upstream.ShakemapBase())
		})
}

// NearbyEarthquakes returns recent and felt events within radiusKM of a
// point, closest first.
func (s *Service) NearbyEarthquakes(ctx context.Context, lat, lon, radiusKM float64) ([]domain.NearbyEarthquake, error) {
	lat, lon, radiusKM = domain.Round(lat, 4), domain.Round(lon, 4), domain.Round(radiusKM, 1)
	if !domain.ValidLat(lat) {
		return nil, domain.InvalidArgumentf("latitude %v outside [-90, 90]", lat)
	}
	if !domain.ValidLon(lon) {
		return nil, domain.InvalidArgumentf("longitude %v outside [-180, 180]", lon)
	}
	if !(radiusKM > 0 && radiusKM <= s.maxRadiusKM) {
		return nil, domain.InvalidArgumentf("radius_km must be in (0, %v], got %v", s.maxRadiusKM, radiusKM)
	}

	return fetch.ResolveDerived(ctx, s.orch, NearbyKey(lat, lon, radiusKM), fetch.CategoryList,
		func(ctx context.Context) ([]domain.NearbyEarthquake, error) {
			var recent, felt []domain.EarthquakeEvent
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) {
				recent, err = s.RecentEarthquakes(gctx)
				return err
			})
			g.Go(func() (err error) {
				felt, err = s.FeltEarthquakes(gctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return nil, err
			}
			return nearby(mergeEvents(felt, recent), domain.Coordinates{Lat: lat, Lon: lon}, radiusKM), nil
		})
}

type eventID struct {
	unix      int64
	magnitude float64
}

// mergeEvents concatenates lists, keeping the first occurrence of each
// (datetime, magnitude) pair.
func mergeEvents(lists ...[]domain.EarthquakeEvent) []domain.EarthquakeEvent {
	seen := make(map[eventID]struct{})
	var out []domain.EarthquakeEvent
	for _, list := range lists {
		for _, e := range list {
			id := eventID{e.DateTime.Unix(), e.Magnitude}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

func nearby(events []domain.EarthquakeEvent, from domain.Coordinates, radiusKM float64) []domain.NearbyEarthquake {
	out := make([]domain.NearbyEarthquake, 0, len(events))
	for _, e := range events {
		d := domain.Round(domain.HaversineKM(from, e.Coordinates), 2)
		if d <= radiusKM {
			out = append(out, domain.NearbyEarthquake{Event: e, DistanceKM: d})
		}
	}
	slices.SortStableFunc(out, func(a, b domain.NearbyEarthquake) int {
		switch {
		case a.DistanceKM < b.DistanceKM:
			return -1
		case a.DistanceKM > b.DistanceKM:
			return 1
		}
		return b.Event.DateTime.Compare(a.Event.DateTime)
	})
	return out
}
