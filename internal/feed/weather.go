package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	"github.com/couchcryptid/bmkg-relay/internal/parser"
)

// Forecast returns the 3-day forecast for a village code. The code is
// checked against the region index before anything is fetched.
func (s *Service) Forecast(ctx context.Context, adm4 string) (domain.WeatherForecast, error) {
	code, err := s.village(adm4)
	if err != nil {
		return domain.WeatherForecast{}, err
	}
	return fetch.Resolve(ctx, s.orch, WeatherKey(code), fetch.CategoryForecast,
		func(ctx context.Context) ([]byte, error) { return s.upstream.Forecast(ctx, code) },
		func(raw []byte) (domain.WeatherForecast, error) {
			f, err := parser.ParseForecast(raw)
			if err != nil {
				return f, err
			}
			if f.RegionCode != code {
				return domain.WeatherForecast{}, &domain.ParseError{Format: string(parser.KindForecast), Field: "lokasi.adm4",
					Err: fmt.Errorf("got %s for requested %s", f.RegionCode, code)}
			}
			return f, nil
		})
}

// CurrentWeather returns the forecast interval closest to now.
func (s *Service) CurrentWeather(ctx context.Context, adm4 string) (domain.CurrentWeather, error) {
	code, err := s.village(adm4)
	if err != nil {
		return domain.CurrentWeather{}, err
	}
	return fetch.ResolveDerived(ctx, s.orch, WeatherCurrentKey(code), fetch.CategoryLatest,
		func(ctx context.Context) (domain.CurrentWeather, error) {
			f, err := s.Forecast(ctx, code)
			if err != nil {
				return domain.CurrentWeather{}, err
			}
			return parser.CurrentPrediction(f, s.clock.Now())
		})
}

func (s *Service) village(adm4 string) (string, error) {
	code := strings.TrimSpace(adm4)
	level, err := domain.CodeLevel(code)
	if err != nil {
		return "", err
	}
	if level != domain.LevelVillage {
		return "", domain.InvalidArgumentf("forecasts are keyed by village (adm4) code; %s is a %s", code, level)
	}
	if _, err := s.regions.Lookup(code); err != nil {
		return "", err
	}
	return code, nil
}
