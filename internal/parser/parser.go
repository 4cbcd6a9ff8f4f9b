package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
)

// Kind names an upstream payload shape.
type Kind string

const (
	KindEarthquakeList Kind = "earthquake"
	KindForecast       Kind = "forecast"
	KindCAP            Kind = "cap"
	KindRSS            Kind = "rss"
	KindRegionCSV      Kind = "region"
)

// Parse dispatches raw to the parser for kind. The concrete result types are
// []domain.EarthquakeEvent, domain.WeatherForecast, domain.NowcastWarning,
// []domain.ActiveAlert and []domain.RegionRecord respectively.
func Parse(kind Kind, raw []byte) (any, error) {
	switch kind {
	case KindEarthquakeList:
		return ParseEarthquakes(raw, "")
	case KindForecast:
		return ParseForecast(raw)
	case KindCAP:
		return ParseCAP(raw)
	case KindRSS:
		return ParseActiveAlerts(raw)
	case KindRegionCSV:
		return ParseRegionCSV(raw)
	default:
		return nil, fmt.Errorf("unknown payload kind %q", kind)
	}
}

func parseErr(kind Kind, field string, format string, args ...any) error {
	return &domain.ParseError{Format: string(kind), Field: field, Err: fmt.Errorf(format, args...)}
}

// leadingFloat parses the first whitespace-separated token of s, so that
// "5.4 SR" and "10 km" both parse. NaN and infinities are rejected.
func leadingFloat(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	return finiteFloat(strings.ReplaceAll(fields[0], ",", "."))
}

// finiteFloat is strconv.ParseFloat restricted to finite values;
// ParseFloat itself accepts "NaN" and "Inf".
func finiteFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
