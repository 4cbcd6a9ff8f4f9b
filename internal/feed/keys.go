package feed

import (
	"fmt"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
)

// Fixed resource keys.
const (
	KeyEarthquakeLatest = "earthquake:latest"
	KeyEarthquakeRecent = "earthquake:recent"
	KeyEarthquakeFelt   = "earthquake:felt"
	KeyNowcastActive    = "nowcast:active"
)

// ActiveAlertsKey is the key of the active nowcast list in lang. The
// Indonesian list keeps the bare KeyNowcastActive.
func ActiveAlertsKey(lang string) string {
	if lang == LangID {
		return KeyNowcastActive
	}
	return KeyNowcastActive + ":" + lang
}

// NearbyKey is the canonical key of a nearby-earthquake query. Coordinates
// keep four decimals (about 11 m) and the radius one.
func NearbyKey(lat, lon, radiusKM float64) string {
	return fmt.Sprintf("earthquake:nearby:%.4f:%.4f:%.1f",
		domain.Round(lat, 4), domain.Round(lon, 4), domain.Round(radiusKM, 1))
}

// WeatherKey is the key of a village forecast.
func WeatherKey(adm4 string) string { return "weather:" + adm4 }

// WeatherCurrentKey is the key of a village's current conditions.
func WeatherCurrentKey(adm4 string) string { return "weather:" + adm4 + ":current" }

// NowcastProvinceKey is the key of a province's active warnings.
func NowcastProvinceKey(province string) string { return "nowcast:" + province }

// NowcastCheckKey is the key of a location check. location must already be
// normalized.
func NowcastCheckKey(location string) string { return "nowcast:check:" + location }
