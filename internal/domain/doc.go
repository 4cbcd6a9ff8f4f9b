// Package domain models the normalized entities served by the relay and the
// conventions of the upstream BMKG (Badan Meteorologi, Klimatologi, dan
// Geofisika) feeds they are derived from.
//
// # Data Sources
//
// Three upstream feeds are relayed, each with its own payload shape:
//
//	Earthquakes: https://data.bmkg.go.id/DataMKG/TEWS/{autogempa,gempaterkini,gempadirasakan}.json
//	Forecasts:   https://api.bmkg.go.id/publik/prakiraan-cuaca?adm4=<village code>
//	Nowcasts:    https://www.bmkg.go.id/alerts/nowcast/<lang>       (RSS list of active alerts)
//	             https://www.bmkg.go.id/alerts/nowcast/<lang>/<code>_alert.xml (CAP 1.2 document)
//
// The administrative region table (wilayah) is a static CSV of "code,name"
// rows loaded once at startup.
//
// # Region Codes
//
// Region codes are dot-separated numeric segments. The segment count is the
// administrative level:
//
//	33             province     (Jawa Tengah)
//	33.26          district     (Kab. Pekalongan)
//	33.26.16       subdistrict  (Wiradesa)
//	33.26.16.1001  village      (the ADM4 code used to key forecasts)
//
// The parent of a record is its code with the last segment removed.
//
// # Earthquake Conventions
//
// Times are split into "Tanggal" ("16 Feb 2026") and "Jam" ("13:15:30 WIB").
// The zone suffix is one of WIB (UTC+7), WITA (UTC+8) or WIT (UTC+9); all
// times are normalized to UTC.
//
// Coordinates carry a hemisphere suffix instead of a sign:
//
//	"6.89 LS"   → -6.89  (Lintang Selatan, south)
//	"3.12 LU"   →  3.12  (Lintang Utara, north)
//	"109.67 BT" → 109.67 (Bujur Timur, east)
//	"20.5 BB"   → -20.5  (Bujur Barat, west)
//
// # Nowcast Alert Codes
//
// Active alert codes look like "CBT20260216004": a province prefix ("CBT" for
// Banten, "CJG" for Jawa Tengah) followed by the issue date and a sequence
// number. The prefix is the province code used in nowcast resource keys.
//
// # Weather Codes
//
// Forecast entries carry a numeric weather code; see [WeatherCodeName] for the
// Indonesian and English names.
package domain
