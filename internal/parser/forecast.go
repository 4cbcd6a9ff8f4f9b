package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
)

const (
	forecastTimeLayout = "2006-01-02 15:04:05"
	analysisLayout     = "2006-01-02T15:04:05"
	forecastDays       = 3
	iconBaseURL        = "https://api-apps.bmkg.go.id/storage/icon/cuaca/"
)

var iconNames = map[int]string{
	0:  "cerah",
	1:  "cerah-berawan",
	2:  "berawan",
	3:  "berawan-tebal",
	4:  "kabut",
	5:  "hujan-ringan",
	10: "hujan-sedang",
	45: "hujan-lebat",
	60: "hujan-lokal",
	95: "petir",
	97: "petir-hujan-lebat",
}

// number accepts a JSON number or a numeric string. BMKG has published both.
type number struct {
	v   float64
	set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, ok := finiteFloat(s)
		if !ok {
			return fmt.Errorf("invalid number %q", s)
		}
		n.v, n.set = v, true
		return nil
	}
	v, ok := finiteFloat(string(b))
	if !ok {
		return fmt.Errorf("invalid number %s", b)
	}
	n.v, n.set = v, true
	return nil
}

type forecastLocation struct {
	ADM4      string `json:"adm4"`
	Provinsi  string `json:"provinsi"`
	Kotkab    string `json:"kotkab"`
	Kabkota   string `json:"kabkota"`
	Kecamatan string `json:"kecamatan"`
	Desa      string `json:"desa"`
	Deskel    string `json:"deskel"`
	Lat       number `json:"lat"`
	Lon       number `json:"lon"`
	Timezone  string `json:"timezone"`
}

type forecastEntry struct {
	LocalDateTime string `json:"local_datetime"`
	UTCDateTime   string `json:"utc_datetime"`
	AnalysisDate  string `json:"analysis_date"`
	T             number `json:"t"`
	HU            number `json:"hu"`
	Weather       number `json:"weather"`
	WeatherDesc   string `json:"weather_desc"`
	WeatherDescEN string `json:"weather_desc_en"`
	WS            number `json:"ws"`
	WD            string `json:"wd"`
	WDDeg         number `json:"wd_deg"`
	TCC           number `json:"tcc"`
	VS            number `json:"vs"`
	VSText        string `json:"vs_text"`
}

// forecastBlock is either a flat entry or a {"cuaca": [[...], ...]} wrapper.
type forecastBlock struct {
	forecastEntry
	Cuaca [][]forecastEntry `json:"cuaca"`
}

type forecastDoc struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Lokasi  *forecastLocation `json:"lokasi"`
	Data    []forecastBlock   `json:"data"`
}

// ParseForecast parses a prakiraan-cuaca document into a forecast of at most
// three local calendar days.
func ParseForecast(raw []byte) (domain.WeatherForecast, error) {
	var doc forecastDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.WeatherForecast{}, parseErr(KindForecast, "", "decode json: %w", err)
	}
	if strings.EqualFold(doc.Status, "error") {
		return domain.WeatherForecast{}, parseErr(KindForecast, "status", "upstream error: %s", doc.Message)
	}
	if doc.Lokasi == nil {
		return domain.WeatherForecast{}, parseErr(KindForecast, "lokasi", "missing")
	}

	loc, code, err := parseForecastLocation(*doc.Lokasi)
	if err != nil {
		return domain.WeatherForecast{}, err
	}

	var entries []forecastEntry
	for _, block := range doc.Data {
		if len(block.Cuaca) == 0 {
			entries = append(entries, block.forecastEntry)
			continue
		}
		for _, day := range block.Cuaca {
			entries = append(entries, day...)
		}
	}
	if len(entries) == 0 {
		return domain.WeatherForecast{}, parseErr(KindForecast, "data", "no forecast entries")
	}

	seen := make(map[time.Time]struct{}, len(entries))
	byDate := make(map[string][]domain.Prediction)
	var issued, earliest time.Time
	for i := range entries {
		p, analysis, err := parseForecastEntry(entries[i])
		if err != nil {
			return domain.WeatherForecast{}, err
		}
		if _, dup := seen[p.Timestamp]; dup {
			continue
		}
		seen[p.Timestamp] = struct{}{}
		if analysis.After(issued) {
			issued = analysis
		}
		if earliest.IsZero() || p.Timestamp.Before(earliest) {
			earliest = p.Timestamp
		}
		date := p.LocalTime[:len("2006-01-02")]
		byDate[date] = append(byDate[date], p)
	}
	if issued.IsZero() {
		issued = earliest
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > forecastDays {
		dates = dates[:forecastDays]
	}

	days := make([]domain.ForecastDay, 0, len(dates))
	for _, d := range dates {
		preds := byDate[d]
		sort.Slice(preds, func(i, j int) bool { return preds[i].Timestamp.Before(preds[j].Timestamp) })
		days = append(days, domain.ForecastDay{Date: d, Predictions: preds})
	}

	return domain.WeatherForecast{
		RegionCode: code,
		IssuedAt:   issued,
		Location:   loc,
		Days:       days,
	}, nil
}

func parseForecastLocation(l forecastLocation) (domain.ForecastLocation, string, error) {
	code := strings.TrimSpace(l.ADM4)
	if code == "" {
		return domain.ForecastLocation{}, "", parseErr(KindForecast, "lokasi.adm4", "missing")
	}
	if level, err := domain.CodeLevel(code); err != nil || level != domain.LevelVillage {
		return domain.ForecastLocation{}, "", parseErr(KindForecast, "lokasi.adm4", "not a village code: %q", code)
	}
	if !l.Lat.set || !domain.ValidLat(l.Lat.v) {
		return domain.ForecastLocation{}, "", parseErr(KindForecast, "lokasi.lat", "missing or out of range")
	}
	if !l.Lon.set || !domain.ValidLon(l.Lon.v) {
		return domain.ForecastLocation{}, "", parseErr(KindForecast, "lokasi.lon", "missing or out of range")
	}
	return domain.ForecastLocation{
		Province:    l.Provinsi,
		District:    firstNonEmpty(l.Kotkab, l.Kabkota),
		Subdistrict: l.Kecamatan,
		Village:     firstNonEmpty(l.Desa, l.Deskel),
		Coordinates: domain.Coordinates{Lat: l.Lat.v, Lon: l.Lon.v},
		Timezone:    l.Timezone,
	}, code, nil
}

func parseForecastEntry(e forecastEntry) (domain.Prediction, time.Time, error) {
	utc, err := time.Parse(forecastTimeLayout, strings.TrimSpace(e.UTCDateTime))
	if err != nil {
		return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "utc_datetime", "unparseable timestamp %q", e.UTCDateTime)
	}
	local := strings.TrimSpace(e.LocalDateTime)
	localTime, err := time.Parse(forecastTimeLayout, local)
	if err != nil {
		return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "local_datetime", "unparseable timestamp %q", e.LocalDateTime)
	}

	var analysis time.Time
	if a := strings.TrimSpace(e.AnalysisDate); a != "" {
		analysis, err = time.Parse(analysisLayout, strings.TrimSuffix(a, "Z"))
		if err != nil {
			return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "analysis_date", "unparseable timestamp %q", a)
		}
	}

	if !e.T.set {
		return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "t", "missing temperature at %s", local)
	}
	if !(e.T.v >= -50 && e.T.v <= 60) {
		return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "t", "temperature %v out of range", e.T.v)
	}
	if !e.HU.set {
		return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "hu", "missing humidity at %s", local)
	}
	if !(e.HU.v >= 0 && e.HU.v <= 100) {
		return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "hu", "humidity %v out of range", e.HU.v)
	}
	if !e.Weather.set {
		return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "weather", "missing weather code at %s", local)
	}
	code := int(e.Weather.v)
	name, nameEN, ok := domain.WeatherCodeName(code)
	if !ok {
		name, nameEN = e.WeatherDesc, e.WeatherDescEN
	}
	if e.WS.set && !(e.WS.v >= 0) {
		return domain.Prediction{}, time.Time{}, parseErr(KindForecast, "ws", "negative wind speed %v", e.WS.v)
	}

	p := domain.Prediction{
		Timestamp:    utc.UTC(),
		LocalTime:    local,
		TemperatureC: e.T.v,
		HumidityPct:  e.HU.v,
		WeatherCode:  code,
		Weather:      name,
		WeatherEN:    nameEN,
		Wind: domain.Wind{
			SpeedKMH:     e.WS.v,
			Direction:    e.WD,
			DirectionDeg: e.WDDeg.v,
		},
		CloudCoverPct:  e.TCC.v,
		VisibilityText: e.VSText,
		IconURL:        iconURL(code, localTime.Hour()),
	}
	if e.VS.set {
		p.VisibilityM = int(e.VS.v)
		p.VisibilityText = visibilityText(p.VisibilityM)
	}
	return p, analysis, nil
}

func iconURL(code, localHour int) string {
	name, ok := iconNames[code]
	if !ok {
		name = "berawan"
	}
	suffix := "-pm"
	if localHour >= 6 && localHour < 18 {
		suffix = "-am"
	}
	return iconBaseURL + name + suffix + ".svg"
}

func visibilityText(m int) string {
	switch {
	case m >= 10000:
		return "> 10 km"
	case m >= 5000:
		return fmt.Sprintf("%d km", m/1000)
	case m >= 1000:
		return fmt.Sprintf("%.1f km", float64(m)/1000)
	default:
		return fmt.Sprintf("%d m", m)
	}
}

// CurrentPrediction picks the prediction whose timestamp is closest to now.
// Ties resolve to the earlier interval.
func CurrentPrediction(f domain.WeatherForecast, now time.Time) (domain.CurrentWeather, error) {
	var (
		best  domain.Prediction
		found bool
		delta time.Duration
	)
	for _, day := range f.Days {
		for _, p := range day.Predictions {
			d := p.Timestamp.Sub(now)
			if d < 0 {
				d = -d
			}
			if !found || d < delta {
				best, delta, found = p, d, true
			}
		}
	}
	if !found {
		return domain.CurrentWeather{}, domain.NotFoundf("forecast for %s has no predictions", f.RegionCode)
	}
	return domain.CurrentWeather{
		RegionCode: f.RegionCode,
		Location:   f.Location,
		Prediction: best,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
