package parser

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
)

// zoneOffsets maps Indonesian time zone suffixes to their UTC offset in hours.
var zoneOffsets = map[string]int{
	"WIB":  7,
	"WITA": 8,
	"WIT":  9,
}

// months accepts both English and Indonesian three-letter abbreviations.
var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "mei": time.May,
	"jun": time.June, "jul": time.July, "aug": time.August,
	"agu": time.August, "agt": time.August, "sep": time.September,
	"oct": time.October, "okt": time.October, "nov": time.November,
	"dec": time.December, "des": time.December,
}

type earthquakeDoc struct {
	Infogempa *struct {
		Gempa json.RawMessage `json:"gempa"`
	} `json:"Infogempa"`
}

type gempa struct {
	Tanggal   string `json:"Tanggal"`
	Jam       string `json:"Jam"`
	DateTime  string `json:"DateTime"`
	Lintang   string `json:"Lintang"`
	Bujur     string `json:"Bujur"`
	Magnitude string `json:"Magnitude"`
	Kedalaman string `json:"Kedalaman"`
	Wilayah   string `json:"Wilayah"`
	Potensi   string `json:"Potensi"`
	Dirasakan string `json:"Dirasakan"`
	Shakemap  string `json:"Shakemap"`
}

// ParseEarthquakes parses a TEWS document whose "Infogempa.gempa" is either a
// single event object or an array of events. Shakemap filenames are resolved
// against shakemapBase when it is non-empty.
func ParseEarthquakes(raw []byte, shakemapBase string) ([]domain.EarthquakeEvent, error) {
	var doc earthquakeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, parseErr(KindEarthquakeList, "", "decode json: %w", err)
	}
	if doc.Infogempa == nil || len(doc.Infogempa.Gempa) == 0 {
		return nil, parseErr(KindEarthquakeList, "Infogempa.gempa", "missing")
	}

	var items []gempa
	body := bytes.TrimSpace(doc.Infogempa.Gempa)
	switch {
	case bytes.HasPrefix(body, []byte("[")):
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, parseErr(KindEarthquakeList, "Infogempa.gempa", "decode list: %w", err)
		}
	case bytes.HasPrefix(body, []byte("{")):
		var one gempa
		if err := json.Unmarshal(body, &one); err != nil {
			return nil, parseErr(KindEarthquakeList, "Infogempa.gempa", "decode event: %w", err)
		}
		items = []gempa{one}
	default:
		return nil, parseErr(KindEarthquakeList, "Infogempa.gempa", "expected object or array")
	}

	events := make([]domain.EarthquakeEvent, 0, len(items))
	for i := range items {
		ev, err := parseGempa(items[i], shakemapBase)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// ParseLatestEarthquake parses a single-event document.
func ParseLatestEarthquake(raw []byte, shakemapBase string) (domain.EarthquakeEvent, error) {
	events, err := ParseEarthquakes(raw, shakemapBase)
	if err != nil {
		return domain.EarthquakeEvent{}, err
	}
	if len(events) == 0 {
		return domain.EarthquakeEvent{}, parseErr(KindEarthquakeList, "Infogempa.gempa", "no events")
	}
	return events[0], nil
}

func parseGempa(g gempa, shakemapBase string) (domain.EarthquakeEvent, error) {
	when, err := parseQuakeTime(g)
	if err != nil {
		return domain.EarthquakeEvent{}, err
	}

	lat, err := parseHemisphere(g.Lintang, "Lintang", "LU", "LS")
	if err != nil {
		return domain.EarthquakeEvent{}, err
	}
	if !domain.ValidLat(lat) {
		return domain.EarthquakeEvent{}, parseErr(KindEarthquakeList, "Lintang", "latitude %v out of range", lat)
	}
	lon, err := parseHemisphere(g.Bujur, "Bujur", "BT", "BB")
	if err != nil {
		return domain.EarthquakeEvent{}, err
	}
	if !domain.ValidLon(lon) {
		return domain.EarthquakeEvent{}, parseErr(KindEarthquakeList, "Bujur", "longitude %v out of range", lon)
	}

	mag, ok := leadingFloat(g.Magnitude)
	if !ok {
		return domain.EarthquakeEvent{}, parseErr(KindEarthquakeList, "Magnitude", "invalid magnitude %q", g.Magnitude)
	}
	if !(mag >= 0) {
		return domain.EarthquakeEvent{}, parseErr(KindEarthquakeList, "Magnitude", "negative magnitude %v", mag)
	}
	depth, ok := leadingFloat(g.Kedalaman)
	if !ok {
		return domain.EarthquakeEvent{}, parseErr(KindEarthquakeList, "Kedalaman", "invalid depth %q", g.Kedalaman)
	}
	if !(depth >= 0) {
		return domain.EarthquakeEvent{}, parseErr(KindEarthquakeList, "Kedalaman", "negative depth %v", depth)
	}

	felt := strings.TrimSpace(g.Dirasakan)
	ev := domain.EarthquakeEvent{
		Magnitude:        mag,
		DepthKM:          depth,
		DateTime:         when,
		Coordinates:      domain.Coordinates{Lat: lat, Lon: lon},
		RegionText:       strings.TrimSpace(g.Wilayah),
		Felt:             felt != "",
		FeltReport:       felt,
		TsunamiPotential: strings.TrimSpace(g.Potensi),
	}
	if sm := strings.TrimSpace(g.Shakemap); sm != "" {
		if shakemapBase != "" {
			ev.ShakemapURL = strings.TrimRight(shakemapBase, "/") + "/" + sm
		} else {
			ev.ShakemapURL = sm
		}
	}
	return ev, nil
}

// parseQuakeTime prefers the ISO "DateTime" field and falls back to the
// "Tanggal"/"Jam" pair.
func parseQuakeTime(g gempa) (time.Time, error) {
	if dt := strings.TrimSpace(g.DateTime); dt != "" {
		t, err := time.Parse(time.RFC3339, dt)
		if err != nil {
			return time.Time{}, parseErr(KindEarthquakeList, "DateTime", "unparseable timestamp %q", dt)
		}
		return t.UTC(), nil
	}

	dateParts := strings.Fields(g.Tanggal)
	if len(dateParts) != 3 {
		return time.Time{}, parseErr(KindEarthquakeList, "Tanggal", "unparseable date %q", g.Tanggal)
	}
	month, ok := months[strings.ToLower(dateParts[1])]
	if !ok {
		return time.Time{}, parseErr(KindEarthquakeList, "Tanggal", "unknown month %q", dateParts[1])
	}
	day, err := strconv.Atoi(dateParts[0])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, parseErr(KindEarthquakeList, "Tanggal", "unparseable day %q", dateParts[0])
	}
	year, err := strconv.Atoi(dateParts[2])
	if err != nil || year < 1900 {
		return time.Time{}, parseErr(KindEarthquakeList, "Tanggal", "unparseable year %q", dateParts[2])
	}

	timeParts := strings.Fields(g.Jam)
	if len(timeParts) == 0 || len(timeParts) > 2 {
		return time.Time{}, parseErr(KindEarthquakeList, "Jam", "unparseable time %q", g.Jam)
	}
	clock, err := time.Parse("15:04:05", timeParts[0])
	if err != nil {
		return time.Time{}, parseErr(KindEarthquakeList, "Jam", "unparseable time %q", g.Jam)
	}
	offset := zoneOffsets["WIB"]
	if len(timeParts) == 2 {
		o, ok := zoneOffsets[strings.ToUpper(timeParts[1])]
		if !ok {
			return time.Time{}, parseErr(KindEarthquakeList, "Jam", "unknown time zone %q", timeParts[1])
		}
		offset = o
	}

	zone := time.FixedZone(strings.ToUpper(timeParts[len(timeParts)-1]), offset*3600)
	local := time.Date(year, month, day, clock.Hour(), clock.Minute(), clock.Second(), 0, zone)
	if local.Day() != day {
		return time.Time{}, parseErr(KindEarthquakeList, "Tanggal", "invalid date %q", g.Tanggal)
	}
	return local.UTC(), nil
}

// parseHemisphere parses "6.89 LS" style values; neg is the suffix that
// flips the sign. A bare number keeps its own sign.
func parseHemisphere(s, field, pos, neg string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, parseErr(KindEarthquakeList, field, "malformed coordinate %q", s)
	}
	v, ok := leadingFloat(fields[0])
	if !ok {
		return 0, parseErr(KindEarthquakeList, field, "malformed coordinate %q", s)
	}
	if len(fields) == 2 {
		switch strings.ToUpper(fields[1]) {
		case pos:
		case neg:
			v = -v
		default:
			return 0, parseErr(KindEarthquakeList, field, "unknown hemisphere %q", fields[1])
		}
	}
	return v, nil
}
