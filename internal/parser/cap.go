package parser

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
)

// alertCodeRe matches active alert codes such as "CBT20260216004": a
// province prefix followed by the issue date and a sequence number.
var alertCodeRe = regexp.MustCompile(`^([A-Z]{2,4})(\d{8}\d+)$`)

const defaultSeverity = "Unknown"

// Element names carry no namespace so documents with and without the CAP 1.2
// namespace both decode.
type capAlert struct {
	XMLName    xml.Name  `xml:"alert"`
	Identifier string    `xml:"identifier"`
	Sender     string    `xml:"sender"`
	Sent       string    `xml:"sent"`
	Infos      []capInfo `xml:"info"`
}

type capInfo struct {
	Language    string     `xml:"language"`
	Event       string     `xml:"event"`
	Urgency     string     `xml:"urgency"`
	Severity    string     `xml:"severity"`
	Certainty   string     `xml:"certainty"`
	Effective   string     `xml:"effective"`
	Expires     string     `xml:"expires"`
	SenderName  string     `xml:"senderName"`
	Headline    string     `xml:"headline"`
	Description string     `xml:"description"`
	Web         string     `xml:"web"`
	Areas       []capArea  `xml:"area"`
	Parameters  []capValue `xml:"parameter"`
}

type capArea struct {
	AreaDesc string     `xml:"areaDesc"`
	Polygons []string   `xml:"polygon"`
	Geocodes []capValue `xml:"geocode"`
}

type capValue struct {
	ValueName string `xml:"valueName"`
	Value     string `xml:"value"`
}

// ParseCAP parses a CAP 1.2 alert document.
//
// Identity fields are strict: the identifier, a derivable province code and a
// well-formed validity window (effective before expires) are required.
// Descriptive fields are tolerant: absent severity becomes "Unknown", absent
// text fields become "", absent polygons become an empty area, and every
// warning carries "id" and "en" description keys.
func ParseCAP(raw []byte) (domain.NowcastWarning, error) {
	var doc capAlert
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return domain.NowcastWarning{}, parseErr(KindCAP, "", "decode xml: %w", err)
	}

	id := strings.TrimSpace(doc.Identifier)
	if id == "" {
		return domain.NowcastWarning{}, parseErr(KindCAP, "identifier", "missing")
	}
	if len(doc.Infos) == 0 {
		return domain.NowcastWarning{}, parseErr(KindCAP, "info", "missing")
	}
	primary := primaryInfo(doc.Infos)

	from, err := parseCAPTime(primary.Effective, "effective")
	if err != nil {
		return domain.NowcastWarning{}, err
	}
	until, err := parseCAPTime(primary.Expires, "expires")
	if err != nil {
		return domain.NowcastWarning{}, err
	}
	if !until.After(from) {
		return domain.NowcastWarning{}, parseErr(KindCAP, "expires", "validity window ends at %s, before it starts at %s", until, from)
	}

	province := provinceCode(id, primary)
	if province == "" {
		return domain.NowcastWarning{}, parseErr(KindCAP, "province", "cannot derive province code")
	}

	w := domain.NowcastWarning{
		AlertCode:    id,
		ProvinceCode: province,
		Event:        strings.TrimSpace(primary.Event),
		Severity:     strings.TrimSpace(primary.Severity),
		Urgency:      strings.TrimSpace(primary.Urgency),
		Certainty:    strings.TrimSpace(primary.Certainty),
		Headline:     strings.TrimSpace(primary.Headline),
		ValidFrom:    from,
		ValidUntil:   until,
		AreaNames:    []string{},
		AffectedArea: []domain.Vertex{},
		Description:  map[string]string{"id": "", "en": ""},
		Sender:       firstNonEmpty(primary.SenderName, doc.Sender),
		InfoURL:      strings.TrimSpace(primary.Web),
	}
	if w.Severity == "" {
		w.Severity = defaultSeverity
	}

	for _, area := range primary.Areas {
		if name := strings.TrimSpace(area.AreaDesc); name != "" {
			w.AreaNames = append(w.AreaNames, name)
		}
		for _, poly := range area.Polygons {
			vertices, err := parsePolygon(poly)
			if err != nil {
				return domain.NowcastWarning{}, err
			}
			w.AffectedArea = append(w.AffectedArea, vertices...)
		}
	}

	for _, info := range doc.Infos {
		lang := languageKey(info.Language)
		if desc := strings.TrimSpace(info.Description); desc != "" && w.Description[lang] == "" {
			w.Description[lang] = desc
		}
	}
	return w, nil
}

// primaryInfo prefers the Indonesian info block.
func primaryInfo(infos []capInfo) capInfo {
	for _, info := range infos {
		if languageKey(info.Language) == "id" {
			return info
		}
	}
	return infos[0]
}

// languageKey reduces "id-ID" or "en-US" to "id" or "en". CAP's default
// language is the publisher's, which for BMKG is Indonesian.
func languageKey(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "id"
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

func parseCAPTime(s, field string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, parseErr(KindCAP, field, "missing")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, parseErr(KindCAP, field, "unparseable timestamp %q", s)
	}
	return t.UTC(), nil
}

// provinceCode looks, in order, at an area geocode named "province", the
// identifier itself, and the path segments of the info URL.
func provinceCode(identifier string, info capInfo) string {
	for _, area := range info.Areas {
		for _, gc := range area.Geocodes {
			if strings.EqualFold(strings.TrimSpace(gc.ValueName), "province") {
				if v := strings.ToUpper(strings.TrimSpace(gc.Value)); v != "" {
					return v
				}
			}
		}
	}
	if p := ProvinceFromAlertCode(identifier); p != "" {
		return p
	}
	if web := strings.TrimSpace(info.Web); web != "" {
		if u, err := url.Parse(web); err == nil {
			for _, seg := range strings.Split(u.Path, "/") {
				seg = strings.TrimSuffix(seg, path.Ext(seg))
				seg = strings.TrimSuffix(seg, "_alert")
				if p := ProvinceFromAlertCode(seg); p != "" {
					return p
				}
			}
		}
	}
	return ""
}

// ProvinceFromAlertCode returns the province prefix of an active alert code,
// or "" when code is not one.
func ProvinceFromAlertCode(code string) string {
	m := alertCodeRe.FindStringSubmatch(strings.TrimSpace(code))
	if m == nil {
		return ""
	}
	return m[1]
}

// parsePolygon parses "lat,lon lat,lon ..." pairs.
func parsePolygon(s string) ([]domain.Vertex, error) {
	fields := strings.Fields(s)
	out := make([]domain.Vertex, 0, len(fields))
	for _, pair := range fields {
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, parseErr(KindCAP, "polygon", "malformed vertex %q", pair)
		}
		lat, err1 := strconv.ParseFloat(parts[0], 64)
		lon, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return nil, parseErr(KindCAP, "polygon", "malformed vertex %q", pair)
		}
		if !domain.ValidLat(lat) || !domain.ValidLon(lon) {
			return nil, parseErr(KindCAP, "polygon", "vertex %q out of range", pair)
		}
		out = append(out, domain.Vertex{Lat: lat, Lon: lon})
	}
	return out, nil
}
