package domain

import "time"

// Vertex is one polygon point of an alert's affected area.
type Vertex struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NowcastWarning is a short-horizon severe-weather warning from one CAP
// alert document.
type NowcastWarning struct {
	AlertCode    string            `json:"alert_code"`
	ProvinceCode string            `json:"province_code"`
	Event        string            `json:"event"`
	Severity     string            `json:"severity"`
	Urgency      string            `json:"urgency"`
	Certainty    string            `json:"certainty"`
	Headline     string            `json:"headline"`
	ValidFrom    time.Time         `json:"valid_from"`
	ValidUntil   time.Time         `json:"valid_until"`
	AreaNames    []string          `json:"area_names"`
	AffectedArea []Vertex          `json:"affected_area"`
	Description  map[string]string `json:"description"` // keyed by language: "id", "en"
	Sender       string            `json:"sender,omitempty"`
	InfoURL      string            `json:"info_url,omitempty"`
}

// SameIdentity reports whether two warnings describe the same alert.
func (w NowcastWarning) SameIdentity(o NowcastWarning) bool {
	return w.AlertCode == o.AlertCode &&
		w.ProvinceCode == o.ProvinceCode &&
		w.ValidFrom.Equal(o.ValidFrom) &&
		w.ValidUntil.Equal(o.ValidUntil)
}

// ActiveAlert is one entry of the active-alert list.
type ActiveAlert struct {
	AlertCode    string    `json:"alert_code"`
	ProvinceCode string    `json:"province_code"`
	Province     string    `json:"province"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	PublishedAt  time.Time `json:"published_at"`
	Link         string    `json:"link"`
}

// ProvinceNowcast holds every active warning for one province.
type ProvinceNowcast struct {
	ProvinceCode string           `json:"province_code"`
	Warnings     []NowcastWarning `json:"warnings"`
}

// LocationCheck reports the active warnings mentioning a location.
type LocationCheck struct {
	Location   string           `json:"location"`
	HasWarning bool             `json:"has_warning"`
	Warnings   []NowcastWarning `json:"warnings"`
}
