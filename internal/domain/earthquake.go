package domain

import "time"

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EarthquakeEvent is one seismic event from the TEWS feeds.
type EarthquakeEvent struct {
	Magnitude        float64     `json:"magnitude"`
	DepthKM          float64     `json:"depth_km"`
	DateTime         time.Time   `json:"datetime"`
	Coordinates      Coordinates `json:"coordinates"`
	RegionText       string      `json:"region_text"`
	Felt             bool        `json:"felt"`
	FeltReport       string      `json:"felt_report,omitempty"`
	TsunamiPotential string      `json:"tsunami_potential,omitempty"`
	ShakemapURL      string      `json:"shakemap_url,omitempty"`
}

// NearbyEarthquake pairs an event with its great-circle distance from a
// query point.
type NearbyEarthquake struct {
	Event      EarthquakeEvent `json:"event"`
	DistanceKM float64         `json:"distance_km"`
}
