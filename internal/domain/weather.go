package domain

import "time"

// WeatherForecast is the 3-day forecast for one village (ADM4) code.
type WeatherForecast struct {
	RegionCode string           `json:"region_code"`
	IssuedAt   time.Time        `json:"issued_at"`
	Location   ForecastLocation `json:"location"`
	Days       []ForecastDay    `json:"days"`
}

// ForecastLocation is the upstream's description of the forecast point.
type ForecastLocation struct {
	Province    string      `json:"province"`
	District    string      `json:"district"`
	Subdistrict string      `json:"subdistrict"`
	Village     string      `json:"village"`
	Coordinates Coordinates `json:"coordinates"`
	Timezone    string      `json:"timezone"`
}

// ForecastDay groups the predictions falling on one local calendar date.
type ForecastDay struct {
	Date        string       `json:"date"` // YYYY-MM-DD, local time
	Predictions []Prediction `json:"predictions"`
}

// Prediction is one 3-hourly forecast interval.
type Prediction struct {
	Timestamp      time.Time `json:"timestamp"`  // UTC
	LocalTime      string    `json:"local_time"` // as published, "2006-01-02 15:04:05"
	TemperatureC   float64   `json:"temperature_c"`
	HumidityPct    float64   `json:"humidity_pct"`
	WeatherCode    int       `json:"weather_code"`
	Weather        string    `json:"weather"`
	WeatherEN      string    `json:"weather_en"`
	Wind           Wind      `json:"wind"`
	CloudCoverPct  float64   `json:"cloud_cover_pct"`
	VisibilityM    int       `json:"visibility_m"`
	VisibilityText string    `json:"visibility_text"`
	IconURL        string    `json:"icon_url"`
}

// Wind is the forecast wind at 10m.
type Wind struct {
	SpeedKMH     float64 `json:"speed_kmh"`
	Direction    string  `json:"direction"` // compass point, e.g. "SW"
	DirectionDeg float64 `json:"direction_deg"`
}

// CurrentWeather is the prediction closest to a reference time.
type CurrentWeather struct {
	RegionCode string           `json:"region_code"`
	Location   ForecastLocation `json:"location"`
	Prediction Prediction       `json:"prediction"`
}

var weatherCodeNames = map[int][2]string{
	0:  {"Cerah", "Clear"},
	1:  {"Cerah Berawan", "Partly Cloudy"},
	2:  {"Berawan", "Mostly Cloudy"},
	3:  {"Berawan Tebal", "Overcast"},
	4:  {"Kabut", "Haze"},
	5:  {"Hujan Ringan", "Light Rain"},
	10: {"Hujan Sedang", "Moderate Rain"},
	45: {"Hujan Lebat", "Heavy Rain"},
	60: {"Hujan Lokal", "Local Rain"},
	95: {"Petir", "Thunderstorm"},
	97: {"Petir dan Hujan Lebat", "Severe Thunderstorm"},
}

// WeatherCodeName returns the Indonesian and English names of a BMKG weather
// code. Unknown codes report ok=false.
func WeatherCodeName(code int) (id, en string, ok bool) {
	n, ok := weatherCodeNames[code]
	return n[0], n[1], ok
}
