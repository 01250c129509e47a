package weather

import (
	"fmt"
	"strings"
)

// Location identifies the place a user asked weather for.
// Either City is set, or both Lat and Lon are.
type Location struct {
	City string   `json:"city,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// CityLocation builds a Location addressed by city name.
func CityLocation(city string) Location {
	return Location{City: city}
}

// CoordLocation builds a Location addressed by coordinates.
func CoordLocation(lat, lon float64) Location {
	return Location{Lat: &lat, Lon: &lon}
}

// HasCoords reports whether the location is addressed by lat/lon.
func (l Location) HasCoords() bool {
	return l.Lat != nil && l.Lon != nil
}

// IsZero reports whether the location carries no usable address.
func (l Location) IsZero() bool {
	return !l.HasCoords() && strings.TrimSpace(l.City) == ""
}

// Key returns the canonical identity of this location, used for the cache and
// in-flight request bookkeeping. Coordinates win over the city name.
func (l Location) Key() string {
	if l.HasCoords() {
		return fmt.Sprintf("lat:%.4f,%.4f", *l.Lat, *l.Lon)
	}
	return "city:" + strings.ToLower(strings.TrimSpace(l.City))
}

func (l Location) String() string {
	if l.HasCoords() {
		return fmt.Sprintf("%.4f,%.4f", *l.Lat, *l.Lon)
	}
	return l.City
}

// CurrentConditions is the flat, normalized view of the current weather.
type CurrentConditions struct {
	City          string  `json:"city"`
	Country       string  `json:"country"`
	Temperature   int     `json:"temperature"`
	FeelsLike     int     `json:"feelsLike"`
	Humidity      int     `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection int     `json:"windDirection"`
	Pressure      int     `json:"pressure"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	Visibility    int     `json:"visibility"`
	Sunrise       int64   `json:"sunrise"`
	Sunset        int64   `json:"sunset"`
	UpdateTime    int64   `json:"updateTime"` // observation time, unix seconds
}

// DailyForecast aggregates all forecast samples of one calendar date.
type DailyForecast struct {
	Date        string `json:"date"` // yyyy-mm-dd
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Day         int    `json:"day"`
	DayOfWeek   string `json:"dayOfWeek"`
	TempHigh    int    `json:"tempHigh"`
	TempLow     int    `json:"tempLow"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Pop         int    `json:"pop"` // precipitation probability, percent
}

// Forecast is the normalized multi-day forecast for a city.
// Days are ordered by ascending date.
type Forecast struct {
	City       string          `json:"city"`
	Country    string          `json:"country"`
	Days       []DailyForecast `json:"dailyForecasts"`
	UpdateTime int64           `json:"updateTime"` // unix seconds
}

// CitySearchItem is a geocoding match.
type CitySearchItem struct {
	Name       string            `json:"name"`
	LocalNames map[string]string `json:"local_names,omitempty"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Country    string            `json:"country"`
	State      string            `json:"state,omitempty"`
}
