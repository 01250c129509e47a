package weather

import (
	"context"
)

// Condition is one entry of the provider's weather[] array.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CurrentPayload is the subset of the provider's current-weather response
// used by NormalizeCurrent.
type CurrentPayload struct {
	Name    string      `json:"name"`
	Dt      int64       `json:"dt"`
	Weather []Condition `json:"weather"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Visibility float64 `json:"visibility"`
	Sys        struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

// ForecastSample is one entry of the 3-hour forecast list.
type ForecastSample struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []Condition `json:"weather"`
	Pop     float64     `json:"pop"`
}

// ForecastPayload is the subset of the provider's forecast response used by
// NormalizeForecast.
type ForecastPayload struct {
	List []ForecastSample `json:"list"`
	City struct {
		Name     string `json:"name"`
		Country  string `json:"country"`
		Timezone int    `json:"timezone"` // offset from UTC, seconds
	} `json:"city"`
}

// Provider abstracts the weather data source. Implementations must honour
// ctx cancellation and return *APIError for classified failures.
type Provider interface {
	FetchCurrent(ctx context.Context, loc Location) (CurrentPayload, error)
	FetchForecast(ctx context.Context, loc Location) (ForecastPayload, error)
}

// Geocoder resolves city names to coordinates and back.
type Geocoder interface {
	SearchCities(ctx context.Context, query string, limit int) ([]CitySearchItem, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) ([]CitySearchItem, error)
}
