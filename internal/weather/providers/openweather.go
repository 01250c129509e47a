package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	DefaultOpenWeatherBaseURL = "https://api.openweathermap.org"

	currentPath        = "/data/2.5/weather"
	forecastPath       = "/data/2.5/forecast"
	geocodingPath      = "/geo/1.0/direct"
	reverseGeocodePath = "/geo/1.0/reverse"

	// forecastSamples asks for the full 5 day / 3 hour window.
	forecastSamples = 40
)

// OpenWeatherConfig configures an OpenWeatherClient.
type OpenWeatherConfig struct {
	APIKey  string
	BaseURL string // defaults to DefaultOpenWeatherBaseURL
	Lang    string // defaults to "en"
	Backoff BackoffConfig
}

// OpenWeatherClient talks to OpenWeatherMap. It implements weather.Provider
// and weather.Geocoder.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	lang    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherClient(client *http.Client, cfg OpenWeatherConfig) *OpenWeatherClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenWeatherBaseURL
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Backoff.MaxInterval <= 0 {
		cfg.Backoff.MaxInterval = 5 * time.Second
	}

	return &OpenWeatherClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		lang:    cfg.Lang,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: cfg.Backoff,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherClient) FetchCurrent(ctx context.Context, loc weather.Location) (weather.CurrentPayload, error) {
	var payload weather.CurrentPayload
	err := p.get(ctx, currentPath, locationValues(loc), &payload)
	return payload, err
}

func (p *OpenWeatherClient) FetchForecast(ctx context.Context, loc weather.Location) (weather.ForecastPayload, error) {
	values := locationValues(loc)
	values.Set("cnt", strconv.Itoa(forecastSamples))

	var payload weather.ForecastPayload
	err := p.get(ctx, forecastPath, values, &payload)
	return payload, err
}

func (p *OpenWeatherClient) SearchCities(ctx context.Context, query string, limit int) ([]weather.CitySearchItem, error) {
	if limit <= 0 {
		limit = 10
	}
	values := url.Values{}
	values.Set("q", query)
	values.Set("limit", strconv.Itoa(limit))

	var items []weather.CitySearchItem
	err := p.get(ctx, geocodingPath, values, &items)
	return items, err
}

func (p *OpenWeatherClient) ReverseGeocode(ctx context.Context, lat, lon float64) ([]weather.CitySearchItem, error) {
	values := url.Values{}
	values.Set("lat", formatFloat(lat))
	values.Set("lon", formatFloat(lon))
	values.Set("limit", "1")

	var items []weather.CitySearchItem
	err := p.get(ctx, reverseGeocodePath, values, &items)
	return items, err
}

func (p *OpenWeatherClient) get(ctx context.Context, path string, values url.Values, out any) error {
	if p.apiKey == "" {
		return &weather.APIError{Kind: weather.KindUnauthorized, Message: "openweather api key is not configured"}
	}

	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lang", p.lang)

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classifyTransportError(ctx, err)
		}
		return &weather.APIError{Kind: weather.KindUnknown, Message: "malformed response from " + path, Err: err}
	}
	return nil
}

func locationValues(loc weather.Location) url.Values {
	values := url.Values{}
	if loc.HasCoords() {
		values.Set("lat", formatFloat(*loc.Lat))
		values.Set("lon", formatFloat(*loc.Lon))
	} else {
		values.Set("q", loc.City)
	}
	return values
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
