package weather

import (
	"math"
	"time"
)

// NormalizeCurrent flattens a current-weather payload. Missing description or
// icon fall back to the empty string.
func NormalizeCurrent(p CurrentPayload) CurrentConditions {
	var desc, icon string
	if len(p.Weather) > 0 {
		desc = p.Weather[0].Description
		icon = p.Weather[0].Icon
	}

	return CurrentConditions{
		City:          p.Name,
		Country:       p.Sys.Country,
		Temperature:   round(p.Main.Temp),
		FeelsLike:     round(p.Main.FeelsLike),
		Humidity:      round(p.Main.Humidity),
		WindSpeed:     p.Wind.Speed,
		WindDirection: round(p.Wind.Deg),
		Pressure:      round(p.Main.Pressure),
		Description:   desc,
		Icon:          icon,
		Visibility:    round(p.Visibility),
		Sunrise:       p.Sys.Sunrise,
		Sunset:        p.Sys.Sunset,
		UpdateTime:    p.Dt,
	}
}

// NormalizeForecast turns the 3-hour sample list into daily aggregates.
// Samples are grouped by UTC date whatever the city's offset.
// now stamps the result's UpdateTime.
func NormalizeForecast(p ForecastPayload, now time.Time) Forecast {
	return Forecast{
		City:       p.City.Name,
		Country:    p.City.Country,
		Days:       AggregateDays(p.List, time.UTC),
		UpdateTime: now.Unix(),
	}
}

// round matches half-up rounding towards +Inf, so -2.5 becomes -2.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
