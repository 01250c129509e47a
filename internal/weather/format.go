package weather

import (
	"fmt"
	"math"
)

// TemperatureUnit selects the display unit for FormatTemperature.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "celsius"
	Fahrenheit TemperatureUnit = "fahrenheit"
)

var compass = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// FormatTemperature renders a Celsius value in the requested unit.
func FormatTemperature(celsius float64, unit TemperatureUnit) string {
	if unit == Fahrenheit {
		return fmt.Sprintf("%d°F", round(celsius*9/5+32))
	}
	return fmt.Sprintf("%d°C", round(celsius))
}

// WindDirection maps degrees to an 8-point compass label.
func WindDirection(deg float64) string {
	idx := int(math.Floor(deg/45+0.5)) % 8
	if idx < 0 {
		idx += 8
	}
	return compass[idx]
}

// IconURL returns the provider's image URL for an icon code.
func IconURL(icon string, large bool) string {
	if large {
		return fmt.Sprintf("https://openweathermap.org/img/wn/%s@4x.png", icon)
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", icon)
}
