package weather

import (
	"math"
	"time"
)

// MaxForecastDays caps the number of daily entries kept.
const MaxForecastDays = 7

// AggregateDays groups forecast samples by calendar date in zone and reduces
// each group to a DailyForecast.
//
// High/low are the rounded max/min temperatures, pop is the worst case of the
// day, and description/icon come from the sample at index len/2 of the group.
// Groups keep the order in which their dates first appear in samples; only the
// first MaxForecastDays groups are returned.
func AggregateDays(samples []ForecastSample, zone *time.Location) []DailyForecast {
	if zone == nil {
		zone = time.UTC
	}

	var order []string
	groups := make(map[string][]ForecastSample)

	for _, s := range samples {
		date := time.Unix(s.Dt, 0).In(zone).Format(time.DateOnly)
		if _, ok := groups[date]; !ok {
			if len(order) == MaxForecastDays {
				// dates beyond the cap are never emitted
				continue
			}
			order = append(order, date)
		}
		groups[date] = append(groups[date], s)
	}

	days := make([]DailyForecast, 0, len(order))
	for _, date := range order {
		days = append(days, aggregateDay(groups[date], zone))
	}
	return days
}

func aggregateDay(samples []ForecastSample, zone *time.Location) DailyForecast {
	high := math.Inf(-1)
	low := math.Inf(1)
	maxPop := 0.0

	for _, s := range samples {
		high = math.Max(high, s.Main.Temp)
		low = math.Min(low, s.Main.Temp)
		maxPop = math.Max(maxPop, s.Pop)
	}

	mid := samples[len(samples)/2]
	var desc, icon string
	if len(mid.Weather) > 0 {
		desc = mid.Weather[0].Description
		icon = mid.Weather[0].Icon
	}

	t := time.Unix(samples[0].Dt, 0).In(zone)

	return DailyForecast{
		Date:        t.Format(time.DateOnly),
		Year:        t.Year(),
		Month:       int(t.Month()),
		Day:         t.Day(),
		DayOfWeek:   t.Weekday().String()[:3],
		TempHigh:    round(high),
		TempLow:     round(low),
		Description: desc,
		Icon:        icon,
		Pop:         round(maxPop * 100),
	}
}
