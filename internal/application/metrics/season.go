package metrics

import (
	"context"
	"time"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

// DayForecast is one day of weather outlook.
type DayForecast struct {
	Date      time.Time `json:"date"`
	TempMinC  float64   `json:"temp_min_c"`
	TempMaxC  float64   `json:"temp_max_c"`
	RainHours int       `json:"rain_hours"`
	Summary   string    `json:"summary"`
}

// WeatherProvider supplies a short-range forecast for a coordinate.
type WeatherProvider interface {
	Forecast(ctx context.Context, lat, lon float64, days int) ([]DayForecast, error)
}

const seasonForecastDays = 3

// seasonBuilder derives calendar and weather metrics for season-linked
// marketing.
type seasonBuilder struct {
	weather WeatherProvider
}

func (seasonBuilder) Name() string { return "season" }

func (b seasonBuilder) Build(ctx context.Context, in Input) (Result, error) {
	rec, err := requireMerchant(in)
	if err != nil {
		return Result{}, err
	}
	out := newResult()

	now := time.Now()
	out.Metrics["현재_계절"] = seasonOf(now.Month())
	out.Metrics["현재_월"] = int(now.Month())

	if bucket, share, ok := busiestBucket(rec); ok {
		out.Metrics["피크_시간대"] = bucket
		out.Metrics["피크_시간대_매출_비중"] = share
	}

	// Weather is best-effort: provider absence or failure costs the
	// forecast, not the turn.
	lat, ok1 := rec.Get(merchant.FieldLatitude)
	lon, ok2 := rec.Get(merchant.FieldLongitude)
	if b.weather != nil && ok1 && ok2 {
		days, err := b.weather.Forecast(ctx, lat, lon, seasonForecastDays)
		if err == nil && len(days) > 0 {
			out.Metrics["날씨_전망"] = days
			out.Metrics["강수_시간_합계"] = totalRainHours(days)
		}
	}
	return out, nil
}

func seasonOf(m time.Month) string {
	switch m {
	case time.March, time.April, time.May:
		return "봄"
	case time.June, time.July, time.August:
		return "여름"
	case time.September, time.October, time.November:
		return "가을"
	default:
		return "겨울"
	}
}

func totalRainHours(days []DayForecast) int {
	var sum int
	for _, d := range days {
		sum += d.RainHours
	}
	return sum
}
