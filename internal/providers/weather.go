// Package providers contains the travel data providers behind the tool
// layer: weather forecasts, destination images and web search. Data is
// served from deterministic in-memory tables with simulated network
// latency, so the orchestration around them can be exercised without any
// external service.
package providers

import (
	"context"
	"strings"
	"time"

	"github.com/voyago-ai/voyago"
)

// weatherDay is a forecast day before dates are attached.
type weatherDay struct {
	temperature float64
	condition   string
	humidity    int
}

var weatherTable = map[string][]weatherDay{
	"Paris": {
		{8.5, "Cloudy", 72},
		{7.2, "Rainy", 85},
		{9.1, "Partly Cloudy", 68},
		{6.8, "Clear", 55},
		{5.5, "Cold", 48},
		{6.3, "Overcast", 62},
		{7.8, "Cloudy", 70},
	},
	"Tokyo": {
		{15.3, "Clear", 45},
		{14.8, "Sunny", 42},
		{16.2, "Clear", 48},
		{17.1, "Sunny", 50},
		{15.9, "Partly Cloudy", 55},
		{14.5, "Rainy", 68},
		{13.2, "Windy", 60},
	},
	"New York": {
		{2.1, "Snowy", 80},
		{0.5, "Freezing", 75},
		{1.3, "Snow", 82},
		{3.2, "Clear", 60},
		{4.5, "Partly Cloudy", 65},
		{2.8, "Cloudy", 70},
		{1.9, "Cold", 75},
	},
	"London": {
		{9.2, "Rainy", 78},
		{8.5, "Cloudy", 75},
		{10.1, "Partly Cloudy", 70},
		{9.8, "Overcast", 72},
		{8.3, "Rainy", 80},
		{7.9, "Drizzle", 76},
		{9.5, "Cloudy", 74},
	},
	"Sydney": {
		{26.5, "Sunny", 45},
		{27.2, "Clear", 42},
		{25.8, "Partly Cloudy", 48},
		{24.3, "Cloudy", 55},
		{22.9, "Rainy", 68},
		{23.5, "Showers", 72},
		{25.1, "Clear", 50},
	},
}

// WeatherProvider serves 7-day forecasts for a fixed set of cities, with
// generated data for everything else.
type WeatherProvider struct {
	latency time.Duration
	now     func() time.Time
}

// NewWeatherProvider creates a weather provider that sleeps for the given
// latency on every call to mimic a remote API.
func NewWeatherProvider(latency time.Duration) *WeatherProvider {
	return &WeatherProvider{
		latency: latency,
		now:     time.Now,
	}
}

// Forecast returns a 7-day forecast starting from tomorrow.
func (p *WeatherProvider) Forecast(ctx context.Context, city string) ([]voyago.WeatherPoint, error) {
	if err := simulateLatency(ctx, p.latency); err != nil {
		return nil, err
	}

	base := p.now()
	days, known := weatherTable[canonicalCity(city)]

	forecast := make([]voyago.WeatherPoint, 7)
	for i := 0; i < 7; i++ {
		date := base.AddDate(0, 0, i+1).Format("2006-01-02")
		if known {
			forecast[i] = voyago.WeatherPoint{
				Date:         date,
				TemperatureC: days[i].temperature,
				Condition:    days[i].condition,
				Humidity:     days[i].humidity,
			}
		} else {
			// Reasonable generated fallback for unknown cities.
			forecast[i] = voyago.WeatherPoint{
				Date:         date,
				TemperatureC: float64(15 + i%3),
				Condition:    []string{"Sunny", "Cloudy", "Rainy"}[i%3],
				Humidity:     60 + (i%2)*10,
			}
		}
	}

	return forecast, nil
}

// canonicalCity matches a city name against the data tables ignoring case.
func canonicalCity(city string) string {
	for known := range weatherTable {
		if strings.EqualFold(known, city) {
			return known
		}
	}
	return city
}

// simulateLatency waits for the configured provider latency, honoring
// cancellation.
func simulateLatency(ctx context.Context, latency time.Duration) error {
	if latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(latency):
		return nil
	}
}
