package providers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago-ai/voyago"
)

func TestWeatherForecast_KnownCity(t *testing.T) {
	p := NewWeatherProvider(0)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	forecast, err := p.Forecast(context.Background(), "Paris")
	require.NoError(t, err)
	require.Len(t, forecast, 7)

	assert.Equal(t, "2026-03-02", forecast[0].Date)
	assert.Equal(t, 8.5, forecast[0].TemperatureC)
	assert.Equal(t, "Cloudy", forecast[0].Condition)
	assert.Equal(t, 72, forecast[0].Humidity)
	assert.Equal(t, "2026-03-08", forecast[6].Date)
}

func TestWeatherForecast_CaseInsensitive(t *testing.T) {
	p := NewWeatherProvider(0)

	lower, err := p.Forecast(context.Background(), "tokyo")
	require.NoError(t, err)
	upper, err := p.Forecast(context.Background(), "Tokyo")
	require.NoError(t, err)

	assert.Equal(t, upper[0].TemperatureC, lower[0].TemperatureC)
	assert.Equal(t, 15.3, lower[0].TemperatureC)
}

func TestWeatherForecast_UnknownCityFallback(t *testing.T) {
	p := NewWeatherProvider(0)

	forecast, err := p.Forecast(context.Background(), "Reykjavik")
	require.NoError(t, err)
	require.Len(t, forecast, 7)
	assert.Equal(t, 15.0, forecast[0].TemperatureC)
	assert.Equal(t, "Sunny", forecast[0].Condition)
}

func TestWeatherForecast_CancelledDuringLatency(t *testing.T) {
	p := NewWeatherProvider(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Forecast(ctx, "Paris")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCityImages_KnownAndUnknown(t *testing.T) {
	p := NewImageProvider(0)

	urls, err := p.CityImages(context.Background(), "Sydney")
	require.NoError(t, err)
	require.Len(t, urls, 3)
	assert.Contains(t, urls[0], "wikimedia.org")

	placeholders, err := p.CityImages(context.Background(), "Vientiane")
	require.NoError(t, err)
	require.Len(t, placeholders, 3)
	assert.Contains(t, placeholders[0], "placehold.co")
	assert.Contains(t, placeholders[0], "Vientiane")
}

func TestSearch_KnownCityAndFallback(t *testing.T) {
	p := NewSearchProvider(0)

	result, err := p.Search(context.Background(), "Tell me about Paris")
	require.NoError(t, err)
	assert.Contains(t, result, "Eiffel Tower")

	fallback, err := p.Search(context.Background(), "Tell me about Ulaanbaatar")
	require.NoError(t, err)
	assert.Contains(t, fallback, "Ulaanbaatar")
	assert.Contains(t, fallback, "beautiful and interesting destination")
}

func TestSetupTools_RegistersAllTools(t *testing.T) {
	tools := SetupTools(NewWeatherProvider(0), NewImageProvider(0), NewSearchProvider(0))

	require.Len(t, tools, 3)
	for _, name := range []string{voyago.ToolWeather, voyago.ToolImages, voyago.ToolSearch} {
		tool, ok := tools[name]
		require.True(t, ok, "missing tool %s", name)
		assert.Equal(t, name, tool.Name())
		assert.NotEmpty(t, tool.Schema().Description)
	}
}

func TestWeatherTool_ExecuteAndPayloadShape(t *testing.T) {
	tools := SetupTools(NewWeatherProvider(0), NewImageProvider(0), NewSearchProvider(0))

	payload, err := tools[voyago.ToolWeather].Execute(context.Background(), map[string]interface{}{"city": "New York"})
	require.NoError(t, err)

	assert.Equal(t, "New York", payload["city"])
	forecast, ok := payload["forecast"].([]voyago.WeatherPoint)
	require.True(t, ok, "forecast should be []voyago.WeatherPoint")
	assert.Len(t, forecast, 7)
	assert.Equal(t, "Snowy", forecast[0].Condition)
}

func TestSearchTool_Execute(t *testing.T) {
	tools := SetupTools(NewWeatherProvider(0), NewImageProvider(0), NewSearchProvider(0))

	payload, err := tools[voyago.ToolSearch].Execute(context.Background(), map[string]interface{}{"query": "things to do in Sydney"})
	require.NoError(t, err)

	result, ok := payload["result"].(string)
	require.True(t, ok)
	assert.Contains(t, result, "Opera House")
}

func TestValidateCityInput(t *testing.T) {
	cases := []struct {
		name  string
		input map[string]interface{}
		valid bool
	}{
		{"valid", map[string]interface{}{"city": "Paris"}, true},
		{"valid with space", map[string]interface{}{"city": "New York"}, true},
		{"valid with apostrophe", map[string]interface{}{"city": "Martha's Vineyard"}, true},
		{"missing", map[string]interface{}{}, false},
		{"wrong type", map[string]interface{}{"city": 42}, false},
		{"empty", map[string]interface{}{"city": "  "}, false},
		{"injection", map[string]interface{}{"city": "Paris; DROP TABLE"}, false},
		{"too long", map[string]interface{}{"city": strings.Repeat("a", 101)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateCityInput(tc.input)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
