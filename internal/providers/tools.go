package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/voyago-ai/voyago"
	"github.com/voyago-ai/voyago/internal/adapters"
)

const maxArgumentLength = 100

var cityPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z\s\-'.]*$`)

// SetupTools creates and returns the map of all available tools, wired to
// the given providers.
func SetupTools(weather *WeatherProvider, images *ImageProvider, search *SearchProvider) map[string]voyago.Tool {
	return map[string]voyago.Tool{
		voyago.ToolWeather: adapters.NewGoToolAdapter(
			voyago.ToolWeather,
			func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
				city := input["city"].(string)
				forecast, err := weather.Forecast(ctx, city)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"city":     city,
					"forecast": forecast,
				}, nil
			},
			adapters.WithDescription("Fetch a 7-day weather forecast for a city."),
			adapters.WithParameters(adapters.StringParameters(map[string]string{
				"city": "City name, e.g. 'Paris'.",
			})),
			adapters.WithValidator(validateCityInput),
		),
		voyago.ToolImages: adapters.NewGoToolAdapter(
			voyago.ToolImages,
			func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
				city := input["city"].(string)
				urls, err := images.CityImages(ctx, city)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"city":   city,
					"images": urls,
				}, nil
			},
			adapters.WithDescription("Fetch representative images of a city."),
			adapters.WithParameters(adapters.StringParameters(map[string]string{
				"city": "City name, e.g. 'Tokyo'.",
			})),
			adapters.WithValidator(validateCityInput),
		),
		voyago.ToolSearch: adapters.NewGoToolAdapter(
			voyago.ToolSearch,
			func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
				query := input["query"].(string)
				result, err := search.Search(ctx, query)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"query":  query,
					"result": result,
				}, nil
			},
			adapters.WithDescription("Search the web for travel information about a destination."),
			adapters.WithParameters(adapters.StringParameters(map[string]string{
				"query": "Free text search query.",
			})),
			adapters.WithValidator(validateQueryInput),
		),
	}
}

// validateCityInput checks the "city" argument of the weather and image
// tools.
func validateCityInput(input map[string]interface{}) error {
	city, ok := input["city"].(string)
	if !ok {
		return fmt.Errorf("invalid or missing city argument (expected string at key 'city')")
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return fmt.Errorf("city must not be empty")
	}
	if len(city) > maxArgumentLength {
		return fmt.Errorf("city exceeds %d characters", maxArgumentLength)
	}
	if !cityPattern.MatchString(city) {
		return fmt.Errorf("city contains unsupported characters: %q", city)
	}
	return nil
}

// validateQueryInput checks the "query" argument of the search tool.
func validateQueryInput(input map[string]interface{}) error {
	query, ok := input["query"].(string)
	if !ok {
		return fmt.Errorf("invalid or missing query argument (expected string at key 'query')")
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query must not be empty")
	}
	if len(query) > maxArgumentLength {
		return fmt.Errorf("query exceeds %d characters", maxArgumentLength)
	}
	return nil
}
