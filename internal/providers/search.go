package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

var searchTable = map[string]string{
	"paris": "Paris, the capital of France, is one of the most iconic cities in the world. " +
		"Known for the Eiffel Tower, world-class museums like the Louvre, charming cafés, " +
		"and romantic Seine River cruises. Paris is the 4th most visited city globally " +
		"with around 30 million visitors annually. The city is renowned for its architecture, " +
		"art, fashion, and gastronomy. Key attractions include Notre-Dame Cathedral, " +
		"Arc de Triomphe, and Sacré-Cœur.",
	"tokyo": "Tokyo, Japan's capital, is a vibrant metropolis seamlessly blending ancient temples " +
		"with cutting-edge technology. Famous for sushi, anime culture, efficient transportation, " +
		"and the iconic Shibuya Crossing. With over 37 million residents, Tokyo is the world's " +
		"most populous metropolitan area. Key areas include Shibuya, Shinjuku, Asakusa, and Akihabara.",
	"new york": "New York City, the city that never sleeps, is a global center of finance, art, " +
		"and entertainment. Home to Broadway, Central Park, the Statue of Liberty, and " +
		"iconic skyscrapers like the Empire State Building. NYC attracts over 60 million " +
		"visitors annually and is known for its diversity, world-renowned museums, fine dining, " +
		"and vibrant neighborhoods across its five boroughs.",
	"london": "London, the capital of the United Kingdom, is a historic city blending medieval " +
		"architecture with modern innovation. Home to Big Ben, Tower of London, Buckingham Palace, " +
		"and the British Museum. London attracts over 18 million international visitors annually " +
		"and is a major global financial and cultural hub.",
	"sydney": "Sydney, Australia's largest city, is famous for the Sydney Opera House and Harbour Bridge. " +
		"Known for stunning beaches like Bondi and Coogee, laid-back beach culture, and outdoor " +
		"activities. Sydney is a major hub for technology and creative industries with a " +
		"population of over 5 million.",
	"barcelona": "Barcelona, Catalonia's capital, is renowned for its unique architecture, especially " +
		"the works of Antoni Gaudí like the Sagrada Familia. The city blends Gothic quarters, " +
		"beaches, and vibrant neighborhoods like La Rambla. Over 30 million visitors explore " +
		"the city's art, food, and architecture annually.",
}

// SearchProvider answers free-text travel queries from a canned corpus,
// with a generic response for unknown destinations.
type SearchProvider struct {
	latency time.Duration
}

// NewSearchProvider creates a search provider with the given simulated
// latency.
func NewSearchProvider(latency time.Duration) *SearchProvider {
	return &SearchProvider{latency: latency}
}

// Search returns a prose result for the query.
func (p *SearchProvider) Search(ctx context.Context, query string) (string, error) {
	if err := simulateLatency(ctx, p.latency); err != nil {
		return "", err
	}

	queryLower := strings.ToLower(query)
	for city, result := range searchTable {
		if strings.Contains(queryLower, city) {
			return result, nil
		}
	}

	return fmt.Sprintf("Search results for: %s\n\n"+
		"This is a beautiful and interesting destination with rich history, culture, and attractions. "+
		"The city offers diverse dining, accommodations, and entertainment options for visitors. "+
		"Consider visiting popular landmarks, museums, parks, and local neighborhoods to experience "+
		"the authentic charm of this location.", query), nil
}
