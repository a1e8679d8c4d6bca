package catalog

import (
	"context"
	"fmt"
	"math"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/voyago-ai/voyago"
)

// DefaultThreshold is the cosine distance at or below which a query is
// considered covered by the catalog. 0.55 accepts a destination name
// matched against its own summary while rejecting unrelated cities.
const DefaultThreshold = 0.55

const collectionName = "destinations"

// SimilarityGate answers whether a query is close enough to a curated
// destination to skip the planner entirely.
type SimilarityGate struct {
	entries    []voyago.CatalogEntry
	collection *chromem.Collection
	embedder   Embedder
	threshold  float64
	logger     *zap.Logger
}

// GateOption configures a SimilarityGate.
type GateOption func(*SimilarityGate)

// WithThreshold overrides the hit threshold.
func WithThreshold(threshold float64) GateOption {
	return func(g *SimilarityGate) {
		g.threshold = threshold
	}
}

// WithGateLogger sets the logger.
func WithGateLogger(logger *zap.Logger) GateOption {
	return func(g *SimilarityGate) {
		g.logger = logger
	}
}

// NewSimilarityGate embeds every catalog entry into an in-memory vector
// store. Construction fails if any entry cannot be embedded; a gate with
// a partial catalog would silently misroute queries.
func NewSimilarityGate(ctx context.Context, entries []voyago.CatalogEntry, embedder Embedder, options ...GateOption) (*SimilarityGate, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("similarity gate requires a non-empty catalog")
	}
	if embedder == nil {
		return nil, fmt.Errorf("similarity gate requires an embedder")
	}

	g := &SimilarityGate{
		entries:   entries,
		embedder:  embedder,
		threshold: DefaultThreshold,
		logger:    zap.NewNop(),
	}

	for _, option := range options {
		option(g)
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog collection: %w", err)
	}

	for i := range entries {
		entry := &entries[i]
		// Slice order is the catalog order; it also drives the tie-break.
		entry.Index = i
		vec, err := embedder.Embed(ctx, entry.Summary)
		if err != nil {
			return nil, fmt.Errorf("embed catalog entry '%s': %w", entry.Name, err)
		}
		doc := chromem.Document{
			ID:      strconv.Itoa(entry.Index),
			Content: entry.Summary,
			Metadata: map[string]string{
				"name":  entry.Name,
				"index": strconv.Itoa(entry.Index),
			},
			Embedding: normalize(vec),
		}
		if err := collection.AddDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("add catalog entry '%s': %w", entry.Name, err)
		}
	}

	g.collection = collection
	return g, nil
}

// Threshold returns the active hit threshold.
func (g *SimilarityGate) Threshold() float64 {
	return g.threshold
}

// Classify compares the query against every catalog entry and reports the
// nearest one. The hit rule is inclusive: a distance exactly at the
// threshold counts as a hit. Ties on distance resolve to the entry with
// the lowest catalog index so repeated runs agree.
func (g *SimilarityGate) Classify(ctx context.Context, query voyago.Query) (*voyago.SimilarityResult, error) {
	text := query.Destination
	if text == "" {
		text = query.Raw
	}

	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, voyago.NewGateUnavailableError(err)
	}

	results, err := g.collection.QueryEmbedding(ctx, normalize(vec), g.collection.Count(), nil, nil)
	if err != nil {
		return nil, voyago.NewGateUnavailableError(err)
	}
	if len(results) == 0 {
		return nil, voyago.NewGateUnavailableError(fmt.Errorf("catalog query returned no results"))
	}

	bestIdx := -1
	bestDist := math.Inf(1)
	for _, res := range results {
		idx, err := strconv.Atoi(res.Metadata["index"])
		if err != nil {
			return nil, voyago.NewGateUnavailableError(fmt.Errorf("corrupt catalog metadata: %w", err))
		}
		dist := 1 - float64(res.Similarity)
		if dist < bestDist || (dist == bestDist && idx < bestIdx) {
			bestDist = dist
			bestIdx = idx
		}
	}

	entry := &g.entries[bestIdx]
	hit := bestDist <= g.threshold

	g.logger.Debug("gate check",
		zap.String("query", text),
		zap.String("nearest", entry.Name),
		zap.Float64("distance", bestDist),
		zap.Bool("hit", hit),
	)

	return &voyago.SimilarityResult{
		Entry:    entry,
		Distance: bestDist,
		Hit:      hit,
	}, nil
}

// normalize scales a vector to unit length. Cosine similarity over the
// stored vectors assumes both sides are normalized.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
