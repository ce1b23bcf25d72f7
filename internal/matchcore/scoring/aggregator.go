// Package scoring combines the feature families into a calibrated overall
// score with per-category sub-scores, and explains the result.
package scoring

import (
	"sort"
	"strings"

	"github.com/benidevo/matchcore/internal/matchcore/config"
	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// prefixCategory routes a feature prefix to its internal category name.
var prefixCategory = map[string]string{
	"skills_":     "skills",
	"text_":       "text",
	"pref_":       "pref",
	"cultural_":   "cultural",
	"experience_": "experience",
}

// categoryOutputKey maps internal category names to the fixed
// MatchResult.CategoryScores key set.
var categoryOutputKey = map[string]string{
	"skills":     "skills",
	"text":       "textual",
	"pref":       "preferences",
	"cultural":   "cultural",
	"experience": "experience",
}

// Aggregate is the outcome of combining one feature map.
type Aggregate struct {
	Overall        float64
	CategoryScores map[string]float64
	Features       map[string]float64
}

// Aggregator computes weighted category means and the overall score.
type Aggregator struct {
	weights config.Weights
}

// NewAggregator builds an Aggregator from the configured weight tables.
func NewAggregator(weights config.Weights) *Aggregator {
	return &Aggregator{weights: weights}
}

// featureWeight resolves a single feature's weight: exact name first, then
// its family prefix, then 1.0.
func (a *Aggregator) featureWeight(name string) float64 {
	if w, ok := a.weights.Features[name]; ok && w > 0 {
		return w
	}
	for prefix := range prefixCategory {
		if strings.HasPrefix(name, prefix) {
			if w, ok := a.weights.Features[prefix]; ok && w > 0 {
				return w
			}
			break
		}
	}
	return 1.0
}

func (a *Aggregator) categoryWeight(category string) float64 {
	if w, ok := a.weights.Categories[category]; ok && w > 0 {
		return w
	}
	return 0
}

func categoryOf(feature string) string {
	for prefix, category := range prefixCategory {
		if strings.HasPrefix(feature, prefix) {
			return category
		}
	}
	return ""
}

// Aggregate groups features by prefix, computes each category's weighted
// mean clipped to [0,1], then the weighted sum of category sub-scores
// renormalized over the categories actually present. Keys are iterated in
// sorted order so the result is independent of feature-task completion
// order.
func (a *Aggregator) Aggregate(features map[string]float64) Aggregate {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	sums := make(map[string]float64)
	weights := make(map[string]float64)
	for _, name := range names {
		category := categoryOf(name)
		if category == "" {
			continue
		}
		w := a.featureWeight(name)
		sums[category] += clip(features[name]) * w
		weights[category] += w
	}

	categoryScores := make(map[string]float64, len(sums))
	var overall, totalWeight float64
	// Fixed category order keeps renormalization deterministic.
	for _, category := range []string{"skills", "cultural", "text", "pref", "experience"} {
		if weights[category] == 0 {
			continue
		}
		sub := clip(sums[category] / weights[category])
		categoryScores[categoryOutputKey[category]] = sub

		cw := a.categoryWeight(category)
		overall += sub * cw
		totalWeight += cw
	}

	if totalWeight > 0 {
		overall /= totalWeight
	}

	return Aggregate{
		Overall:        clip(overall),
		CategoryScores: categoryScores,
		Features:       features,
	}
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Ranked is one entry of a sorted result list.
type Ranked struct {
	JobID    string
	Result   model.MatchResult
	Features map[string]float64
}

// SortRanked orders results best-first: higher overall score, then higher
// skills_coverage, then higher cultural_values_explicit, then lower job ID
// lexicographically.
func SortRanked(results []Ranked) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Result.OverallScore != results[j].Result.OverallScore {
			return results[i].Result.OverallScore > results[j].Result.OverallScore
		}
		if ci, cj := results[i].Features["skills_coverage"], results[j].Features["skills_coverage"]; ci != cj {
			return ci > cj
		}
		if vi, vj := results[i].Features["cultural_values_explicit"], results[j].Features["cultural_values_explicit"]; vi != vj {
			return vi > vj
		}
		return results[i].JobID < results[j].JobID
	})
}
