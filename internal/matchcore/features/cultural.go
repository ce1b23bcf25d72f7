package features

import (
	"context"
	"sort"
	"strings"

	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// valueSynonyms expands a stated value to its equivalence class before
// set comparison. Hand-maintained; free-text inference is only a fallback.
var valueSynonyms = map[string]string{
	"integrity": "ethics", "honesty": "ethics", "transparency": "ethics",
	"ethics": "ethics", "fairness": "ethics",
	"excellence": "performance", "ambition": "performance", "results": "performance",
	"performance": "performance", "quality": "performance", "ownership": "performance",
	"teamwork": "relationships", "collaboration": "relationships", "respect": "relationships",
	"community": "relationships", "relationships": "relationships", "empathy": "relationships",
	"learning": "growth", "growth": "growth", "innovation": "growth",
	"curiosity": "growth", "creativity": "growth", "development": "growth",
	"sustainability": "social", "diversity": "social", "inclusion": "social",
	"social": "social", "impact": "social", "responsibility": "social",
	"stability": "stability", "security": "stability", "balance": "stability",
	"wellbeing": "stability", "loyalty": "stability",
}

// culturalCategories is the fixed set of per-category alignment features.
var culturalCategories = []string{"ethics", "performance", "relationships", "growth", "social", "stability"}

// managementStyleCompat is the 5×5 management-style compatibility matrix. Situational pairs well
// with everything; directive and delegative sit at opposite ends.
var managementStyleCompat = map[string]map[string]float64{
	"directive":   {"directive": 1.0, "democratic": 0.5, "delegative": 0.2, "coaching": 0.4, "situational": 0.7},
	"democratic":  {"directive": 0.5, "democratic": 1.0, "delegative": 0.6, "coaching": 0.8, "situational": 0.8},
	"delegative":  {"directive": 0.2, "democratic": 0.6, "delegative": 1.0, "coaching": 0.6, "situational": 0.7},
	"coaching":    {"directive": 0.4, "democratic": 0.8, "coaching": 1.0, "delegative": 0.6, "situational": 0.8},
	"situational": {"directive": 0.7, "democratic": 0.8, "delegative": 0.7, "coaching": 0.8, "situational": 1.0},
}

// Three environment dimensions, each a 3×3 matrix.
var environmentCompat = map[string]map[string]map[string]float64{
	"pace": {
		"fast":     {"fast": 1.0, "moderate": 0.6, "calm": 0.2},
		"moderate": {"fast": 0.6, "moderate": 1.0, "calm": 0.6},
		"calm":     {"fast": 0.2, "moderate": 0.6, "calm": 1.0},
	},
	"formality": {
		"formal":   {"formal": 1.0, "business": 0.6, "casual": 0.3},
		"business": {"formal": 0.6, "business": 1.0, "casual": 0.6},
		"casual":   {"formal": 0.3, "business": 0.6, "casual": 1.0},
	},
	"hierarchy": {
		"flat":       {"flat": 1.0, "moderate": 0.6, "layered": 0.3},
		"moderate":   {"flat": 0.6, "moderate": 1.0, "layered": 0.6},
		"layered":    {"flat": 0.3, "moderate": 0.6, "layered": 1.0},
	},
}

// environmentKeywords detect a dimension's level in free text.
var environmentKeywords = map[string]map[string][]string{
	"pace": {
		"fast":     {"fast-paced", "fast paced", "high velocity", "rapid", "dynamic"},
		"moderate": {"steady pace", "balanced pace", "sustainable pace"},
		"calm":     {"calm", "relaxed", "quiet", "measured pace"},
	},
	"formality": {
		"formal":   {"formal", "corporate", "professional dress", "suit"},
		"business": {"business casual", "professional environment"},
		"casual":   {"casual", "informal", "laid-back", "relaxed dress"},
	},
	"hierarchy": {
		"flat":     {"flat hierarchy", "flat structure", "no hierarchy", "self-organizing"},
		"moderate": {"lean structure", "small teams"},
		"layered":  {"hierarchical", "structured organization", "chain of command"},
	},
}

var managementKeywords = map[string][]string{
	"directive":   {"directive", "top-down", "clear direction", "strong leadership"},
	"democratic":  {"democratic", "consensus", "participative", "collective decision"},
	"delegative":  {"delegative", "autonomy", "autonomous", "hands-off", "self-directed"},
	"coaching":    {"coaching", "mentoring", "mentorship", "personal development"},
	"situational": {"situational", "adaptive leadership", "flexible management"},
}

// CulturalGenerator compares values and working-culture signals between
// candidate and job.
type CulturalGenerator struct {
	embedder Embedder
}

// NewCulturalGenerator builds the generator. embedder may be nil;
// cultural_implicit then degrades to TF-IDF cosine.
func NewCulturalGenerator(embedder Embedder) *CulturalGenerator {
	return &CulturalGenerator{embedder: embedder}
}

func (g *CulturalGenerator) Name() string { return "cultural" }

// Generate emits the cultural_ feature family.
func (g *CulturalGenerator) Generate(ctx context.Context, req model.MatchRequest) (map[string]float64, error) {
	candValues := expandValues(req.Candidate.Values)
	jobValues := valuesFromText(req.Job.FreeText)

	out := make(map[string]float64)

	// Dimensions with no evidence on one side are omitted, not scored
	// neutrally; see the preference generator for the same rule.
	if len(candValues) > 0 && len(jobValues) > 0 {
		out["cultural_values_explicit"] = valuesF1(candValues, jobValues)
	}
	if strings.TrimSpace(req.Candidate.FreeText) != "" && strings.TrimSpace(req.Job.FreeText) != "" {
		out["cultural_implicit"] = g.implicit(ctx, req.Candidate.FreeText, req.Job.FreeText)
	}
	if score, ok := g.managementStyle(req.Candidate.FreeText, req.Job.FreeText); ok {
		out["cultural_management_style"] = score
	}
	for _, dimension := range []string{"pace", "formality", "hierarchy"} {
		if score, ok := g.environment(dimension, req.Candidate.FreeText, req.Job.FreeText); ok {
			out["cultural_environment_"+dimension] = score
		}
	}

	candCategories := categorySignals(candValues, req.Candidate.FreeText)
	jobCategories := categorySignals(jobValues, req.Job.FreeText)
	for _, cat := range culturalCategories {
		if candCategories[cat] == 0 && jobCategories[cat] == 0 {
			continue
		}
		out["cultural_"+cat] = clip(1 - abs(candCategories[cat]-jobCategories[cat]))
	}

	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// expandValues canonicalizes stated values through the synonym table.
func expandValues(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if canon, ok := valueSynonyms[key]; ok {
			out[canon] = true
			continue
		}
		if key != "" {
			out[key] = true
		}
	}
	return out
}

// valuesFromText scans free text for known value words and returns their
// canonical classes.
func valuesFromText(text string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range tokenize(text) {
		if canon, ok := valueSynonyms[tok]; ok {
			out[canon] = true
		}
	}
	return out
}

// valuesF1 is the F1 over the two expanded value sets. No stated values on
// either side is a neutral 0.5 rather than a zero.
func valuesF1(candidate, job map[string]bool) float64 {
	if len(candidate) == 0 || len(job) == 0 {
		return 0.5
	}

	inter := 0
	for v := range candidate {
		if job[v] {
			inter++
		}
	}
	precision := float64(inter) / float64(len(candidate))
	recall := float64(inter) / float64(len(job))
	return clip(f1(precision, recall))
}

// categorySignals scores each cultural category in [0,1] from explicit
// values plus free-text keyword hits.
func categorySignals(values map[string]bool, text string) map[string]float64 {
	signals := make(map[string]float64, len(culturalCategories))
	textValues := valuesFromText(text)
	for _, cat := range culturalCategories {
		s := 0.0
		if values[cat] {
			s += 0.7
		}
		if textValues[cat] {
			s += 0.3
		}
		signals[cat] = clip(s)
	}
	return signals
}

// implicit compares the two free texts by embedding cosine when available,
// TF-IDF cosine otherwise.
func (g *CulturalGenerator) implicit(ctx context.Context, candText, jobText string) float64 {
	if strings.TrimSpace(candText) == "" || strings.TrimSpace(jobText) == "" {
		return 0
	}

	if g.embedder != nil {
		vectors, err := g.embedder.Embed(ctx, []string{candText, jobText})
		if err == nil && len(vectors) == 2 {
			return cosine32(vectors[0], vectors[1])
		}
	}

	return tfidfCosine(contentTokens(candText), contentTokens(jobText))
}

// managementStyle detects each side's style and scores the pair; an
// undetected side reports no feature.
func (g *CulturalGenerator) managementStyle(candText, jobText string) (float64, bool) {
	cand := detectKeyword(candText, managementKeywords)
	job := detectKeyword(jobText, managementKeywords)
	if cand == "" || job == "" {
		return 0, false
	}
	if row, ok := managementStyleCompat[cand]; ok {
		if score, ok := row[job]; ok {
			return score, true
		}
	}
	return 0.5, true
}

func (g *CulturalGenerator) environment(dimension, candText, jobText string) (float64, bool) {
	keywords := environmentKeywords[dimension]
	cand := detectKeyword(candText, keywords)
	job := detectKeyword(jobText, keywords)
	if cand == "" || job == "" {
		return 0, false
	}
	if row, ok := environmentCompat[dimension][cand]; ok {
		if score, ok := row[job]; ok {
			return score, true
		}
	}
	return 0.5, true
}

// detectKeyword returns the first level whose keyword list matches text,
// checking levels in a fixed order for determinism.
func detectKeyword(text string, keywords map[string][]string) string {
	lower := strings.ToLower(text)

	levels := make([]string, 0, len(keywords))
	for level := range keywords {
		levels = append(levels, level)
	}
	// map iteration order is random; sort for a stable scan.
	sort.Strings(levels)

	for _, level := range levels {
		for _, kw := range keywords[level] {
			if strings.Contains(lower, kw) {
				return level
			}
		}
	}
	return ""
}
