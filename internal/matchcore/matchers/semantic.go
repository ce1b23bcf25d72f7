package matchers

import (
	"fmt"

	"github.com/benidevo/matchcore/internal/matchcore/config"
	"github.com/benidevo/matchcore/internal/matchcore/features"
	"github.com/benidevo/matchcore/internal/matchcore/scoring"
	"github.com/benidevo/matchcore/internal/matchcore/taxonomy"
)

// Semantic feature boost factors applied on top of the configured weights.
const (
	semanticSkillsBoost   = 3.0
	semanticImplicitBoost = 2.0
)

// NewSemanticMatcher builds the semantic matcher: RuleMatcher with the
// embedding-driven features weighted up. It requires an embeddings
// capability; callers must not register it otherwise.
func NewSemanticMatcher(embedder features.Embedder, gens []features.Generator, weights config.Weights, expl *scoring.Explainer, tax *taxonomy.Taxonomy, sem chan struct{}) (*RuleMatcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("semantic matcher: embeddings provider is required")
	}

	boosted := config.Weights{
		Categories: make(map[string]float64, len(weights.Categories)),
		Features:   make(map[string]float64, len(weights.Features)+2),
	}
	for k, v := range weights.Categories {
		boosted.Categories[k] = v
	}
	for k, v := range weights.Features {
		boosted.Features[k] = v
	}
	boosted.Features["skills_semantic"] = boosted.Features["skills_"] * semanticSkillsBoost
	boosted.Features["cultural_implicit"] = boosted.Features["cultural_"] * semanticImplicitBoost
	if boosted.Features["skills_semantic"] == 0 {
		boosted.Features["skills_semantic"] = semanticSkillsBoost
	}
	if boosted.Features["cultural_implicit"] == 0 {
		boosted.Features["cultural_implicit"] = semanticImplicitBoost
	}

	m := NewRuleMatcher(gens, scoring.NewAggregator(boosted), expl, tax, sem)
	m.name = "semantic"
	return m, nil
}
