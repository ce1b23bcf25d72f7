package matchers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/features"
	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/scoring"
	"github.com/benidevo/matchcore/internal/matchcore/taxonomy"
)

// RuleMatcher runs every feature generator and combines the results with
// the configured weight tables. Deterministic and dependency-light.
type RuleMatcher struct {
	name string
	gens []features.Generator
	agg  *scoring.Aggregator
	expl *scoring.Explainer
	tax  *taxonomy.Taxonomy
	sem  chan struct{}
	log  zerolog.Logger
}

// NewRuleMatcher builds the rule-based matcher. sem may be nil (unbounded
// fan-out); the orchestrator passes the shared pool semaphore.
func NewRuleMatcher(gens []features.Generator, agg *scoring.Aggregator, expl *scoring.Explainer, tax *taxonomy.Taxonomy, sem chan struct{}) *RuleMatcher {
	return &RuleMatcher{
		name: "rule",
		gens: gens,
		agg:  agg,
		expl: expl,
		tax:  tax,
		sem:  sem,
		log:  logger.GetLogger("matchcore.matchers.rule"),
	}
}

func (m *RuleMatcher) Name() string { return m.name }

// Score implements Matcher.
func (m *RuleMatcher) Score(ctx context.Context, req model.MatchRequest) (model.MatchResult, error) {
	if err := validateRequest(req); err != nil {
		return model.MatchResult{}, err
	}

	start := time.Now()

	featureMap := runGenerators(ctx, m.gens, req, m.sem, m.log)
	agg := m.agg.Aggregate(featureMap)
	explanation := m.expl.Explain(featureMap)
	matches, missing := collectSkillDetail(m.tax, req)

	// A hole in the hard requirements halves the score per missing skill:
	// category means alone cannot express a disqualifier.
	overall := agg.Overall * missingRequiredPenalty(missing)

	return model.MatchResult{
		OverallScore:   overall,
		Category:       model.CategoryFromScore(overall),
		CategoryScores: agg.CategoryScores,
		Matches:        matches,
		Missing:        missing,
		Strengths:      explanation.Strengths,
		Gaps:           explanation.Gaps,
		Suggestions:    explanation.Suggestions,
		AlgorithmUsed:  m.name,
		Latency:        time.Since(start),
		Features:       featureMap,
	}, nil
}
