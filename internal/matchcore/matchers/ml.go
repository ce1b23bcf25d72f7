package matchers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/features"
	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/scoring"
	"github.com/benidevo/matchcore/internal/matchcore/taxonomy"
)

// MLRanker scores with the same feature pipeline as RuleMatcher but replaces
// the weighted aggregation with a pre-trained gradient-boosted tree model.
type MLRanker struct {
	name  string
	gens  []features.Generator
	model *GBDTModel
	agg   *scoring.Aggregator
	expl  *scoring.Explainer
	tax   *taxonomy.Taxonomy
	sem   chan struct{}
	log   zerolog.Logger
}

// NewMLRanker builds the ranker from a serialized model file. A missing or
// incompatible model refuses construction rather than silently degrading.
func NewMLRanker(modelPath string, gens []features.Generator, agg *scoring.Aggregator, tax *taxonomy.Taxonomy, sem chan struct{}) (*MLRanker, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("ml ranker: model path is required")
	}
	gbdt, err := LoadGBDTModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("ml ranker: %w", err)
	}
	return newMLRankerWithModel(gbdt, gens, agg, tax, sem), nil
}

func newMLRankerWithModel(gbdt *GBDTModel, gens []features.Generator, agg *scoring.Aggregator, tax *taxonomy.Taxonomy, sem chan struct{}) *MLRanker {
	return &MLRanker{
		name:  "ml",
		gens:  gens,
		model: gbdt,
		agg:   agg,
		expl:  scoring.NewExplainer(gbdt),
		tax:   tax,
		sem:   sem,
		log:   logger.GetLogger("matchcore.matchers.ml"),
	}
}

func (m *MLRanker) Name() string { return m.name }

// Score implements Matcher: features feed the tree ensemble for the overall
// score, while category sub-scores still come from the weighted aggregation
// so the result shape stays uniform across algorithms.
func (m *MLRanker) Score(ctx context.Context, req model.MatchRequest) (model.MatchResult, error) {
	if err := validateRequest(req); err != nil {
		return model.MatchResult{}, err
	}

	start := time.Now()

	featureMap := runGenerators(ctx, m.gens, req, m.sem, m.log)
	overall := m.model.Predict(featureMap)
	agg := m.agg.Aggregate(featureMap)
	explanation := m.expl.Explain(featureMap)
	matches, missing := collectSkillDetail(m.tax, req)

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
