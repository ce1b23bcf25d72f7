package matchers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// textHeavyThreshold is the free-text length above which both profiles are
// considered text-heavy for the semantic-selection rule.
const textHeavyThreshold = 500

// fallbackOrder is the deterministic failover chain; RuleMatcher is never
// skipped.
var fallbackOrder = []string{"ml", "semantic", "rule"}

// Selector picks a matcher per request from its shape and runtime health,
// and runs the deterministic fallback chain when the pick fails.
type Selector struct {
	matchers map[string]Matcher
	health   *HealthTracker
	log      zerolog.Logger
}

// NewSelector builds a Selector over the registered matchers. The rule
// matcher must always be present.
func NewSelector(registered []Matcher, health *HealthTracker) (*Selector, error) {
	byName := make(map[string]Matcher, len(registered))
	for _, m := range registered {
		byName[m.Name()] = m
	}
	if _, ok := byName["rule"]; !ok {
		return nil, fmt.Errorf("selector: rule matcher must be registered")
	}
	if health == nil {
		health = NewHealthTracker()
	}
	return &Selector{
		matchers: byName,
		health:   health,
		log:      logger.GetLogger("matchcore.matchers.selector"),
	}, nil
}

// Health exposes the tracker so callers can record external outcomes.
func (s *Selector) Health() *HealthTracker { return s.health }

// Select evaluates the selection rules in order, first match wins. An unknown
// algorithm hint is ignored, not an error.
func (s *Selector) Select(req model.MatchRequest) string {
	if hint := req.Options.AlgorithmHint; hint != "" {
		if _, ok := s.matchers[hint]; ok && s.health.Healthy(hint) {
			return hint
		}
	}

	if len(req.Candidate.Values) > 0 {
		if _, ok := s.matchers["ml"]; ok && s.health.Healthy("ml") {
			return "ml"
		}
	}

	if len(req.Candidate.FreeText) > textHeavyThreshold && len(req.Job.FreeText) > textHeavyThreshold {
		if _, ok := s.matchers["semantic"]; ok && s.health.Healthy("semantic") {
			return "semantic"
		}
	}

	return "rule"
}

// Execute runs the selected matcher, falling back along the deterministic
// chain on failure. The final result's AlgorithmUsed records the decision as
// "primary" or "primary/fallback".
func (s *Selector) Execute(ctx context.Context, req model.MatchRequest) (model.MatchResult, error) {
	primary := s.Select(req)

	result, err := s.matchers[primary].Score(ctx, req)
	if err == nil {
		s.health.Record(primary, true)
		result.AlgorithmUsed = primary
		return result, nil
	}
	s.health.Record(primary, false)

	// Validation-class failures will fail identically on every matcher.
	if matcherr.ClassOf(err) == matcherr.ClassValidation || matcherr.ClassOf(err) == matcherr.ClassNotFound {
		return model.MatchResult{}, err
	}
	if !req.Options.EnableFallback && primary == "rule" {
		return model.MatchResult{}, err
	}

	lastErr := err
	for _, name := range fallbackOrder {
		if name == primary {
			continue
		}
		m, ok := s.matchers[name]
		if !ok {
			continue
		}
		if !req.Options.EnableFallback && name != "rule" {
			// Fallback disabled: the chain still ends at the rule matcher,
			// which is never skipped.
			continue
		}

		result, err := m.Score(ctx, req)
		if err != nil {
			s.health.Record(name, false)
			s.log.Warn().Err(err).Str("matcher", name).Msg("fallback matcher failed")
			lastErr = err
			continue
		}
		s.health.Record(name, true)
		result.AlgorithmUsed = primary + "/" + name
		return result, nil
	}

	return model.MatchResult{}, lastErr
}
