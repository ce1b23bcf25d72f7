// Package matchers holds the three interchangeable scoring algorithms and
// the selector that picks between them per request.
package matchers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/benidevo/matchcore/internal/common/logger"
	"github.com/benidevo/matchcore/internal/matchcore/features"
	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/taxonomy"
)

// Matcher is the single interface all three algorithms implement.
type Matcher interface {
	Name() string
	Score(ctx context.Context, req model.MatchRequest) (model.MatchResult, error)
}

// generatorTimeout bounds each feature generator's run; a generator that
// exceeds it is treated like any other failure.
const generatorTimeout = 10 * time.Second

// runGenerators fans the generators out concurrently, bounded by sem when
// non-nil, and merges their feature maps. A failing or cancelled generator
// is logged once and its features are left out of the merged map; no zero
// values are emitted for them.
func runGenerators(ctx context.Context, gens []features.Generator, req model.MatchRequest, sem chan struct{}, log zerolog.Logger) map[string]float64 {
	type output struct {
		features map[string]float64
		err      error
		name     string
	}

	results := make([]output, len(gens))
	var wg sync.WaitGroup
	for i, gen := range gens {
		wg.Add(1)
		go func(i int, gen features.Generator) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results[i] = output{name: gen.Name(), err: ctx.Err()}
					return
				}
			}

			genCtx, cancel := context.WithTimeout(ctx, generatorTimeout)
			defer cancel()

			defer func() {
				if r := recover(); r != nil {
					results[i] = output{name: gen.Name(), err: fmt.Errorf("panic: %v", r)}
				}
			}()

			fs, err := gen.Generate(genCtx, req)
			results[i] = output{features: fs, err: err, name: gen.Name()}
		}(i, gen)
	}
	wg.Wait()

	merged := make(map[string]float64)
	for _, out := range results {
		if out.err != nil {
			log.Warn().Err(out.err).Str("generator", out.name).
				Str("candidate", logger.HashIdentifier(req.Candidate.ID)).
				Str("job", logger.HashIdentifier(req.Job.ID)).
				Msg("feature generator failed, its features are omitted")
			continue
		}
		for name, value := range out.features {
			merged[name] = value
		}
	}
	return merged
}

// collectSkillDetail builds the matched/missing skill lists a MatchResult
// carries alongside its scores.
func collectSkillDetail(tax *taxonomy.Taxonomy, req model.MatchRequest) ([]model.SkillMatch, []model.MissingRequirement) {
	candByCanon := make(map[string]model.Skill, len(req.Candidate.Skills))
	for _, s := range req.Candidate.Skills {
		canon := tax.Canonical(s.Name)
		if existing, ok := candByCanon[canon]; !ok || s.Level.Weight() > existing.Level.Weight() {
			candByCanon[canon] = s
		}
	}

	var matches []model.SkillMatch
	var missing []model.MissingRequirement

	appendDetail := func(jobSkill model.Skill, required bool) {
		jobCanon := tax.Canonical(jobSkill.Name)
		if cand, ok := candByCanon[jobCanon]; ok {
			strength := 1.0
			if cand.Level.Weight() < jobSkill.Level.Weight() {
				strength = cand.Level.Weight() / jobSkill.Level.Weight()
			}
			matches = append(matches, model.SkillMatch{
				Skill:          jobSkill.Name,
				CandidateLevel: string(cand.Level),
				RequiredLevel:  string(jobSkill.Level),
				MatchStrength:  strength,
			})
			return
		}

		best := 0.0
		for candCanon := range candByCanon {
			if d := tax.TaxonomyDistance(candCanon, jobCanon); d > best {
				best = d
			}
		}
		if best >= 0.5 {
			matches = append(matches, model.SkillMatch{
				Skill:         jobSkill.Name,
				RequiredLevel: string(jobSkill.Level),
				MatchStrength: best,
			})
			return
		}
		missing = append(missing, model.MissingRequirement{Skill: jobSkill.Name, Required: required})
	}

	for _, s := range req.Job.RequiredSkills {
		appendDetail(s, true)
	}
	for _, s := range req.Job.PreferredSkills {
		appendDetail(s, false)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Skill < matches[j].Skill })
	sort.Slice(missing, func(i, j int) bool { return missing[i].Skill < missing[j].Skill })
	return matches, missing
}

// missingRequiredPenalty halves the overall score for every required skill
// the candidate lacks entirely.
func missingRequiredPenalty(missing []model.MissingRequirement) float64 {
	n := 0
	for _, m := range missing {
		if m.Required {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return math.Pow(0.5, float64(n))
}

// validateRequest rejects requests missing their identifying fields.
func validateRequest(req model.MatchRequest) error {
	if req.Candidate.ID == "" {
		return matcherr.Validation("candidate ID is required")
	}
	if req.Job.ID == "" {
		return matcherr.Validation("job ID is required")
	}
	return nil
}
