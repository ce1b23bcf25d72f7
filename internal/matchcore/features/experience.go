package features

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// educationRank orders education levels for requirement comparison.
var educationRank = map[string]int{
	"none": 0, "high school": 1, "vocational": 2, "bachelor": 3,
	"master": 4, "phd": 5, "doctorate": 5,
}

// ExperienceGenerator scores the candidate's seniority and education against
// the job's stated bounds.
type ExperienceGenerator struct {
	// now is injectable so tests can pin the clock.
	now func() time.Time
}

func NewExperienceGenerator() *ExperienceGenerator {
	return &ExperienceGenerator{now: time.Now}
}

func (g *ExperienceGenerator) Name() string { return "experience" }

// Generate emits the experience_ feature family.
func (g *ExperienceGenerator) Generate(_ context.Context, req model.MatchRequest) (map[string]float64, error) {
	years := g.totalYears(req.Candidate.Experiences)

	return map[string]float64{
		"experience_years_fit":     yearsFit(years, req.Job.MinYearsExperience, req.Job.MaxYearsExperience),
		"experience_education_fit": educationFit(req.Candidate.Education, req.Job.RequiredEducationLevel),
	}, nil
}

// totalYears sums non-overlapping experience durations, counting ongoing
// roles up to now.
func (g *ExperienceGenerator) totalYears(experiences []model.Experience) float64 {
	type span struct{ start, end time.Time }
	var spans []span
	now := g.now()
	for _, e := range experiences {
		if e.StartDate.IsZero() {
			continue
		}
		end := e.EndDate
		if e.Current || end.IsZero() {
			end = now
		}
		if end.After(e.StartDate) {
			spans = append(spans, span{e.StartDate, end})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var total time.Duration
	var covered time.Time
	for _, s := range spans {
		if s.start.Before(covered) {
			s.start = covered
		}
		if s.end.After(s.start) {
			total += s.end.Sub(s.start)
			covered = s.end
		}
	}
	return total.Hours() / (24 * 365.25)
}

// yearsFit scores candidate years against [min, max]: 1.0 inside the band,
// proportional below the floor, gently decaying above a bounded ceiling.
func yearsFit(years float64, min, max int) float64 {
	if min <= 0 && max <= 0 {
		return 1
	}

	if min > 0 && years < float64(min) {
		return clip(years / float64(min))
	}

	// max == 0 means unbounded.
	if max > 0 && years > float64(max) {
		over := years - float64(max)
		score := 1 - over/(float64(max)*2)
		if score < 0.5 {
			score = 0.5
		}
		return score
	}

	return 1
}

// educationFit compares the candidate's highest education level against the
// job's requirement; no requirement is a perfect fit.
func educationFit(education []model.Education, required string) float64 {
	requiredRank, ok := educationRank[strings.ToLower(strings.TrimSpace(required))]
	if !ok || requiredRank == 0 {
		return 1
	}

	best := 0
	for _, e := range education {
		if rank, ok := educationRank[strings.ToLower(strings.TrimSpace(e.Level))]; ok && rank > best {
			best = rank
		}
	}

	if best >= requiredRank {
		return 1
	}
	return clip(float64(best) / float64(requiredRank))
}
