package features

import (
	"context"
	"sort"
	"strings"

	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/taxonomy"
)

// SkillsGenerator compares candidate and job skill sets through the
// taxonomy: exact matches, coverage with partial and taxonomy credit, and an
// optional embeddings-based semantic signal.
type SkillsGenerator struct {
	tax      *taxonomy.Taxonomy
	embedder Embedder
}

// NewSkillsGenerator builds the generator. embedder may be nil, in which case
// skills_semantic is omitted from the output rather than set to zero.
func NewSkillsGenerator(tax *taxonomy.Taxonomy, embedder Embedder) *SkillsGenerator {
	return &SkillsGenerator{tax: tax, embedder: embedder}
}

func (g *SkillsGenerator) Name() string { return "skills" }

// Generate emits the skills_ feature family.
func (g *SkillsGenerator) Generate(ctx context.Context, req model.MatchRequest) (map[string]float64, error) {
	candidate := req.Candidate.Skills
	required := req.Job.RequiredSkills

	out := map[string]float64{
		"skills_exact_f1": g.exactF1(candidate, required),
		"skills_coverage": g.coverage(candidate, required),
		"skills_taxonomy": g.taxonomyMatch(candidate, required),
	}

	// The semantic feature exists only when the embeddings capability was
	// provided at construction; a failed embedding call degrades to zero.
	if g.embedder != nil {
		out["skills_semantic"] = g.semantic(ctx, candidate, required)
	}

	if len(req.Job.PreferredSkills) > 0 {
		out["skills_preferred_coverage"] = g.coverage(candidate, req.Job.PreferredSkills)
	}

	for cat, score := range g.categoryCoverage(candidate, required) {
		out["skills_"+cat+"_coverage"] = score
	}

	return out, nil
}

// canonicalSet maps each skill to its canonical name, keeping the
// highest level seen per canonical name.
func (g *SkillsGenerator) canonicalSet(skills []model.Skill) map[string]model.Skill {
	set := make(map[string]model.Skill, len(skills))
	for _, s := range skills {
		canon := g.tax.Canonical(s.Name)
		if existing, ok := set[canon]; !ok || s.Level.Weight() > existing.Level.Weight() {
			set[canon] = s
		}
	}
	return set
}

// exactF1 is the harmonic mean of precision and recall over canonical-name
// set intersection. Nothing required means nothing can be missed.
func (g *SkillsGenerator) exactF1(candidate, job []model.Skill) float64 {
	if len(job) == 0 {
		return 1
	}
	if len(candidate) == 0 {
		return 0
	}

	candSet := g.canonicalSet(candidate)
	jobSet := g.canonicalSet(job)

	inter := 0
	for canon := range jobSet {
		if _, ok := candSet[canon]; ok {
			inter++
		}
	}

	precision := float64(inter) / float64(len(candSet))
	recall := float64(inter) / float64(len(jobSet))
	return clip(f1(precision, recall))
}

// matchStrength scores how well any candidate skill covers one job skill:
// 1.0 exact canonical match, 0.8 substring, taxonomyDistance otherwise. A
// level below the required one scales the contribution down.
func (g *SkillsGenerator) matchStrength(candSet map[string]model.Skill, jobSkill model.Skill) float64 {
	jobCanon := g.tax.Canonical(jobSkill.Name)

	if cand, ok := candSet[jobCanon]; ok {
		return levelPenalty(cand.Level, jobSkill.Level)
	}

	best := 0.0
	for candCanon, cand := range candSet {
		strength := 0.0
		switch {
		case strings.Contains(candCanon, jobCanon) || strings.Contains(jobCanon, candCanon):
			strength = 0.8
		default:
			strength = g.tax.TaxonomyDistance(candCanon, jobCanon)
		}
		if strength < 0.5 {
			continue
		}
		strength *= levelPenalty(cand.Level, jobSkill.Level)
		if strength > best {
			best = strength
		}
	}
	return best
}

// levelPenalty returns candidateLevel/requiredLevel when the candidate sits
// below the required level, 1.0 otherwise.
func levelPenalty(candidate, required model.SkillLevel) float64 {
	cw, rw := candidate.Weight(), required.Weight()
	if cw >= rw {
		return 1
	}
	return cw / rw
}

// coverage is the weighted fraction of job skills covered by any of exact,
// substring, or taxonomy matching.
func (g *SkillsGenerator) coverage(candidate, job []model.Skill) float64 {
	if len(job) == 0 {
		return 1
	}
	if len(candidate) == 0 {
		return 0
	}

	candSet := g.canonicalSet(candidate)

	var covered, total float64
	for _, jobSkill := range job {
		weight := jobSkill.Weight
		if weight <= 0 {
			weight = 1
		}
		covered += g.matchStrength(candSet, jobSkill) * weight
		total += weight
	}
	return clip(covered / total)
}

// taxonomyMatch is the mean over job skills of the best taxonomy distance to
// any candidate skill.
func (g *SkillsGenerator) taxonomyMatch(candidate, job []model.Skill) float64 {
	if len(job) == 0 {
		return 1
	}
	if len(candidate) == 0 {
		return 0
	}

	candSet := g.canonicalSet(candidate)

	var sum float64
	for _, jobSkill := range job {
		jobCanon := g.tax.Canonical(jobSkill.Name)
		best := 0.0
		for candCanon := range candSet {
			if d := g.tax.TaxonomyDistance(candCanon, jobCanon); d > best {
				best = d
			}
		}
		sum += best
	}
	return clip(sum / float64(len(job)))
}

// categoryCoverage computes coverage restricted to each taxonomy category
// present among the job's skills.
func (g *SkillsGenerator) categoryCoverage(candidate, job []model.Skill) map[string]float64 {
	byCategory := make(map[taxonomy.Category][]model.Skill)
	for _, s := range job {
		cat := g.tax.Category(s.Name)
		if cat == "" {
			cat = taxonomy.CategoryTechnical
		}
		byCategory[cat] = append(byCategory[cat], s)
	}

	out := make(map[string]float64, len(byCategory))
	for cat, skills := range byCategory {
		out[string(cat)] = g.coverage(candidate, skills)
	}
	return out
}

// semantic computes cosine similarity of mean-pooled skill-name embeddings.
func (g *SkillsGenerator) semantic(ctx context.Context, candidate, job []model.Skill) float64 {
	if g.embedder == nil || len(candidate) == 0 || len(job) == 0 {
		return 0
	}

	texts := make([]string, 0, len(candidate)+len(job))
	for _, s := range candidate {
		texts = append(texts, g.tax.Canonical(s.Name))
	}
	for _, s := range job {
		texts = append(texts, g.tax.Canonical(s.Name))
	}
	sort.Strings(texts[:len(candidate)])
	sort.Strings(texts[len(candidate):])

	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		return 0
	}

	candVec := meanPool(vectors[:len(candidate)])
	jobVec := meanPool(vectors[len(candidate):])
	return cosine32(candVec, jobVec)
}
