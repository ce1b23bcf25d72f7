package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benidevo/matchcore/internal/matchcore/model"
	"github.com/benidevo/matchcore/internal/matchcore/taxonomy"
)

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.LoadDefault()
	require.NoError(t, err)
	return tax
}

func skillsRequest(candidate, required []model.Skill) model.MatchRequest {
	return model.MatchRequest{
		Candidate: model.CandidateProfile{ID: "c1", Skills: candidate},
		Job:       model.JobPosting{ID: "j1", RequiredSkills: required},
	}
}

func TestSkillsGenerator_ExactMatch(t *testing.T) {
	gen := NewSkillsGenerator(testTaxonomy(t), nil)

	req := skillsRequest(
		[]model.Skill{{Name: "Python", Level: model.LevelExpert}},
		[]model.Skill{{Name: "python", Level: model.LevelAdvanced, Required: true}},
	)

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1.0, out["skills_exact_f1"])
	assert.Equal(t, 1.0, out["skills_coverage"])
	assert.Equal(t, 1.0, out["skills_taxonomy"])
	_, hasSemantic := out["skills_semantic"]
	assert.False(t, hasSemantic, "no embedder configured, feature omitted")
}

func TestSkillsGenerator_SynonymResolvesToExact(t *testing.T) {
	gen := NewSkillsGenerator(testTaxonomy(t), nil)

	req := skillsRequest(
		[]model.Skill{{Name: "golang", Level: model.LevelAdvanced}},
		[]model.Skill{{Name: "Go", Level: model.LevelAdvanced, Required: true}},
	)

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out["skills_exact_f1"])
}

func TestSkillsGenerator_EmptyCandidateNonEmptyJob(t *testing.T) {
	gen := NewSkillsGenerator(testTaxonomy(t), nil)

	req := skillsRequest(nil, []model.Skill{{Name: "python", Required: true}})

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["skills_coverage"])
	assert.Equal(t, 0.0, out["skills_exact_f1"])
}

func TestSkillsGenerator_EmptyJobRequirements(t *testing.T) {
	gen := NewSkillsGenerator(testTaxonomy(t), nil)

	req := skillsRequest([]model.Skill{{Name: "python"}}, nil)

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out["skills_coverage"], "nothing to miss")
	assert.Equal(t, 1.0, out["skills_exact_f1"])
}

func TestSkillsGenerator_LevelMismatchPenalty(t *testing.T) {
	gen := NewSkillsGenerator(testTaxonomy(t), nil)

	req := skillsRequest(
		[]model.Skill{{Name: "python", Level: model.LevelBeginner}},
		[]model.Skill{{Name: "python", Level: model.LevelExpert, Required: true}},
	)

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	// beginner(0.5) over expert(1.0) halves the contribution.
	assert.InDelta(t, 0.5, out["skills_coverage"], 1e-9)
}

func TestSkillsGenerator_TaxonomyCredit(t *testing.T) {
	gen := NewSkillsGenerator(testTaxonomy(t), nil)

	// django and flask share the parent python: distance 0.7.
	req := skillsRequest(
		[]model.Skill{{Name: "django", Level: model.LevelAdvanced}},
		[]model.Skill{{Name: "flask", Level: model.LevelAdvanced, Required: true}},
	)

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, out["skills_taxonomy"], 1e-9)
	assert.InDelta(t, 0.7, out["skills_coverage"], 1e-9)
	assert.Equal(t, 0.0, out["skills_exact_f1"])
}

func TestSkillsGenerator_CategoryCoverage(t *testing.T) {
	gen := NewSkillsGenerator(testTaxonomy(t), nil)

	req := skillsRequest(
		[]model.Skill{{Name: "python", Level: model.LevelAdvanced}},
		[]model.Skill{
			{Name: "python", Level: model.LevelAdvanced, Required: true},
			{Name: "teamwork", Level: model.LevelIntermediate},
		},
	)

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out["skills_technical_coverage"])
	assert.Equal(t, 0.0, out["skills_soft_coverage"])
	_, hasLanguage := out["skills_language_coverage"]
	assert.False(t, hasLanguage, "no language skill required")
}

func TestSkillsGenerator_Deterministic(t *testing.T) {
	gen := NewSkillsGenerator(testTaxonomy(t), nil)

	req := skillsRequest(
		[]model.Skill{{Name: "go"}, {Name: "docker"}, {Name: "teamwork"}},
		[]model.Skill{{Name: "kubernetes", Required: true}, {Name: "go", Required: true}},
	)

	first, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := gen.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func TestSkillsGenerator_SemanticWithEmbedder(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"python": {1, 0, 0},
		"go":     {1, 0, 0},
	}}
	gen := NewSkillsGenerator(testTaxonomy(t), embedder)

	req := skillsRequest(
		[]model.Skill{{Name: "python"}},
		[]model.Skill{{Name: "go", Required: true}},
	)

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out["skills_semantic"], 1e-6, "identical vectors")
}
