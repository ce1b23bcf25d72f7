package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benidevo/matchcore/internal/matchcore/model"
)

func TestCulturalGenerator_ExplicitValuesMatch(t *testing.T) {
	gen := NewCulturalGenerator(nil)

	req := model.MatchRequest{
		Candidate: model.CandidateProfile{
			Values: []string{"integrity", "learning"},
		},
		Job: model.JobPosting{
			FreeText: "We value transparency and continuous learning above all.",
		},
	}

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	// integrity→ethics matches transparency→ethics; learning→growth matches.
	assert.Equal(t, 1.0, out["cultural_values_explicit"])
}

func TestCulturalGenerator_NoEvidenceEmitsNothing(t *testing.T) {
	gen := NewCulturalGenerator(nil)

	out, err := gen.Generate(context.Background(), model.MatchRequest{})
	require.NoError(t, err)
	assert.Empty(t, out, "no values and no text means no cultural features")
}

func TestCulturalGenerator_ManagementStyleMatrix(t *testing.T) {
	gen := NewCulturalGenerator(nil)

	req := model.MatchRequest{
		Candidate: model.CandidateProfile{FreeText: "I thrive with autonomy and self-directed work"},
		Job:       model.JobPosting{FreeText: "strong leadership and top-down decision making"},
	}

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	// delegative candidate vs directive job.
	assert.Equal(t, 0.2, out["cultural_management_style"])
}

func TestCulturalGenerator_ManagementStyleUndetectedOmitted(t *testing.T) {
	gen := NewCulturalGenerator(nil)

	req := model.MatchRequest{
		Candidate: model.CandidateProfile{FreeText: "I like writing code"},
		Job:       model.JobPosting{FreeText: "we ship software"},
	}

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	_, ok := out["cultural_management_style"]
	assert.False(t, ok, "style undetected on both sides")
}

func TestCulturalGenerator_EnvironmentPace(t *testing.T) {
	gen := NewCulturalGenerator(nil)

	req := model.MatchRequest{
		Candidate: model.CandidateProfile{FreeText: "I enjoy a calm, measured pace of work"},
		Job:       model.JobPosting{FreeText: "fast-paced scaling company"},
	}

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.2, out["cultural_environment_pace"])
}

func TestCulturalGenerator_ImplicitFallsBackToTFIDF(t *testing.T) {
	gen := NewCulturalGenerator(nil)
	text := "collaborative culture focused on sustainable growth"

	req := model.MatchRequest{
		Candidate: model.CandidateProfile{FreeText: text},
		Job:       model.JobPosting{FreeText: text},
	}

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out["cultural_implicit"], 1e-9)
}

func TestCulturalGenerator_ImplicitUsesEmbedder(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"candidate text": {0, 1, 0},
		"job text":       {0, 1, 0},
	}}
	gen := NewCulturalGenerator(embedder)

	req := model.MatchRequest{
		Candidate: model.CandidateProfile{FreeText: "candidate text"},
		Job:       model.JobPosting{FreeText: "job text"},
	}

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out["cultural_implicit"], 1e-6)
}

func TestCulturalGenerator_CategoryAlignment(t *testing.T) {
	gen := NewCulturalGenerator(nil)

	req := model.MatchRequest{
		Candidate: model.CandidateProfile{Values: []string{"stability"}},
		Job:       model.JobPosting{FreeText: "job security and work-life balance"},
	}

	out, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Greater(t, out["cultural_stability"], 0.5)

	_, ok := out["cultural_ethics"]
	assert.False(t, ok, "categories without evidence on either side are omitted")
}

func TestCulturalGenerator_Deterministic(t *testing.T) {
	gen := NewCulturalGenerator(nil)

	req := model.MatchRequest{
		Candidate: model.CandidateProfile{
			Values:   []string{"innovation", "teamwork"},
			FreeText: "flat hierarchy fan, casual, fast-paced",
		},
		Job: model.JobPosting{
			FreeText: "innovative collaborative casual environment with flat structure",
		},
	}

	first, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := gen.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
