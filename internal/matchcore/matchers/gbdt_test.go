package matchers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testModelJSON is a two-tree ensemble splitting on skills_coverage and
// pref_salary.
const testModelJSON = `{
  "version": 1,
  "baseScore": 0.5,
  "features": ["skills_coverage", "pref_salary"],
  "trees": [
    {"nodes": [
      {"feature": "skills_coverage", "threshold": 0.5, "left": 1, "right": 2, "value": 0.0},
      {"leaf": true, "value": -0.3},
      {"leaf": true, "value": 0.3}
    ]},
    {"nodes": [
      {"feature": "pref_salary", "threshold": 0.4, "left": 1, "right": 2, "value": 0.0},
      {"leaf": true, "value": -0.1},
      {"leaf": true, "value": 0.1}
    ]}
  ]
}`

func TestParseGBDTModel_Valid(t *testing.T) {
	m, err := ParseGBDTModel([]byte(testModelJSON))
	require.NoError(t, err)
	assert.Len(t, m.Trees, 2)
}

func TestParseGBDTModel_WrongVersion(t *testing.T) {
	_, err := ParseGBDTModel([]byte(`{"version": 99, "trees": [{"nodes":[{"leaf":true,"value":0}]}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model version")
}

func TestParseGBDTModel_NoTrees(t *testing.T) {
	_, err := ParseGBDTModel([]byte(`{"version": 1, "trees": []}`))
	require.Error(t, err)
}

func TestParseGBDTModel_OutOfRangeChildren(t *testing.T) {
	_, err := ParseGBDTModel([]byte(`{"version": 1, "trees": [{"nodes": [
		{"feature": "x", "threshold": 0.5, "left": 5, "right": 1, "value": 0},
		{"leaf": true, "value": 0.1}
	]}]}`))
	require.Error(t, err)
}

func TestLoadGBDTModel_MissingFile(t *testing.T) {
	_, err := LoadGBDTModel("/nonexistent/model.json")
	require.Error(t, err)
}

func TestGBDTModel_Predict(t *testing.T) {
	m, err := ParseGBDTModel([]byte(testModelJSON))
	require.NoError(t, err)

	// High coverage, good salary: 0.5 + 0.3 + 0.1.
	assert.InDelta(t, 0.9, m.Predict(map[string]float64{
		"skills_coverage": 0.9,
		"pref_salary":     0.8,
	}), 1e-9)

	// Low everything: 0.5 - 0.3 - 0.1.
	assert.InDelta(t, 0.1, m.Predict(map[string]float64{
		"skills_coverage": 0.1,
		"pref_salary":     0.1,
	}), 1e-9)

	// Absent features read as zero.
	assert.InDelta(t, 0.1, m.Predict(map[string]float64{}), 1e-9)
}

func TestGBDTModel_PredictClipped(t *testing.T) {
	m, err := ParseGBDTModel([]byte(`{
		"version": 1, "baseScore": 0.95,
		"trees": [{"nodes": [
			{"feature": "skills_coverage", "threshold": 0.5, "left": 1, "right": 2, "value": 0},
			{"leaf": true, "value": -2.0},
			{"leaf": true, "value": 2.0}
		]}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.Predict(map[string]float64{"skills_coverage": 0.9}))
	assert.Equal(t, 0.0, m.Predict(map[string]float64{"skills_coverage": 0.1}))
}

func TestGBDTModel_Attribute(t *testing.T) {
	m, err := ParseGBDTModel([]byte(testModelJSON))
	require.NoError(t, err)

	contributions := m.Attribute(map[string]float64{
		"skills_coverage": 0.9,
		"pref_salary":     0.1,
	})
	assert.InDelta(t, 0.3, contributions["skills_coverage"], 1e-9)
	assert.InDelta(t, -0.1, contributions["pref_salary"], 1e-9)
}

func TestNewMLRanker_RefusesMissingModel(t *testing.T) {
	_, err := NewMLRanker("", nil, nil, nil, nil)
	require.Error(t, err)

	_, err = NewMLRanker(filepath.Join(t.TempDir(), "missing.json"), nil, nil, nil, nil)
	require.Error(t, err)
}

func TestNewMLRanker_RefusesIncompatibleModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 42}`), 0o644))

	_, err := NewMLRanker(path, nil, nil, nil, nil)
	require.Error(t, err)
}
