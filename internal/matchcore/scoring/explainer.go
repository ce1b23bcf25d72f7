package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// featureLabels render feature names into human-readable phrasing. Features
// without an entry fall back to a cleaned-up version of their name.
var featureLabels = map[string]string{
	"skills_exact_f1":          "exact skill matches",
	"skills_coverage":          "required skill coverage",
	"skills_semantic":          "semantic skill similarity",
	"skills_taxonomy":          "related skill families",
	"skills_preferred_coverage": "preferred skill coverage",
	"text_tfidf_cosine":        "profile and posting wording",
	"text_bm25":                "posting keywords in profile",
	"text_title_similarity":    "job title alignment",
	"text_entity_overlap":      "shared roles and organizations",
	"text_action_verbs":        "shared action verbs",
	"pref_location":            "location",
	"pref_salary":              "salary expectations",
	"pref_work_mode":           "work mode",
	"pref_contract":            "contract type",
	"pref_company_size":        "company size",
	"pref_industry":            "industry",
	"pref_travel_willingness":  "travel requirements",
	"cultural_values_explicit": "stated values",
	"cultural_implicit":        "cultural tone",
	"cultural_management_style": "management style",
	"experience_years_fit":     "years of experience",
	"experience_education_fit": "education level",
}

const (
	maxStrengths = 5
	maxGaps      = 3
)

// Attributor supplies per-feature contributions when the scoring model can
// produce them (the ML ranker's tree-path attribution). Nil means rule-based
// templating only.
type Attributor interface {
	Attribute(features map[string]float64) map[string]float64
}

// Explainer renders strengths, gaps and improvement suggestions from a
// feature map. It never calls external services.
type Explainer struct {
	attributor Attributor
}

// NewExplainer builds a rule-based Explainer. attributor may be nil.
func NewExplainer(attributor Attributor) *Explainer {
	return &Explainer{attributor: attributor}
}

// Explanation is the Explainer's output, ready to fold into a MatchResult.
type Explanation struct {
	Strengths   []model.Factor
	Gaps        []model.Factor
	Suggestions []string
}

// Explain ranks features into top strengths and gaps. When an attributor is
// present, strength ordering follows model contributions instead of raw
// values.
func (e *Explainer) Explain(features map[string]float64) Explanation {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	impact := features
	if e.attributor != nil {
		if attributed := e.attributor.Attribute(features); len(attributed) > 0 {
			impact = attributed
		}
	}

	byImpact := make([]string, len(names))
	copy(byImpact, names)
	sort.SliceStable(byImpact, func(i, j int) bool {
		return impact[byImpact[i]] > impact[byImpact[j]]
	})

	var strengths []model.Factor
	for _, name := range byImpact {
		if len(strengths) == maxStrengths {
			break
		}
		if features[name] < 0.7 {
			continue
		}
		strengths = append(strengths, model.Factor{
			Feature: name,
			Value:   features[name],
			Label:   fmt.Sprintf("Strong match on %s: %d%%", labelOf(name), pct(features[name])),
		})
	}

	byValueAsc := make([]string, len(names))
	copy(byValueAsc, names)
	sort.SliceStable(byValueAsc, func(i, j int) bool {
		return features[byValueAsc[i]] < features[byValueAsc[j]]
	})

	var gaps []model.Factor
	for _, name := range byValueAsc {
		if len(gaps) == maxGaps {
			break
		}
		if features[name] >= 0.5 {
			break
		}
		gaps = append(gaps, model.Factor{
			Feature: name,
			Value:   features[name],
			Label:   fmt.Sprintf("Weak match on %s: %d%%", labelOf(name), pct(features[name])),
		})
	}

	return Explanation{
		Strengths:   strengths,
		Gaps:        gaps,
		Suggestions: suggestions(gaps),
	}
}

func suggestions(gaps []model.Factor) []string {
	if len(gaps) == 0 {
		return nil
	}
	labels := make([]string, len(gaps))
	for i, gap := range gaps {
		labels[i] = labelOf(gap.Feature)
	}
	return []string{"Develop: " + strings.Join(labels, ", ")}
}

func labelOf(feature string) string {
	if label, ok := featureLabels[feature]; ok {
		return label
	}
	return strings.ReplaceAll(feature, "_", " ")
}

func pct(v float64) int {
	return int(v*100 + 0.5)
}
