package features

import (
	"context"
	"strings"

	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// actionVerbs is the lexicon of resume action verbs matched (after crude
// lemmatization) between candidate and job text.
var actionVerbs = map[string]bool{
	"achiev": true, "analyz": true, "build": true, "built": true,
	"collaborat": true, "coordinat": true, "creat": true, "deliver": true,
	"design": true, "develop": true, "driv": true, "implement": true,
	"improv": true, "launch": true, "lead": true, "led": true,
	"maintain": true, "manag": true, "mentor": true, "migrat": true,
	"optimiz": true, "own": true, "plan": true, "research": true,
	"scal": true, "ship": true, "supervis": true, "test": true,
}

// roleWords flag tokens that name a role or seniority when computing entity
// overlap.
var roleWords = map[string]bool{
	"engineer": true, "developer": true, "architect": true, "manager": true,
	"lead": true, "senior": true, "junior": true, "principal": true,
	"analyst": true, "consultant": true, "designer": true, "scientist": true,
	"director": true, "head": true, "intern": true, "specialist": true,
}

// TextualGenerator scores free-text similarity between candidate and job:
// TF-IDF cosine, BM25, title similarity, entity overlap and action-verb
// overlap, each independently normalized to [0,1].
type TextualGenerator struct{}

func NewTextualGenerator() *TextualGenerator { return &TextualGenerator{} }

func (g *TextualGenerator) Name() string { return "textual" }

// Generate emits the text_ feature family.
func (g *TextualGenerator) Generate(_ context.Context, req model.MatchRequest) (map[string]float64, error) {
	candDoc := contentTokens(candidateDocument(req.Candidate))
	jobDoc := contentTokens(jobDocument(req.Job))

	return map[string]float64{
		"text_tfidf_cosine":     tfidfCosine(candDoc, jobDoc),
		"text_bm25":             bm25(jobDoc, candDoc),
		"text_title_similarity": g.titleSimilarity(req.Candidate, req.Job),
		"text_entity_overlap":   g.entityOverlap(req.Candidate, req.Job),
		"text_action_verbs":     g.actionVerbOverlap(candDoc, jobDoc),
	}, nil
}

// candidateDocument flattens a candidate profile into one text blob.
func candidateDocument(c model.CandidateProfile) string {
	var b strings.Builder
	b.WriteString(c.FreeText)
	for _, s := range c.Skills {
		b.WriteByte(' ')
		b.WriteString(s.Name)
	}
	for _, e := range c.Experiences {
		b.WriteByte(' ')
		b.WriteString(e.Title)
		b.WriteByte(' ')
		b.WriteString(e.Summary)
	}
	return b.String()
}

// jobDocument flattens a job posting into one text blob.
func jobDocument(j model.JobPosting) string {
	var b strings.Builder
	b.WriteString(j.Title)
	b.WriteByte(' ')
	b.WriteString(j.FreeText)
	for _, s := range j.RequiredSkills {
		b.WriteByte(' ')
		b.WriteString(s.Name)
	}
	for _, s := range j.PreferredSkills {
		b.WriteByte(' ')
		b.WriteString(s.Name)
	}
	return b.String()
}

// titleSimilarity compares the job title against the candidate's experience
// titles with a separate vectorizer that keeps stop words.
func (g *TextualGenerator) titleSimilarity(c model.CandidateProfile, j model.JobPosting) float64 {
	jobTokens := tokenize(j.Title)
	if len(jobTokens) == 0 {
		return 0
	}

	best := 0.0
	for _, e := range c.Experiences {
		if sim := tokenSetCosine(tokenize(e.Title), jobTokens); sim > best {
			best = sim
		}
	}
	return best
}

// entityOverlap measures shared organizations and role words between the two
// profiles.
func (g *TextualGenerator) entityOverlap(c model.CandidateProfile, j model.JobPosting) float64 {
	candOrgs := make(map[string]bool)
	candRoles := make(map[string]bool)
	for _, e := range c.Experiences {
		for _, tok := range tokenize(e.Company) {
			if len(tok) > 1 {
				candOrgs[tok] = true
			}
		}
		for _, tok := range tokenize(e.Title) {
			if roleWords[tok] {
				candRoles[tok] = true
			}
		}
	}

	jobOrgs := make(map[string]bool)
	for _, tok := range tokenize(j.Company + " " + j.Industry) {
		if len(tok) > 1 {
			jobOrgs[tok] = true
		}
	}
	jobRoles := make(map[string]bool)
	for _, tok := range tokenize(j.Title + " " + j.FreeText) {
		if roleWords[tok] {
			jobRoles[tok] = true
		}
	}

	// Role overlap is the stronger signal; organizations mostly differ
	// between a candidate's past employers and the hiring company.
	return clip(0.7*jaccard(candRoles, jobRoles) + 0.3*jaccard(candOrgs, jobOrgs))
}

// actionVerbOverlap measures shared action verbs after lemmatization.
func (g *TextualGenerator) actionVerbOverlap(candDoc, jobDoc []string) float64 {
	candVerbs := extractActionVerbs(candDoc)
	jobVerbs := extractActionVerbs(jobDoc)
	if len(jobVerbs) == 0 {
		return 0
	}

	inter := 0
	for verb := range jobVerbs {
		if candVerbs[verb] {
			inter++
		}
	}
	return clip(float64(inter) / float64(len(jobVerbs)))
}

func extractActionVerbs(tokens []string) map[string]bool {
	verbs := make(map[string]bool)
	for _, tok := range tokens {
		stem := lemma(tok)
		if actionVerbs[stem] || actionVerbs[tok] {
			verbs[stem] = true
		}
	}
	return verbs
}
