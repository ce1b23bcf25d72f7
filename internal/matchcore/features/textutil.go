package features

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// stopwords are excluded from TF-IDF and BM25 token streams. Title
// similarity deliberately keeps them.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "in": true,
	"is": true, "it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "to": true, "was": true, "we": true,
	"will": true, "with": true, "you": true, "your": true, "our": true,
	"le": true, "la": true, "les": true, "de": true, "des": true, "du": true,
	"et": true, "un": true, "une": true, "en": true, "pour": true,
}

// tokenize lowercases and splits text on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// contentTokens tokenizes and drops stopwords and single-rune tokens.
func contentTokens(text string) []string {
	var out []string
	for _, tok := range tokenize(text) {
		if len(tok) > 1 && !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// lemma applies crude suffix stripping so that "developed", "developing" and
// "develops" collapse to a shared stem. Good enough for overlap features;
// not a real lemmatizer.
func lemma(token string) string {
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if strings.HasSuffix(token, suffix) && len(token)-len(suffix) >= 3 {
			return token[:len(token)-len(suffix)]
		}
	}
	return token
}

func termFrequencies(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}

// tfidfCosine computes cosine similarity between two documents using TF-IDF
// weights over their two-document corpus. Deterministic: terms iterate in
// sorted order.
func tfidfCosine(docA, docB []string) float64 {
	if len(docA) == 0 || len(docB) == 0 {
		return 0
	}

	tfA := termFrequencies(docA)
	tfB := termFrequencies(docB)

	terms := make([]string, 0, len(tfA)+len(tfB))
	seen := make(map[string]bool, len(tfA)+len(tfB))
	for term := range tfA {
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	for term := range tfB {
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)

	var dot, normA, normB float64
	for _, term := range terms {
		df := 0.0
		if tfA[term] > 0 {
			df++
		}
		if tfB[term] > 0 {
			df++
		}
		// Smoothed IDF over the two-document corpus.
		idf := math.Log(3.0/(1.0+df)) + 1.0

		wa := tfA[term] * idf
		wb := tfB[term] * idf
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clip(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// bm25 scores query terms against a document with k1=1.5 and b=0.75,
// normalized to [0,1] by the per-term saturation ceiling (k1+1).
func bm25(query, doc []string) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}

	const k1, b = 1.5, 0.75

	tf := termFrequencies(doc)
	// Single-document collection: the document's length ratio to the average
	// is 1, so the length normalizer reduces to a constant.
	lengthNorm := k1 * (1 - b + b*1.0)

	uniqueQuery := make([]string, 0, len(query))
	seen := make(map[string]bool, len(query))
	for _, term := range query {
		if !seen[term] {
			seen[term] = true
			uniqueQuery = append(uniqueQuery, term)
		}
	}
	sort.Strings(uniqueQuery)

	var score float64
	for _, term := range uniqueQuery {
		freq := tf[term]
		if freq == 0 {
			continue
		}
		score += freq * (k1 + 1) / (freq + lengthNorm)
	}

	// Each matched term contributes at most k1+1, so this bounds to [0,1].
	return clip(score / (float64(len(uniqueQuery)) * (k1 + 1)))
}

// tokenSetCosine computes cosine similarity over binary token sets. Used for
// title similarity where stop words carry signal and are kept.
func tokenSetCosine(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, tok := range a {
		setA[tok] = true
	}
	setB := make(map[string]bool, len(b))
	for _, tok := range b {
		setB[tok] = true
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return clip(float64(inter) / (math.Sqrt(float64(len(setA))) * math.Sqrt(float64(len(setB)))))
}

// jaccard computes set overlap |A∩B| / |A∪B|.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
