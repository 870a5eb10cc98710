package ranking

import (
	"context"
	"strings"
)

// keywordScorer is the model-free fallback: the similarity of a phrase and a
// text is the fraction of phrase tokens found in the text. Deterministic and
// cheap; useful when no embedding backend is deployed.
type keywordScorer struct{}

func (s *keywordScorer) Name() string { return "keyword" }

func (s *keywordScorer) Similarities(_ context.Context, phrases, texts []string) ([][]float64, error) {
	sims := make([][]float64, len(phrases))
	for i, phrase := range phrases {
		tokens := tokenize(phrase)
		row := make([]float64, len(texts))
		for j, text := range texts {
			row[j] = tokenOverlap(tokens, strings.ToLower(text))
		}
		sims[i] = row
	}
	return sims, nil
}

func tokenize(phrase string) []string {
	return strings.Fields(strings.ToLower(phrase))
}

func tokenOverlap(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	found := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			found++
		}
	}
	return float64(found) / float64(len(tokens))
}
