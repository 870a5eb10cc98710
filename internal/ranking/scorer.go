// Package ranking scores working-store entries against a topic's query.
// The base signal is semantic similarity from an embedding backend (or a
// keyword fallback); deterministic boosts and penalties from config are
// applied on top. Given fixed embeddings and config, scoring is
// bit-reproducible.
package ranking

import (
	"context"
	"fmt"
	"math"
	"strings"

	"lit.watch/firehose/internal/config"
)

// BackendError marks a scoring backend failure. The pipeline degrades on
// it: scores stay unset and the topic continues, instead of failing.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return e.Err.Error() }

func (e *BackendError) Unwrap() error { return e.Err }

// Scorer produces base similarities in [0,1] for every (phrase, text) pair.
// Implementations are selected by topic config at run start.
type Scorer interface {
	// Name identifies the scoring method for reasoning traces.
	Name() string
	// Similarities returns one row per phrase, one column per text.
	Similarities(ctx context.Context, phrases, texts []string) ([][]float64, error)
}

// NewScorer selects the scoring method a topic configured.
func NewScorer(method string, embCfg config.EmbeddingConfig, client *EmbeddingClient) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", "embedding":
		if client == nil {
			client = NewEmbeddingClient(embCfg, nil)
		}
		return &embeddingScorer{client: client}, nil
	case "keyword":
		return &keywordScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown ranking method %q", method)
	}
}

type embeddingScorer struct {
	client *EmbeddingClient
}

func (s *embeddingScorer) Name() string { return "embedding" }

func (s *embeddingScorer) Similarities(ctx context.Context, phrases, texts []string) ([][]float64, error) {
	phraseVecs, err := s.client.Embed(ctx, phrases)
	if err != nil {
		return nil, &BackendError{Err: fmt.Errorf("embed query phrases: %w", err)}
	}
	textVecs, err := s.client.Embed(ctx, texts)
	if err != nil {
		return nil, &BackendError{Err: fmt.Errorf("embed entry texts: %w", err)}
	}

	sims := make([][]float64, len(phraseVecs))
	for i, pv := range phraseVecs {
		row := make([]float64, len(textVecs))
		for j, tv := range textVecs {
			row[j] = clamp01(cosine(pv, tv))
		}
		sims[i] = row
	}
	return sims, nil
}

// cosine computes the cosine similarity of two vectors; zero-norm inputs
// score zero.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
