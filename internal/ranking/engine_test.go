package ranking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/config"
)

type stubScorer struct {
	sims [][]float64
}

func (s *stubScorer) Name() string { return "stub" }

func (s *stubScorer) Similarities(_ context.Context, phrases, texts []string) ([][]float64, error) {
	return s.sims, nil
}

func rankedTopic(mutate func(*config.TopicConfig)) *config.TopicConfig {
	topic := &config.TopicConfig{
		Name:  "solar",
		Feeds: []string{"nature"},
		Filter: config.FilterConfig{
			Pattern: "perovskite",
		},
		Ranking: config.RankingConfig{
			Query: "perovskite solar cell stability",
		},
	}
	if mutate != nil {
		mutate(topic)
	}
	return topic
}

func TestScoreTopic_BaseScorePassesThrough(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&stubScorer{sims: [][]float64{{0.7, 0.2}}}, zerolog.Nop())
	scored, err := engine.ScoreTopic(context.Background(), rankedTopic(nil), Globals{}, []Candidate{
		{ID: "a", Topic: "solar", Title: "hit"},
		{ID: "b", Topic: "solar", Title: "miss"},
	})
	if err != nil {
		t.Fatalf("ScoreTopic: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 results, got %d", len(scored))
	}
	if scored[0].Score != 0.7 || scored[1].Score != 0.2 {
		t.Fatalf("unexpected scores: %+v", scored)
	}
	if !strings.Contains(scored[0].Reasoning, "stub base=0.7000") {
		t.Fatalf("unexpected reasoning: %q", scored[0].Reasoning)
	}
}

func TestScoreTopic_AggregateMaxAndMean(t *testing.T) {
	t.Parallel()

	sims := [][]float64{{0.8}, {0.2}}

	maxTopic := rankedTopic(func(topic *config.TopicConfig) {
		topic.Ranking.Queries = []string{"one", "two"}
	})
	engine := NewEngine(&stubScorer{sims: sims}, zerolog.Nop())
	scored, err := engine.ScoreTopic(context.Background(), maxTopic, Globals{}, []Candidate{{ID: "a", Topic: "solar"}})
	if err != nil {
		t.Fatalf("ScoreTopic max: %v", err)
	}
	if scored[0].Score != 0.8 {
		t.Fatalf("expected max aggregation 0.8, got %f", scored[0].Score)
	}

	meanTopic := rankedTopic(func(topic *config.TopicConfig) {
		topic.Ranking.Queries = []string{"one", "two"}
		topic.Ranking.Aggregate = "mean"
	})
	scored, err = engine.ScoreTopic(context.Background(), meanTopic, Globals{}, []Candidate{{ID: "a", Topic: "solar"}})
	if err != nil {
		t.Fatalf("ScoreTopic mean: %v", err)
	}
	if scored[0].Score != 0.5 {
		t.Fatalf("expected mean aggregation 0.5, got %f", scored[0].Score)
	}
}

func TestScoreTopic_NegativePenalty(t *testing.T) {
	t.Parallel()

	topic := rankedTopic(func(topic *config.TopicConfig) {
		topic.Ranking.NegativeQueries = []string{"Review"}
	})
	engine := NewEngine(&stubScorer{sims: [][]float64{{0.6, 0.6}}}, zerolog.Nop())

	scored, err := engine.ScoreTopic(context.Background(), topic, Globals{NegativePenalty: 0.25}, []Candidate{
		{ID: "a", Topic: "solar", Title: "A review of perovskites"},
		{ID: "b", Topic: "solar", Title: "A fresh result"},
	})
	if err != nil {
		t.Fatalf("ScoreTopic: %v", err)
	}
	if scored[0].Score != 0.35 {
		t.Fatalf("expected penalized score 0.35, got %f", scored[0].Score)
	}
	if !strings.Contains(scored[0].Reasoning, `negative "review" -0.25`) {
		t.Fatalf("expected reasoning to name the fired term: %q", scored[0].Reasoning)
	}
	if scored[1].Score != 0.6 {
		t.Fatalf("expected unpenalized score 0.6, got %f", scored[1].Score)
	}
}

func TestScoreTopic_AuthorAndJournalBoosts(t *testing.T) {
	t.Parallel()

	topic := rankedTopic(func(topic *config.TopicConfig) {
		topic.Ranking.PreferredAuthors = []string{"H. Snaith"}
		topic.Ranking.PriorityAuthorBoost = 0.1
	})
	engine := NewEngine(&stubScorer{sims: [][]float64{{0.5, 0.5}}}, zerolog.Nop())

	globals := Globals{
		PriorityJournalNames: map[string]struct{}{"Nature": {}},
		PriorityJournalBoost: 0.15,
	}
	scored, err := engine.ScoreTopic(context.Background(), topic, globals, []Candidate{
		{ID: "a", Topic: "solar", FeedName: "Nature", Authors: []string{"Henry J. Snaith"}},
		{ID: "b", Topic: "solar", FeedName: "arXiv cond-mat"},
	})
	if err != nil {
		t.Fatalf("ScoreTopic: %v", err)
	}
	if got := scored[0].Score; got < 0.749 || got > 0.751 {
		t.Fatalf("expected both boosts applied (0.75), got %f", got)
	}
	if scored[1].Score != 0.5 {
		t.Fatalf("expected no boosts, got %f", scored[1].Score)
	}
}

func TestScoreTopic_ClampsToUnitInterval(t *testing.T) {
	t.Parallel()

	topic := rankedTopic(func(topic *config.TopicConfig) {
		topic.Ranking.PreferredAuthors = []string{"H. Snaith"}
		topic.Ranking.PriorityAuthorBoost = 0.5
		topic.Ranking.NegativeQueries = []string{"retracted"}
		topic.Ranking.NegativePenalty = 0.9
	})
	engine := NewEngine(&stubScorer{sims: [][]float64{{0.9, 0.05}}}, zerolog.Nop())

	scored, err := engine.ScoreTopic(context.Background(), topic, Globals{}, []Candidate{
		{ID: "high", Topic: "solar", Authors: []string{"H. Snaith"}},
		{ID: "low", Topic: "solar", Title: "retracted study"},
	})
	if err != nil {
		t.Fatalf("ScoreTopic: %v", err)
	}
	if scored[0].Score != 1 {
		t.Fatalf("expected clamp to 1, got %f", scored[0].Score)
	}
	if scored[1].Score != 0 {
		t.Fatalf("expected clamp to 0, got %f", scored[1].Score)
	}
}

func TestScoreTopic_NoQueryFails(t *testing.T) {
	t.Parallel()

	topic := rankedTopic(func(topic *config.TopicConfig) {
		topic.Ranking.Query = ""
	})
	engine := NewEngine(&stubScorer{}, zerolog.Nop())
	if _, err := engine.ScoreTopic(context.Background(), topic, Globals{}, []Candidate{{ID: "a"}}); err == nil {
		t.Fatalf("expected error for topic without ranking query")
	}
}

func TestKeywordScorer(t *testing.T) {
	t.Parallel()

	scorer := &keywordScorer{}
	sims, err := scorer.Similarities(context.Background(),
		[]string{"perovskite solar cell"},
		[]string{"Perovskite solar cell stability study", "organic electronics"},
	)
	if err != nil {
		t.Fatalf("Similarities: %v", err)
	}
	if len(sims) != 1 || len(sims[0]) != 2 {
		t.Fatalf("unexpected shape: %v", sims)
	}
	if sims[0][0] != 1 {
		t.Fatalf("expected full token coverage to score 1, got %f", sims[0][0])
	}
	if sims[0][1] != 0 {
		t.Fatalf("expected no token coverage to score 0, got %f", sims[0][1])
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	if got := cosine([]float64{1, 0}, []float64{1, 0}); got != 1 {
		t.Fatalf("expected identical vectors to score 1, got %f", got)
	}
	if got := cosine([]float64{1, 0}, []float64{0, 1}); got != 0 {
		t.Fatalf("expected orthogonal vectors to score 0, got %f", got)
	}
	if got := cosine([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Fatalf("expected zero-norm input to score 0, got %f", got)
	}
	if got := cosine([]float64{1}, []float64{1, 2}); got != 0 {
		t.Fatalf("expected mismatched lengths to score 0, got %f", got)
	}
}

type failingScorer struct{}

func (failingScorer) Name() string { return "embedding" }

func (failingScorer) Similarities(context.Context, []string, []string) ([][]float64, error) {
	return nil, &BackendError{Err: errors.New("connection refused")}
}

func TestScoreTopic_BackendErrorStaysTyped(t *testing.T) {
	t.Parallel()

	engine := NewEngine(failingScorer{}, zerolog.Nop())
	_, err := engine.ScoreTopic(context.Background(), rankedTopic(nil), Globals{}, []Candidate{
		{ID: "a", Topic: "solar", Title: "hit"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected backend error to survive wrapping, got %v", err)
	}
}
