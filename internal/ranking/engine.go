package ranking

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/config"
)

// Candidate is the slice of a working-store row the engine needs.
type Candidate struct {
	ID       string
	Topic    string
	FeedName string
	Title    string
	Summary  string
	Authors  []string
}

// Scored is one ranking result. Reasoning is a reconstructible trace of
// which terms and boosts fired, not just the final number.
type Scored struct {
	ID        string
	Topic     string
	Score     float64
	Reasoning string
}

// Globals carries the cross-topic ranking knobs from config.yaml.
type Globals struct {
	PriorityJournalNames map[string]struct{}
	PriorityJournalBoost float64
	NegativePenalty      float64
}

type Engine struct {
	scorer Scorer
	logger zerolog.Logger
}

func NewEngine(scorer Scorer, logger zerolog.Logger) *Engine {
	return &Engine{
		scorer: scorer,
		logger: logger,
	}
}

// ScoreTopic scores every candidate against the topic's query phrases and
// applies the configured adjustments. The whole candidate set is scored in
// one call because top-N selection downstream needs all scores.
func (e *Engine) ScoreTopic(
	ctx context.Context,
	topic *config.TopicConfig,
	globals Globals,
	candidates []Candidate,
) ([]Scored, error) {
	phrases := topic.Ranking.QueryPhrases()
	if len(phrases) == 0 {
		return nil, fmt.Errorf("topic %q has no ranking query", topic.Name)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, candidate := range candidates {
		texts[i] = scoredText(candidate, topic.Ranking.UseSummary)
	}

	sims, err := e.scorer.Similarities(ctx, phrases, texts)
	if err != nil {
		return nil, fmt.Errorf("topic %q: compute similarities: %w", topic.Name, err)
	}
	if len(sims) != len(phrases) {
		return nil, &BackendError{Err: fmt.Errorf("topic %q: similarity rows mismatch: phrases=%d rows=%d", topic.Name, len(phrases), len(sims))}
	}

	aggregate := strings.ToLower(strings.TrimSpace(topic.Ranking.Aggregate))
	if aggregate == "" {
		aggregate = "max"
	}

	negativePenalty := topic.Ranking.NegativePenalty
	if negativePenalty == 0 {
		negativePenalty = globals.NegativePenalty
	}
	negativeTerms := lowerTrimmed(topic.Ranking.NegativeQueries)

	results := make([]Scored, 0, len(candidates))
	for i, candidate := range candidates {
		base := aggregateSims(sims, i, aggregate)
		score := base

		var trace strings.Builder
		fmt.Fprintf(&trace, "%s base=%.4f (%s over %d phrase", e.scorer.Name(), base, aggregate, len(phrases))
		if len(phrases) != 1 {
			trace.WriteString("s")
		}
		trace.WriteString(")")

		if term := firstNegativeHit(candidate, negativeTerms); term != "" {
			score -= negativePenalty
			fmt.Fprintf(&trace, "; negative %q -%.2f", term, negativePenalty)
		}
		if topic.Ranking.PriorityAuthorBoost > 0 &&
			HasPreferredAuthor(candidate.Authors, topic.Ranking.PreferredAuthors) {
			score += topic.Ranking.PriorityAuthorBoost
			fmt.Fprintf(&trace, "; preferred author +%.2f", topic.Ranking.PriorityAuthorBoost)
		}
		if globals.PriorityJournalBoost > 0 {
			if _, ok := globals.PriorityJournalNames[strings.TrimSpace(candidate.FeedName)]; ok {
				score += globals.PriorityJournalBoost
				fmt.Fprintf(&trace, "; priority journal +%.2f", globals.PriorityJournalBoost)
			}
		}

		score = clamp01(score)
		fmt.Fprintf(&trace, "; final=%.4f", score)

		results = append(results, Scored{
			ID:        candidate.ID,
			Topic:     candidate.Topic,
			Score:     score,
			Reasoning: trace.String(),
		})
	}
	return results, nil
}

func scoredText(candidate Candidate, useSummary bool) string {
	title := strings.TrimSpace(candidate.Title)
	if !useSummary {
		return title
	}
	summary := strings.TrimSpace(candidate.Summary)
	switch {
	case summary == "":
		return title
	case title == "":
		return summary
	default:
		return title + "\n\n" + summary
	}
}

func aggregateSims(sims [][]float64, column int, aggregate string) float64 {
	if aggregate == "mean" {
		var sum float64
		for _, row := range sims {
			sum += row[column]
		}
		return sum / float64(len(sims))
	}

	best := 0.0
	for _, row := range sims {
		if row[column] > best {
			best = row[column]
		}
	}
	return best
}

func firstNegativeHit(candidate Candidate, terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	blob := strings.ToLower(candidate.Title + " " + candidate.Summary)
	for _, term := range terms {
		if strings.Contains(blob, term) {
			return term
		}
	}
	return ""
}

func lowerTrimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.ToLower(strings.TrimSpace(value)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
