package pipeline

import (
	"time"

	"github.com/google/uuid"

	"lit.watch/firehose/internal/globaltime"
)

// TopicReport is the outcome of one topic within a run. A topic either
// completes with counts or fails with Err; one topic's failure never aborts
// the others.
type TopicReport struct {
	Topic    string `json:"topic"`
	Fetched  int    `json:"fetched"`
	Fresh    int    `json:"fresh"`
	Matched  int    `json:"matched"`
	Archived int    `json:"archived"`
	Ranked   int    `json:"ranked"`
	Selected int    `json:"selected"`
	Err      error  `json:"-"`
	ErrText  string `json:"error,omitempty"`
}

// Report is the outcome of one pipeline run across all its topics.
type Report struct {
	RunID      string        `json:"run_id"`
	Stage      string        `json:"stage"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Snapshots  []string      `json:"snapshots,omitempty"`
	Topics     []TopicReport `json:"topics"`
}

func newReport(stage string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Stage:     stage,
		StartedAt: globaltime.UTC(),
	}
}

func (r *Report) finish() *Report {
	r.FinishedAt = globaltime.UTC()
	for i := range r.Topics {
		if r.Topics[i].Err != nil {
			r.Topics[i].ErrText = r.Topics[i].Err.Error()
		}
	}
	return r
}

// FailedTopics lists the topics that ended in error.
func (r *Report) FailedTopics() []string {
	var failed []string
	for _, topic := range r.Topics {
		if topic.Err != nil {
			failed = append(failed, topic.Topic)
		}
	}
	return failed
}

// Succeeded reports whether every topic completed.
func (r *Report) Succeeded() bool {
	return len(r.FailedTopics()) == 0
}
