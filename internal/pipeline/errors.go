package pipeline

import "fmt"

// Kind buckets a pipeline failure by what has to change to fix it.
type Kind string

const (
	// KindConfig covers unreadable or invalid configuration, including an
	// uncompilable topic filter pattern.
	KindConfig Kind = "config"
	// KindBackend covers remote failures, feed fetches and the embedding
	// endpoint.
	KindBackend Kind = "backend"
	// KindData covers malformed payloads that fail validation.
	KindData Kind = "data"
	// KindStorage covers store read and write failures.
	KindStorage Kind = "storage"
)

// Error attaches a failure kind and the topic it occurred in, so a multi
// topic run can report per-topic outcomes without losing the cause chain.
type Error struct {
	Kind  Kind
	Topic string
	Err   error
}

func (e *Error) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("topic %s: %s: %v", e.Topic, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, topic string, err error) *Error {
	return &Error{Kind: kind, Topic: topic, Err: err}
}
