package ranking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"lit.watch/firehose/internal/config"
	"lit.watch/firehose/internal/ratelimit"
)

// EmbeddingClient talks to an HTTP embedding service. The service is an
// external collaborator; when it is unreachable the caller degrades to
// skipped scoring rather than failing the run.
type EmbeddingClient struct {
	client   *resty.Client
	endpoint string
	model    string
	pacer    *ratelimit.Pacer
}

type embedRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

func NewEmbeddingClient(cfg config.EmbeddingConfig, pacer *ratelimit.Pacer) *EmbeddingClient {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.TimeoutS > 0 {
		client.SetTimeout(time.Duration(cfg.TimeoutS) * time.Second)
	}

	return &EmbeddingClient{
		client:   client,
		endpoint: strings.TrimSpace(cfg.Endpoint),
		model:    strings.TrimSpace(cfg.Model),
		pacer:    pacer,
	}
}

// Embed returns one normalized-order vector per input text.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is not configured")
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var parsed embedResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(embedRequest{Model: c.model, Input: texts}).
		SetResult(&parsed).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		vectors = make([][]float64, len(parsed.Data))
		for _, row := range parsed.Data {
			if row.Index < 0 || row.Index >= len(parsed.Data) {
				return nil, fmt.Errorf("embedding response index %d out of range", row.Index)
			}
			vectors[row.Index] = row.Embedding
		}
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding response count mismatch: requested=%d returned=%d", len(texts), len(vectors))
	}
	return vectors, nil
}
