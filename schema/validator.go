// Package payloadschema validates paper item payloads against the embedded
// JSON Schema before they enter the working store.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed paper_item.schema.json
var paperItemSchemaJSON string

// PaperItem is the staging payload for one feed entry headed for a topic's
// working set.
type PaperItem struct {
	EntryID       string   `json:"entry_id"`
	FeedName      string   `json:"feed_name"`
	Title         string   `json:"title"`
	Link          string   `json:"link,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	DOI           string   `json:"doi,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidatePaperItemPayload checks the raw payload against the schema and the
// semantic rules the schema cannot express, returning the typed item.
func ValidatePaperItemPayload(payload json.RawMessage) (*PaperItem, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var item PaperItem
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&item); err != nil {
		return nil, err
	}

	return &item, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("paper_item.schema.json", strings.NewReader(paperItemSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("paper_item.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(item *PaperItem) error {
	if item == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(item.EntryID) == "" {
		return fmt.Errorf("entry_id must not be empty")
	}
	if strings.TrimSpace(item.FeedName) == "" {
		return fmt.Errorf("feed_name must not be empty")
	}
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}

	if item.Link != "" {
		if _, err := url.ParseRequestURI(strings.TrimSpace(item.Link)); err != nil {
			return fmt.Errorf("link is not a valid URI: %w", err)
		}
	}

	for i, author := range item.Authors {
		if strings.TrimSpace(author) == "" {
			return fmt.Errorf("authors[%d] must not be empty", i)
		}
	}

	return nil
}
