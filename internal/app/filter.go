package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"lit.watch/firehose/internal/cli"
	"lit.watch/firehose/internal/entry"
	"lit.watch/firehose/internal/feed"
	"lit.watch/firehose/internal/pipeline"
	"lit.watch/firehose/internal/ratelimit"
	payloadschema "lit.watch/firehose/schema"
)

func runFilter(args []string) int {
	fs := flag.NewFlagSet("filter", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Pipeline config path (overrides FIREHOSE_CONFIG)")
	topicsFlag := fs.String("topic", "", "Comma-separated topic names (default: all)")
	skipSnapshot := fs.Bool("skip-snapshot", false, "Skip pre-run store snapshots")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	env, err := bootstrap(ctx, envLoader, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.Close()

	source := feed.NewParser(ratelimit.New(feedPacerRPS(env.pcfg)))
	runner := pipeline.NewRunner(env.pcfg, env.stores, source, newScorerFactory(env.pcfg), env.logger)
	runner.Validator = validatePaperEntry

	report, err := runner.RunFilter(ctx, pipeline.FilterOptions{
		Topics:       splitTopicsFlag(*topicsFlag),
		SkipSnapshot: *skipSnapshot,
	})
	if err != nil {
		env.logger.Error().Err(err).Msg("filter run failed")
		fmt.Fprintf(os.Stderr, "Filter failed: %v\n", err)
		return 1
	}

	if err := printReport(report, outputFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print report: %v\n", err)
		return 1
	}
	if !report.Succeeded() {
		return 1
	}
	return 0
}

// validatePaperEntry round-trips the entry through the payload schema so the
// working store only ever receives well-formed items.
func validatePaperEntry(e *entry.Entry) error {
	item := payloadschema.PaperItem{
		EntryID:  e.ID,
		FeedName: e.FeedName,
		Title:    e.Title,
		Link:     e.Link,
		Summary:  e.Summary,
		Authors:  e.Authors,
		DOI:      e.DOI,
	}
	if !e.Published.IsZero() {
		item.PublishedDate = e.PublishedDate(time.Time{})
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = payloadschema.ValidatePaperItemPayload(payload)
	return err
}
