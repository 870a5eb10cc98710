package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/cli"
	"lit.watch/firehose/internal/config"
	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/logging"
	"lit.watch/firehose/internal/pipeline"
	"lit.watch/firehose/internal/ranking"
	"lit.watch/firehose/internal/ratelimit"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

// runtimeEnv bundles everything a store-touching command needs.
type runtimeEnv struct {
	cfg    *config.Config
	pcfg   *config.PipelineConfig
	logger zerolog.Logger
	stores *db.Stores
}

func (r *runtimeEnv) Close() {
	if r != nil {
		r.stores.Close()
	}
}

// bootstrap loads env and config, builds the logger, and opens the three
// store files. configOverride, when non-empty, replaces the configured
// pipeline config path.
func bootstrap(ctx context.Context, envLoader *cli.EnvLoader, configOverride string) (*runtimeEnv, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	configPath := cfg.ConfigPath
	if strings.TrimSpace(configOverride) != "" {
		configPath = strings.TrimSpace(configOverride)
	}
	pcfg, err := config.LoadPipeline(configPath)
	if err != nil {
		return nil, err
	}

	stores, err := db.OpenStores(ctx, cfg, pcfg)
	if err != nil {
		return nil, err
	}

	return &runtimeEnv{
		cfg:    cfg,
		pcfg:   pcfg,
		logger: logger,
		stores: stores,
	}, nil
}

// newScorerFactory shares one embedding client, and its rate pacer, across
// every topic in a run.
func newScorerFactory(pcfg *config.PipelineConfig) pipeline.ScorerFactory {
	client := ranking.NewEmbeddingClient(pcfg.Embedding, ratelimit.New(pcfg.Embedding.RPS))
	return func(topic *config.TopicConfig) (ranking.Scorer, error) {
		return ranking.NewScorer(topic.Ranking.Method, pcfg.Embedding, client)
	}
}

// feedPacerRPS picks the strictest positive per-feed rate so the shared
// fetcher never exceeds any feed's configured limit.
func feedPacerRPS(pcfg *config.PipelineConfig) float64 {
	rps := 0.0
	for _, feedCfg := range pcfg.EnabledFeeds() {
		if feedCfg.RPS > 0 && (rps == 0 || feedCfg.RPS < rps) {
			rps = feedCfg.RPS
		}
	}
	if rps == 0 {
		rps = 1
	}
	return rps
}

func splitTopicsFlag(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	topics := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}
	return topics
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func confirmDangerousAction(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", strings.TrimSpace(prompt))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func printReport(report *pipeline.Report, format string) error {
	if format == outputFormatJSON {
		return printJSON(report)
	}

	fmt.Printf("run_id=%s stage=%s duration=%s\n",
		report.RunID, report.Stage, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	for _, snapshot := range report.Snapshots {
		fmt.Printf("snapshot=%s\n", snapshot)
	}

	headers := []string{"TOPIC", "FETCHED", "FRESH", "MATCHED", "ARCHIVED", "RANKED", "SELECTED", "ERROR"}
	rows := make([][]string, 0, len(report.Topics))
	for _, topic := range report.Topics {
		rows = append(rows, []string{
			topic.Topic,
			fmt.Sprintf("%d", topic.Fetched),
			fmt.Sprintf("%d", topic.Fresh),
			fmt.Sprintf("%d", topic.Matched),
			fmt.Sprintf("%d", topic.Archived),
			fmt.Sprintf("%d", topic.Ranked),
			fmt.Sprintf("%d", topic.Selected),
			topic.ErrText,
		})
	}
	return writeTable(headers, rows)
}
