package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"lit.watch/firehose/internal/cli"
	"lit.watch/firehose/internal/config"
)

func runTopics(args []string) int {
	fs := flag.NewFlagSet("topics", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Pipeline config path (overrides FIREHOSE_CONFIG)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

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

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	path := cfg.ConfigPath
	if strings.TrimSpace(*configPath) != "" {
		path = strings.TrimSpace(*configPath)
	}
	pcfg, err := config.LoadPipeline(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	names, err := pcfg.AvailableTopics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list topics: %v\n", err)
		return 1
	}

	type topicRow struct {
		Name    string   `json:"name"`
		Feeds   []string `json:"feeds"`
		Method  string   `json:"method"`
		Archive bool     `json:"archive"`
		Error   string   `json:"error,omitempty"`
	}

	items := make([]topicRow, 0, len(names))
	for _, name := range names {
		row := topicRow{Name: name}
		topic, err := pcfg.LoadTopic(name)
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Feeds = topic.Feeds
			row.Method = topic.Ranking.Method
			if row.Method == "" {
				row.Method = "embedding"
			}
			row.Archive = topic.Output.Archive
		}
		items = append(items, row)
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"items": items}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to print topics: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Name,
			strings.Join(item.Feeds, ","),
			item.Method,
			fmt.Sprintf("%t", item.Archive),
			item.Error,
		})
	}
	if err := writeTable([]string{"TOPIC", "FEEDS", "METHOD", "ARCHIVE", "ERROR"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print topics: %v\n", err)
		return 1
	}
	return 0
}
