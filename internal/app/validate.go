package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"lit.watch/firehose/internal/cli"
	"lit.watch/firehose/internal/config"
	"lit.watch/firehose/internal/filter"
	payloadschema "lit.watch/firehose/schema"
)

// runValidate checks the pipeline config and every topic config, including a
// compile of each topic's filter pattern, and optionally validates payload
// JSON files against the paper item schema.
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Pipeline config path (overrides FIREHOSE_CONFIG)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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
		fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
		return 1
	}
	fmt.Printf("OK %s\n", path)

	names, err := pcfg.AvailableTopics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list topics: %v\n", err)
		return 1
	}

	failures := 0
	for _, name := range names {
		topic, err := pcfg.LoadTopic(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "INVALID topic %s: %v\n", name, err)
			failures++
			continue
		}
		if _, err := filter.Compile(topic, pcfg.PriorityJournals); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID topic %s: %v\n", name, err)
			failures++
			continue
		}
		fmt.Printf("OK topic %s\n", name)
	}

	for _, payloadPath := range fs.Args() {
		raw, err := os.ReadFile(payloadPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", payloadPath, err)
			failures++
			continue
		}
		if _, err := payloadschema.ValidatePaperItemPayload(json.RawMessage(raw)); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", payloadPath, err)
			failures++
			continue
		}
		fmt.Printf("OK %s\n", payloadPath)
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d validation failure(s)\n", failures)
		return 1
	}
	return 0
}
