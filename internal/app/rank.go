package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"lit.watch/firehose/internal/cli"
	"lit.watch/firehose/internal/pipeline"
)

func runRank(args []string) int {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Pipeline config path (overrides FIREHOSE_CONFIG)")
	topicsFlag := fs.String("topic", "", "Comma-separated topic names (default: all)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 15*time.Minute, "Command timeout")

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

	runner := pipeline.NewRunner(env.pcfg, env.stores, nil, newScorerFactory(env.pcfg), env.logger)

	report, err := runner.RunRank(ctx, pipeline.RankOptions{
		Topics: splitTopicsFlag(*topicsFlag),
	})
	if err != nil {
		env.logger.Error().Err(err).Msg("rank run failed")
		fmt.Fprintf(os.Stderr, "Rank failed: %v\n", err)
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
