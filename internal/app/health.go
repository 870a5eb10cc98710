package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"lit.watch/firehose/internal/cli"
	"lit.watch/firehose/internal/dedup"
	"lit.watch/firehose/internal/history"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Pipeline config path (overrides FIREHOSE_CONFIG)")
	timeout := fs.Duration("timeout", 15*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	dedupCount, err := dedup.NewStore(env.stores.Dedup, env.logger).Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dedup store check failed: %v\n", err)
		return 1
	}
	historyCount, err := history.NewArchive(env.stores.History, env.logger).Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "History store check failed: %v\n", err)
		return 1
	}

	var workingCount int64
	if err := env.stores.Working.QueryRow(ctx, `SELECT COUNT(*) FROM entries`).Scan(&workingCount); err != nil {
		fmt.Fprintf(os.Stderr, "Working store check failed: %v\n", err)
		return 1
	}

	topics, err := env.pcfg.AvailableTopics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Topic listing failed: %v\n", err)
		return 1
	}

	fmt.Printf("ok dedup_entries=%d matched_entries=%d working_entries=%d topics=%d feeds=%d\n",
		dedupCount, historyCount, workingCount, len(topics), len(env.pcfg.EnabledFeeds()))
	return 0
}
