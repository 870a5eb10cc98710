package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lit.watch/firehose/internal/backup"
	"lit.watch/firehose/internal/cli"
)

func runPurge(args []string) int {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Pipeline config path (overrides FIREHOSE_CONFIG)")
	all := fs.Bool("all", false, "Reset every store to an empty schema")
	force := fs.Bool("force", false, "Skip confirmation prompt")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	days := 0
	if !*all {
		if fs.NArg() != 1 {
			printPurgeUsage()
			return 2
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(fs.Arg(0)))
		if err != nil || parsed <= 0 {
			fmt.Fprintln(os.Stderr, "purge days must be a positive integer")
			return 2
		}
		days = parsed
	} else if fs.NArg() != 0 {
		printPurgeUsage()
		return 2
	}

	if !*force {
		prompt := fmt.Sprintf("Delete entries published in the last %d day(s) from all stores?", days)
		if *all {
			prompt = "Reset ALL stores to empty schemas? This deletes every entry."
		}
		ok, err := confirmDangerousAction(prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read confirmation: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Cancelled")
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	env, err := bootstrap(ctx, envLoader, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer env.Close()

	manager := backup.NewManager(env.stores, env.pcfg.Defaults.BackupKeep, env.logger)

	if *all {
		if err := manager.PurgeAll(ctx); err != nil {
			env.logger.Error().Err(err).Msg("purge --all failed")
			fmt.Fprintf(os.Stderr, "Purge failed: %v\n", err)
			return 1
		}
		fmt.Println("all stores reset")
		return 0
	}

	deleted, err := manager.PurgeRecent(ctx, days)
	if err != nil {
		env.logger.Error().Err(err).Msg("purge failed")
		fmt.Fprintf(os.Stderr, "Purge failed: %v\n", err)
		return 1
	}

	for stem, count := range deleted {
		fmt.Printf("store=%s deleted=%d\n", stem, count)
	}
	return 0
}

func printPurgeUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  firehose purge <days> [--force] [--env .env]")
	fmt.Fprintln(os.Stderr, "  firehose purge --all [--force] [--env .env]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "purge <days> deletes entries published within the last <days> days,")
	fmt.Fprintln(os.Stderr, "today included, so a bad recent run can be re-fetched and re-processed.")
}
