package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"lit.watch/firehose/internal/backup"
	"lit.watch/firehose/internal/cli"
)

func runBackup(args []string) int {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	configPath := fs.String("config", "", "Pipeline config path (overrides FIREHOSE_CONFIG)")
	keep := fs.Int("keep", 0, "Snapshots to keep per store (default: config value)")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")

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

	retention := env.pcfg.Defaults.BackupKeep
	if *keep > 0 {
		retention = *keep
	}

	manager := backup.NewManager(env.stores, retention, env.logger)
	paths, err := manager.SnapshotAll(ctx)
	if err != nil {
		env.logger.Error().Err(err).Msg("backup failed")
		fmt.Fprintf(os.Stderr, "Backup failed: %v\n", err)
		return 1
	}

	for _, path := range paths {
		fmt.Printf("snapshot=%s\n", path)
	}
	return 0
}
