package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "filter":
		return runFilter(args[1:])
	case "rank":
		return runRank(args[1:])
	case "backup":
		return runBackup(args[1:])
	case "purge":
		return runPurge(args[1:])
	case "topics":
		return runTopics(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "firehose CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  firehose <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify store files and configuration")
	fmt.Fprintln(os.Stderr, "  filter    Fetch feeds and stage topic matches")
	fmt.Fprintln(os.Stderr, "  rank      Score staged entries and promote the best")
	fmt.Fprintln(os.Stderr, "  backup    Snapshot the store files")
	fmt.Fprintln(os.Stderr, "  purge     Delete recently published entries, or reset all stores")
	fmt.Fprintln(os.Stderr, "  topics    List configured topics")
	fmt.Fprintln(os.Stderr, "  validate  Validate configuration and payload JSON")
	fmt.Fprintln(os.Stderr, "  serve     Start the read-only API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"firehose <command> -h\" for command-specific flags.")
}
