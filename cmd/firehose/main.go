package main

import (
	"os"

	"lit.watch/firehose/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
