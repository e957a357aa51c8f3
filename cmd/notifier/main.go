package main

import (
	"os"

	"github.com/spec-kit/expiry-notifier/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
