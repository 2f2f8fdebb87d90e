package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonwraymond/toolify/internal/cli"
)

// Set via -ldflags "-X main.version=..."
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	err := cli.Execute(context.Background(), cli.VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "toolify:", err)
		os.Exit(1)
	}
}
