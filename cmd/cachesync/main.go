package main

import (
	"fmt"
	"os"

	"github.com/gyaneshwarpardhi/cachesync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cachesync:", err)
		os.Exit(1)
	}
}
