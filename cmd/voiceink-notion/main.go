package main

import (
	"os"

	"github.com/rcliao/voiceink-notion/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
