package main

import (
	"os"

	"github.com/KevTale/hakai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
