package main

import (
	"os"

	"github.com/coin-pulse/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
