package main

import (
	"os"

	"github.com/spigell/grant-ranker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
