package main

import (
	"os"

	"custodia/cmd/custodia/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
