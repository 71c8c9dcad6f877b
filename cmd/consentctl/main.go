package main

import (
	"os"

	"pharmatrace/cmd/consentctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
