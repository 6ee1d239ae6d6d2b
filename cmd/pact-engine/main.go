package main

import (
	"os"

	"github.com/form3tech-oss/pact-engine/internal/app/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
