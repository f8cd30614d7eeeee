package main

import (
	"os"

	"github.com/hupe1980/mascoordinator/cmd/mas-coordinator/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
