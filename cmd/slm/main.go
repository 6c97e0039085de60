package main

import (
	"os"

	"github.com/xupit3r/slm/cmd/slm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
