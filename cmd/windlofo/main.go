// Command windlofo ranks wind-farm forecast features by leave-one-feature-out importance.
package main

import (
	"os"

	"github.com/YuminosukeSato/windlofo/cmd/windlofo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
