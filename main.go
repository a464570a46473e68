package main

import (
	"os"

	"github.com/bimmerbailey/dmask/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
