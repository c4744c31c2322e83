package main

import (
	"os"

	"github.com/grindolympiads/examgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
