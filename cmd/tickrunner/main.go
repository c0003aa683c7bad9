package main

import (
	"os"

	"github.com/daydemir/tickrunner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
