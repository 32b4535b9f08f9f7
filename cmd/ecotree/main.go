package main

import (
	"os"

	"github.com/ecotree-app/ecotree/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
