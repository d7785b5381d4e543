package main

import (
	"fmt"
	"os"

	"github.com/neuroplatform/simforms/internal/cli"
)

func main() {
	if err := cli.NewRootCmd("simforms").Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
