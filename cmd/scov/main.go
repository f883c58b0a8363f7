// Command scov instruments JavaScript sources for line coverage.
package main

import (
	"os"

	"github.com/scriptcov/scriptcov/internal/cmd/scov"
)

func main() {
	os.Exit(scov.Run(os.Args[1:]))
}
