// Command scovreport renders coverage reports from instrumented-run
// counter dumps.
package main

import (
	"os"

	"github.com/scriptcov/scriptcov/internal/cmd/scovreport"
)

func main() {
	os.Exit(scovreport.Run(os.Args[1:]))
}
