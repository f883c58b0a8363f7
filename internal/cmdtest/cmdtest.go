// Package cmdtest provides a testscript-based test harness for the
// scriptcov CLI tools.
//
// It uses txtar format test files to specify input files and expected
// outputs, making it easy to write comprehensive CLI tests.
//
// Example test file (testdata/scov/basic.txtar):
//
//	# Instrument a file and check the preamble
//	exec scov -manifest '' app.js
//	stdout '__scriptcov__'
//
//	-- app.js --
//	var x = 1;
package cmdtest

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/scriptcov/scriptcov/internal/cmd/scov"
	"github.com/scriptcov/scriptcov/internal/cmd/scovreport"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			// Keep config discovery inside the script workdir.
			env.Setenv("SCRIPTCOV_CONFIG", "")
			return nil
		},
	})
}

// Main is the TestMain function that should be called from test files.
// It sets up the CLI tools as testscript commands.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"scov":       wrapRun(scov.Run),
		"scovreport": wrapRun(scovreport.Run),
	}))
}

// wrapRun wraps a Run(args []string) int function to func() int for testscript.
// The args are taken from os.Args[1:].
func wrapRun(run func(args []string) int) func() int {
	return func() int {
		return run(os.Args[1:])
	}
}
