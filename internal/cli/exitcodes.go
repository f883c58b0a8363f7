// Package cli provides shared utilities for scriptcov CLI tools.
package cli

// Standard exit codes for scriptcov CLI tools.
//
// These follow Unix conventions:
//   - 0: Success
//   - 1: General error (parse failures, I/O errors, etc.)
//
// Tools with richer outcomes document their own codes: scovreport exits 1
// when coverage falls below -min and 2 on errors, matching its usage text.
const (
	// ExitOK indicates successful execution with no issues.
	ExitOK = 0

	// ExitError indicates a fatal error occurred (parse error, I/O error, etc.).
	ExitError = 1
)
