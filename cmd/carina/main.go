package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/carina-lang/carina/internal/cli"
	"github.com/carina-lang/carina/internal/diag"
	"github.com/carina-lang/carina/internal/state"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor distinguishes a user/config error (bad .crn, failed plan)
// from a provider/runtime failure (a provider error, or state lock
// contention), per spec.md §6's exit code contract: 0 success, 1 user
// error, 2 provider/runtime error.
func exitCodeFor(err error) int {
	var provErr *diag.ProviderError
	var stateErr *diag.StateError
	var lockedErr *state.LockedError
	if errors.As(err, &provErr) {
		return 2
	}
	if errors.As(err, &lockedErr) {
		return 2
	}
	if errors.As(err, &stateErr) && stateErr.Kind == "locked" {
		return 2
	}
	return 1
}
