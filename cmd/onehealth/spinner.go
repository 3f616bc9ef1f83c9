package main

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// withSpinner shows a stderr spinner while fn runs.
func withSpinner(enabled bool, suffix string, fn func() error) error {
	if !enabled {
		return fn()
	}
	loader := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	loader.Color("yellow") //nolint:errcheck
	loader.Suffix = " " + suffix
	loader.Start()
	defer loader.Stop()
	return fn()
}
