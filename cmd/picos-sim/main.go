// Command picos-sim reproduces the end-to-end scenarios spec.md §8
// describes (S1-S6), against the host simulated backend, so the
// scheduler's observable behavior can be exercised without real RP2040
// hardware. It is a diagnostic tool, not part of the kernel's public
// surface.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/picos-project/picos/internal/diag"
)

func main() {
	var only string
	flag.StringVar(&only, "scenario", "", "run only the named scenario (S1-S6); default runs all")
	flag.Parse()

	log := diag.New(diag.Config{})

	scenarios := []struct {
		name string
		run  func(*diag.Log) error
	}{
		{"S1", scenarioS1},
		{"S2", scenarioS2},
		{"S3", scenarioS3},
		{"S4", scenarioS4},
		{"S5", scenarioS5},
		{"S6", scenarioS6},
	}

	failed := false
	for _, s := range scenarios {
		if only != "" && s.name != only {
			continue
		}
		if err := s.run(log); err != nil {
			fmt.Fprintf(os.Stderr, "%s: FAIL: %v\n", s.name, err)
			failed = true
			continue
		}
		fmt.Printf("%s: PASS\n", s.name)
	}

	if failed {
		os.Exit(1)
	}
}
