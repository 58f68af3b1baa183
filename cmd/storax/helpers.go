package main

import (
	"fmt"
	"os"

	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/engine"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// PolicyFlag maps a short name to a types.ConflictPolicy for CLI flags.
type PolicyFlag string

func (f PolicyFlag) resolve() (types.ConflictPolicy, error) {
	switch f {
	case "", "fail":
		return types.PolicyFail, nil
	case "replace":
		return types.PolicyReplace, nil
	case "rename":
		return types.PolicyRenameNew, nil
	case "rename-manual":
		return types.PolicyRenameManual, nil
	default:
		return 0, fmt.Errorf("unknown conflict policy %q", f)
	}
}

var colorEnabled = isatty.IsTerminal(os.Stderr.Fd())

func warnf(format string, args ...any) {
	if colorEnabled {
		color.New(color.FgYellow).Fprintf(os.Stderr, format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

func okf(format string, args ...any) {
	if colorEnabled {
		color.New(color.FgHiGreen).Fprintf(os.Stderr, format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

// drainProgress streams handle's Progress channel to stderr as a
// percentage, coloring the final line by outcome (§6 transferProgress).
func drainProgress(handle *engine.Handle) error {
	if !handle.Adaptive {
		for p := range handle.Progress {
			if p.Err != nil {
				return p.Err
			}
		}
		okf("done\n")
		return nil
	}

	fmt.Fprintf(os.Stderr, "job %s\n", handle.JobID)
	var last engine.Progress
	for p := range handle.Progress {
		last = p
		pct := 0.0
		if p.Total > 0 {
			pct = float64(p.Copied) / float64(p.Total) * 100
		}
		fmt.Fprintf(os.Stderr, "\r%6.2f%% (%d/%d)", pct, p.Copied, p.Total)
	}
	fmt.Fprintln(os.Stderr)
	if last.Err != nil {
		warnf("failed: %v\n", last.Err)
		return last.Err
	}
	okf("done\n")
	return nil
}
