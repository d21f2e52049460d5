package rules

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Install runs the three-step installation protocol from spec.md §4.6:
// write to a scratch file, syntax-check, then either print-and-exit (in
// dry-run mode) or apply. Apply failures are logged, not returned, so
// the caller's next snapshot gets another chance.
func (s *RuleSynthesizer) Install(ctx context.Context, program string, dryRun bool, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	f, err := os.CreateTemp("", "neti-rules-*.restore")
	if err != nil {
		return fmt.Errorf("creating scratch file: %w", err)
	}
	scratchPath := f.Name()
	defer os.Remove(scratchPath)

	if _, err := f.WriteString(program); err != nil {
		f.Close()
		return fmt.Errorf("writing scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing scratch file: %w", err)
	}

	if out, err := exec.CommandContext(ctx, s.restorePath, "--test", scratchPath).CombinedOutput(); err != nil {
		log.WithError(err).WithField("output", string(out)).Error("rule program failed syntax check, abandoning synthesis")
		return nil
	}

	if dryRun {
		fmt.Println(program)
		os.Exit(0)
	}

	if out, err := exec.CommandContext(ctx, s.restorePath, scratchPath).CombinedOutput(); err != nil {
		log.WithError(err).WithField("output", string(out)).Error("applying rule program failed, will retry on next snapshot")
	}
	return nil
}
