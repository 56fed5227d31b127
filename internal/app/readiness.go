package app

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// readinessChecker reports whether the local resources the pipelines need
// are usable: the ledger directory and, for the exec backend, the git binary
type readinessChecker struct {
	ledgerDir string
	gitBinary string
}

// CheckReadiness implements system.ReadinessChecker
func (c *readinessChecker) CheckReadiness(_ context.Context) error {
	if err := os.MkdirAll(c.ledgerDir, 0750); err != nil {
		return fmt.Errorf("ledger directory unavailable: %w", err)
	}
	tmp, err := os.CreateTemp(c.ledgerDir, ".ready-")
	if err != nil {
		return fmt.Errorf("ledger directory not writable: %w", err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)

	if c.gitBinary != "" {
		if _, err := exec.LookPath(c.gitBinary); err != nil {
			return fmt.Errorf("git binary %q not found: %w", c.gitBinary, err)
		}
	}
	return nil
}

func newReadinessChecker(ledgerPath, gitBinary string) *readinessChecker {
	return &readinessChecker{
		ledgerDir: filepath.Dir(ledgerPath),
		gitBinary: gitBinary,
	}
}
