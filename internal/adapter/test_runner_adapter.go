package adapter

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// DefaultTestTimeout bounds a single go test invocation.
const DefaultTestTimeout = 10 * time.Minute

// TestRunnerAdapter abstracts test execution for the run command.
type TestRunnerAdapter interface {
	// RunGoTest runs 'go test' on target (a package pattern) in workDir with the
	// extra flags. Returns the combined stdout/stderr output and any error.
	RunGoTest(ctx context.Context, workDir, target string, flags ...string) (output string, err error)
}

// LocalTestRunnerAdapter provides a concrete implementation using os/exec.
type LocalTestRunnerAdapter struct {
	timeout time.Duration
}

// NewLocalTestRunnerAdapter constructs a LocalTestRunnerAdapter. A zero
// timeout falls back to DefaultTestTimeout.
func NewLocalTestRunnerAdapter(timeout time.Duration) *LocalTestRunnerAdapter {
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}

	return &LocalTestRunnerAdapter{
		timeout: timeout,
	}
}

// RunGoTest runs 'go test' in the given directory.
func (a *LocalTestRunnerAdapter) RunGoTest(ctx context.Context, workDir, target string, flags ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// one tracker per test binary observes one test at a time, so t.Parallel
	// tests must not overlap. Flags follow the package so test binary flags
	// such as -testify.m pass through.
	args := append([]string{"test", "-mod=mod", "-count=1", "-parallel=1", target}, flags...)

	// #nosec G204 - arguments are built from discovered test names
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String() + stderr.String()

	return output, err
}
