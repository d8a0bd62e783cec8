// Package buildcheck runs the external build and artifact-check tools under
// wall-clock timeouts and classifies their combined output as pass/fail.
//
// The external tools provide no reliable structured success/failure contract
// beyond exit status, so text classification supplements (never replaces)
// the exit code. This stage is advisory: a failure stops the package's
// release but mutates nothing.
package buildcheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Outcome is the classified result of a build+check run.
type Outcome struct {
	Passed bool

	// FirstDiagnostic is the first failure-indicating output line, kept for
	// operator visibility. Empty when Passed.
	FirstDiagnostic string
}

// failureTokens are the output substrings that mark a run as failed even
// when the tool exits zero. Matched case-insensitively per line.
var failureTokens = []string{
	"error",
	"failed",
	"traceback",
	"exception",
}

// Validator invokes the configured build and check commands for one package.
type Validator struct {
	BuildCommand string
	CheckCommand string
	BuildTimeout time.Duration
	CheckTimeout time.Duration
}

// Validate clears prior build artifacts, then runs the build command and the
// artifact-check command, each under its own deadline. A timed-out
// subprocess is killed and treated as a failure, never left running.
//
// The returned error covers only infrastructure problems (unparseable
// command strings); tool failures are expressed through Outcome.
func (v Validator) Validate(repo string) (Outcome, error) {
	if err := clearArtifacts(repo); err != nil {
		return Outcome{}, err
	}

	for _, step := range []struct {
		command string
		timeout time.Duration
	}{
		{v.BuildCommand, v.BuildTimeout},
		{v.CheckCommand, v.CheckTimeout},
	} {
		out, runErr := runTimed(repo, step.command, step.timeout)
		if diag, failed := classify(out, runErr); failed {
			return Outcome{Passed: false, FirstDiagnostic: diag}, nil
		}
		if runErr != nil && isInfraError(runErr) {
			return Outcome{}, runErr
		}
	}

	return Outcome{Passed: true}, nil
}

// clearArtifacts removes the dist/ directory so stale artifacts can never
// satisfy the check step.
func clearArtifacts(repo string) error {
	dist := filepath.Join(repo, "dist")
	if err := os.RemoveAll(dist); err != nil {
		return fmt.Errorf("clear %s: %w", dist, err)
	}
	return nil
}

// errBadCommand marks command-string parse failures, which are
// infrastructure errors rather than tool failures.
var errBadCommand = errors.New("bad command")

func isInfraError(err error) bool {
	return errors.Is(err, errBadCommand)
}

// runTimed executes command in repo under a wall-clock deadline and returns
// the combined output. On deadline the process is killed and a descriptive
// error returned alongside whatever output was captured.
func runTimed(repo, command string, timeout time.Duration) (string, error) {
	parts, err := splitShellArgs(strings.TrimSpace(command))
	if err != nil || len(parts) == 0 {
		return "", fmt.Errorf("%w: %q: %v", errBadCommand, command, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = repo
	out, runErr := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return string(out), fmt.Errorf("%q timed out after %s", command, timeout)
	}
	if runErr != nil {
		return string(out), fmt.Errorf("%q: %w", command, runErr)
	}
	return string(out), nil
}

// classify scans output for failure tokens and combines the result with the
// run error. Returns the first diagnostic line and whether the step failed.
func classify(output string, runErr error) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		for _, token := range failureTokens {
			if strings.Contains(lower, token) {
				return strings.TrimSpace(line), true
			}
		}
	}

	if runErr != nil && !isInfraError(runErr) {
		return runErr.Error(), true
	}
	return "", false
}
