// Package requirements synchronizes a package's dependency pin file with
// the exact local versions of the sibling packages about to be released.
//
// The set of pinned dependencies is fixed by the package table:
// synchronization only corrects existing pin lines, it never adds new ones.
// A required pin that is missing from the manifest is a configuration error,
// not something to infer.
package requirements

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/m3trik/releasechain/internal/git"
)

// InvalidError reports a pin that could not be synchronized: either the
// dependency has no resolvable local version, or the manifest has no pin
// line for it.
type InvalidError struct {
	Dependency string
	Reason     string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("pin for %s: %s", e.Dependency, e.Reason)
}

// CommitMessage is used for pin-sync commits. The [skip ci] marker instructs
// the downstream CI not to re-trigger on this commit.
const CommitMessage = "chore: sync dependency pins [skip ci]"

// pinLine matches a requirement line and captures the package name. Mirrors
// the tolerance of the original requirements parser: comments and blank
// lines pass through untouched.
var pinLine = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*==`)

// Sync rewrites repo's requirements.txt so that every dependency in pins
// declares exactly the given version, then commits the change on the
// currently checked-out branch (the caller must be on the development
// branch). Returns whether anything changed.
//
// If no line changed, no commit is made. If a required dependency has no
// pin line, an *InvalidError is returned and nothing is written.
// When dryRun is set the rewrite is computed but neither written nor
// committed.
func Sync(repo string, pins map[string]string, dryRun bool) (bool, error) {
	path := filepath.Join(repo, git.PinFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", git.PinFile, err)
	}

	rewritten, changed, err := rewrite(string(data), pins)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if dryRun {
		return true, nil
	}

	if err := atomicWrite(path, []byte(rewritten)); err != nil {
		return false, err
	}
	// Commit only the manifest: unrelated operator changes must not ride
	// along under the [skip ci] marker.
	if err := git.CommitPaths(repo, CommitMessage, git.PinFile); err != nil {
		if errors.Is(err, git.ErrNothingToCommit) {
			return false, nil
		}
		return false, fmt.Errorf("commit pin sync: %w", err)
	}
	return true, nil
}

// rewrite applies pins to the manifest content. Every pinned dependency
// must already have a `dep==version` line; the first missing one aborts
// with an *InvalidError.
func rewrite(content string, pins map[string]string) (string, bool, error) {
	lines := strings.Split(content, "\n")
	seen := make(map[string]bool, len(pins))
	changed := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := pinLine.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		name := m[1]
		version, ok := pins[name]
		if !ok {
			continue
		}
		seen[name] = true
		want := name + "==" + version
		if trimmed != want {
			lines[i] = want
			changed = true
		}
	}

	for name, version := range pins {
		if version == "" {
			return "", false, &InvalidError{Dependency: name, Reason: "no resolvable local version"}
		}
		if !seen[name] {
			return "", false, &InvalidError{Dependency: name, Reason: "no pin line in " + git.PinFile}
		}
	}

	return strings.Join(lines, "\n"), changed, nil
}

// atomicWrite writes data to path via a temp file and rename, so a crash
// mid-write never leaves a truncated manifest.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup on rename failure
		return fmt.Errorf("rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}
