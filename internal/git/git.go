// Package git provides the version-control operations used by the release
// pipeline: plumbing queries, branch management, and the repository safety
// and change checks that gate every package.
//
// Every operation takes the repository path explicitly; nothing here depends
// on the process working directory.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNothingToCommit is returned by Commit when there are no changes to
// commit. Callers should treat this as non-fatal.
var ErrNothingToCommit = errors.New("nothing to commit")

// output runs git with args in repo and returns trimmed stdout.
func output(repo string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repo
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// combined runs git with args in repo and returns combined stdout+stderr.
// Errors include the trimmed output for operator visibility.
func combined(repo string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repo
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, text)
	}
	return text, nil
}

// IsWorkTree reports whether repo is inside a git working copy.
func IsWorkTree(repo string) bool {
	out, err := output(repo, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// GitDir returns the absolute path of the repository's .git directory.
func GitDir(repo string) (string, error) {
	return output(repo, "rev-parse", "--absolute-git-dir")
}

// CurrentBranch returns the name of the currently checked-out branch.
func CurrentBranch(repo string) (string, error) {
	return output(repo, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists reports whether branch exists as a local branch in repo.
func BranchExists(repo, branch string) (bool, error) {
	out, err := output(repo, "branch", "--list", branch)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// RemoteRefExists reports whether remote/branch is known locally (i.e. a
// fetch has seen it). Callers should Fetch first for fresh state.
func RemoteRefExists(repo, remote, branch string) bool {
	_, err := output(repo, "rev-parse", "--verify", "--quiet", remote+"/"+branch)
	return err == nil
}

// Checkout switches repo to branch.
func Checkout(repo, branch string) error {
	if _, err := combined(repo, "checkout", branch); err != nil {
		return fmt.Errorf("checkout %q: %w", branch, err)
	}
	return nil
}

// Commit stages all changes and creates a commit with message.
// Returns ErrNothingToCommit (non-fatal) if there is nothing to commit.
// All other errors are fatal.
func Commit(repo, message string) error {
	if _, err := combined(repo, "add", "-A"); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}

	out, err := combined(repo, "commit", "-m", message)
	if err != nil {
		if strings.Contains(out, "nothing to commit") || strings.Contains(out, "nothing added to commit") {
			return ErrNothingToCommit
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CommitPaths stages only the given paths and commits exactly them, leaving
// any other uncommitted or staged changes untouched. Returns
// ErrNothingToCommit (non-fatal) if none of the paths changed.
func CommitPaths(repo, message string, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	if _, err := combined(repo, args...); err != nil {
		return fmt.Errorf("stage %s: %w", strings.Join(paths, ", "), err)
	}

	args = append([]string{"commit", "-m", message, "--"}, paths...)
	out, err := combined(repo, args...)
	if err != nil {
		if strings.Contains(out, "nothing to commit") || strings.Contains(out, "no changes added to commit") {
			return ErrNothingToCommit
		}
		return fmt.Errorf("commit %s: %w", strings.Join(paths, ", "), err)
	}
	return nil
}

// Fetch updates the local view of the given remote refs. With no refs it
// fetches everything from remote.
func Fetch(repo, remote string, refs ...string) error {
	args := append([]string{"fetch", remote}, refs...)
	if _, err := combined(repo, args...); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

// Push pushes branch to remote. setUpstream additionally records the
// upstream tracking relationship (used on first push of a branch).
func Push(repo, remote, branch string, setUpstream bool) error {
	args := []string{"push", remote, branch}
	if setUpstream {
		args = []string{"push", "-u", remote, branch}
	}
	if _, err := combined(repo, args...); err != nil {
		return fmt.Errorf("push %s to %s: %w", branch, remote, err)
	}
	return nil
}

// Pull fast-forwards the current branch from remote/branch.
func Pull(repo, remote, branch string) error {
	if _, err := combined(repo, "pull", remote, branch); err != nil {
		return fmt.Errorf("pull %s/%s: %w", remote, branch, err)
	}
	return nil
}

// Rebase replays the current branch onto upstream (e.g. "origin/dev").
// On failure the interrupted rebase is aborted before the error is
// returned, so the repository is never left mid-rebase by this call.
func Rebase(repo, upstream string) error {
	if _, err := combined(repo, "rebase", upstream); err != nil {
		if _, abortErr := combined(repo, "rebase", "--abort"); abortErr != nil {
			return fmt.Errorf("rebase onto %s failed and abort failed: %w", upstream, abortErr)
		}
		return fmt.Errorf("rebase onto %s: %w", upstream, err)
	}
	return nil
}

// RevParse resolves ref to a commit SHA.
func RevParse(repo, ref string) (string, error) {
	return output(repo, "rev-parse", ref)
}

// MergeBase returns the best common ancestor of refs a and b.
func MergeBase(repo, a, b string) (string, error) {
	return output(repo, "merge-base", a, b)
}

// MergeTree performs a three-way merge simulation between ours and theirs
// using base, without touching the index or working tree. The returned text
// must be scanned for conflict markers — a clean exit alone does not signal
// a conflict-free merge.
func MergeTree(repo, base, ours, theirs string) (string, error) {
	out, err := output(repo, "merge-tree", base, ours, theirs)
	if err != nil {
		return "", fmt.Errorf("merge-tree: %w", err)
	}
	return out, nil
}

// AheadCount returns how many commits of branch are not on upstream
// (rev-list --count upstream..branch).
func AheadCount(repo, upstream, branch string) (int, error) {
	out, err := output(repo, "rev-list", "--count", upstream+".."+branch)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", out, err)
	}
	return n, nil
}

// CommitCount returns the total number of commits reachable from ref.
func CommitCount(repo, ref string) (int, error) {
	out, err := output(repo, "rev-list", "--count", ref)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", out, err)
	}
	return n, nil
}

// BehindCount returns how many commits of upstream are not on branch.
func BehindCount(repo, upstream, branch string) (int, error) {
	return AheadCount(repo, branch, upstream)
}

// UncommittedCount returns the number of paths reported by
// git status --porcelain (staged, unstaged, and untracked).
func UncommittedCount(repo string) (int, error) {
	out, err := output(repo, "status", "--porcelain")
	if err != nil {
		return 0, err
	}
	if out == "" {
		return 0, nil
	}
	return len(strings.Split(out, "\n")), nil
}

// ShowFile returns the contents of path at ref. The second return is false
// when the file does not exist at that ref; other failures return an error.
func ShowFile(repo, ref, path string) (string, bool, error) {
	out, err := combined(repo, "show", ref+":"+path)
	if err != nil {
		if strings.Contains(out, "does not exist") || strings.Contains(out, "exists on disk, but not in") {
			return "", false, nil
		}
		return "", false, err
	}
	return out, true, nil
}
