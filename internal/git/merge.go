package git

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMergeConflicted is returned by MergeNoCommit when the merge stopped on
// conflicts. The caller decides whether to resolve or abort.
var ErrMergeConflicted = errors.New("merge conflicted")

// MergeNoCommit merges branch into the current branch without creating a
// commit. A conflicted merge returns ErrMergeConflicted and leaves the
// conflict state in place for resolution or MergeAbort.
func MergeNoCommit(repo, branch string) error {
	out, err := combined(repo, "merge", "--no-commit", "--no-ff", branch)
	if err != nil {
		if strings.Contains(out, "CONFLICT") || strings.Contains(out, "Automatic merge failed") {
			return ErrMergeConflicted
		}
		return fmt.Errorf("merge %q: %w", branch, err)
	}
	return nil
}

// ConflictedFiles lists the paths currently in an unmerged state.
func ConflictedFiles(repo string) ([]string, error) {
	out, err := output(repo, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CheckoutTheirs resolves a conflicted path by taking the incoming branch's
// version.
func CheckoutTheirs(repo, path string) error {
	if _, err := combined(repo, "checkout", "--theirs", "--", path); err != nil {
		return fmt.Errorf("checkout --theirs %q: %w", path, err)
	}
	if _, err := combined(repo, "add", "--", path); err != nil {
		return fmt.Errorf("stage resolved %q: %w", path, err)
	}
	return nil
}

// MergeAbort discards an in-progress merge, restoring the pre-merge state.
func MergeAbort(repo string) error {
	if _, err := combined(repo, "merge", "--abort"); err != nil {
		return fmt.Errorf("merge --abort: %w", err)
	}
	return nil
}
