package publish

import (
	"errors"
	"fmt"

	"github.com/m3trik/releasechain/internal/git"
	"github.com/m3trik/releasechain/internal/log"
)

// ErrUnexpectedConflict is returned by MergeDirect when a conflicting file
// is not on the auto-resolution allow-list. The merge has already been
// aborted when this is returned.
var ErrUnexpectedConflict = errors.New("unexpected merge conflict")

// mergeCommitMessage records an auto-resolved promotion merge.
func mergeCommitMessage(dev string) string {
	return fmt.Sprintf("merge %s: promote release", dev)
}

// MergeDirect promotes the development branch to mainline in-repo: checks
// out mainline, pulls the latest, merges the remote development branch,
// pushes, and returns to the development branch.
//
// The merge source is the freshly fetched remote development ref, not the
// local branch: a CI bot may have pushed between an earlier stage and this
// call, and a stale local branch would silently drop those commits from the
// promotion. It also keeps the merge aligned with the ref the conflict probe
// classified. The local branch is used only when the remote ref does not
// exist (a branch never pushed).
//
// Conflicts are auto-resolved only by preferring the development branch's
// version of allow-listed files (the same list the probe classifies with).
// Any conflict outside the allow-list aborts the merge and returns
// ErrUnexpectedConflict.
func MergeDirect(repo string, opts Options) error {
	if opts.DryRun {
		log.Info(fmt.Sprintf("dry-run: would merge %s into %s", opts.DevBranch, opts.MainBranch))
		return nil
	}

	if err := git.Fetch(repo, opts.Remote); err != nil {
		return err
	}

	if err := git.Checkout(repo, opts.MainBranch); err != nil {
		return err
	}
	// Always return to dev, even on a failed merge, so the repo is left
	// where the operator expects it.
	defer func() {
		if err := git.Checkout(repo, opts.DevBranch); err != nil {
			log.Warning(fmt.Sprintf("could not return to %s: %v", opts.DevBranch, err))
		}
	}()

	if git.RemoteRefExists(repo, opts.Remote, opts.MainBranch) {
		if err := git.Pull(repo, opts.Remote, opts.MainBranch); err != nil {
			return err
		}
	}

	devRef := opts.DevBranch
	if git.RemoteRefExists(repo, opts.Remote, opts.DevBranch) {
		devRef = opts.Remote + "/" + opts.DevBranch
	}

	err := git.MergeNoCommit(repo, devRef)
	switch {
	case errors.Is(err, git.ErrMergeConflicted):
		if err := autoResolve(repo); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if err := git.Commit(repo, mergeCommitMessage(opts.DevBranch)); err != nil && !errors.Is(err, git.ErrNothingToCommit) {
		return err
	}

	return git.Push(repo, opts.Remote, opts.MainBranch, false)
}

// autoResolve takes the development branch's version of every conflicted
// file, provided all of them are allow-listed. A single file off the list
// aborts the whole merge.
func autoResolve(repo string) error {
	files, err := git.ConflictedFiles(repo)
	if err != nil {
		return err
	}

	for _, f := range files {
		if !allowedConflictFile(f) {
			if abortErr := git.MergeAbort(repo); abortErr != nil {
				return fmt.Errorf("%w in %s (and abort failed: %v)", ErrUnexpectedConflict, f, abortErr)
			}
			return fmt.Errorf("%w in %s", ErrUnexpectedConflict, f)
		}
	}

	for _, f := range files {
		if err := git.CheckoutTheirs(repo, f); err != nil {
			return err
		}
		log.Info(fmt.Sprintf("auto-resolved %s with development version", f))
	}
	return nil
}
