package publish

import (
	"errors"
	"fmt"

	"github.com/m3trik/releasechain/internal/git"
	"github.com/m3trik/releasechain/internal/log"
)

// pushCommitMessage is used when uncommitted changes are swept up before a
// push.
const pushCommitMessage = "chore: pending changes before release"

// Push promotes the development branch to its remote: checks it out, commits
// any uncommitted changes, re-fetches remote state, rebases onto the remote
// development branch if the local branch is behind, then pushes.
//
// A rebase failure is fatal for the package and is never auto-resolved; the
// interrupted rebase is aborted before returning.
//
// Remote state is always re-fetched here rather than trusted from an earlier
// stage: a CI bot may have pushed between the change check and this call.
func Push(repo string, opts Options) error {
	if opts.DryRun {
		log.Info(fmt.Sprintf("dry-run: would push %s to %s", opts.DevBranch, opts.Remote))
		return nil
	}

	if err := git.Checkout(repo, opts.DevBranch); err != nil {
		return err
	}

	if err := git.Commit(repo, pushCommitMessage); err != nil && !errors.Is(err, git.ErrNothingToCommit) {
		return err
	}

	if err := git.Fetch(repo, opts.Remote); err != nil {
		return err
	}

	remoteExists := git.RemoteRefExists(repo, opts.Remote, opts.DevBranch)
	if remoteExists {
		behind, err := git.BehindCount(repo, opts.Remote+"/"+opts.DevBranch, opts.DevBranch)
		if err != nil {
			return err
		}
		if behind > 0 {
			log.Info(fmt.Sprintf("%s is %d behind %s/%s, rebasing", opts.DevBranch, behind, opts.Remote, opts.DevBranch))
			if err := git.Rebase(repo, opts.Remote+"/"+opts.DevBranch); err != nil {
				return err
			}
		}
	}

	return git.Push(repo, opts.Remote, opts.DevBranch, !remoteExists)
}
