package git

// RepoState is a fresh snapshot of everything the pipeline needs to decide
// whether a package has work pending. It is recomputed immediately before
// every decision point and never cached across pipeline stages: remote
// state can change between stages, and acting on a stale snapshot produces
// incorrect push/merge decisions.
type RepoState struct {
	// Uncommitted is the number of modified/untracked paths in the tree.
	Uncommitted int

	// LocalAhead is how many local commits of the dev branch the remote
	// dev branch is missing. A dev branch that has never been pushed
	// counts its full history.
	LocalAhead int

	// DevAheadOfMain is how many commits dev carries that main does not.
	DevAheadOfMain int

	// InProgress is any interrupted operation detected in the repo.
	InProgress InProgressOp
}

// HasPendingWork reports whether there is anything left to push or merge.
func (s RepoState) HasPendingWork() bool {
	return s.Uncommitted > 0 || s.LocalAhead > 0 || s.DevAheadOfMain > 0
}

// StateOptions names the branches State compares.
type StateOptions struct {
	Remote     string
	MainBranch string
	DevBranch  string
}

// State computes a fresh RepoState for repo. Remote refs are preferred for
// comparison when they exist locally; callers that need up-to-the-second
// remote state must Fetch first. Comparisons degrade gracefully when a
// branch has never been pushed:
//
//   - no remote dev ref: every local dev commit counts as ahead
//   - no remote main ref: dev is compared against the local main branch
//   - neither main branch exists: DevAheadOfMain is zero
func State(repo string, opts StateOptions) (RepoState, error) {
	var s RepoState

	uncommitted, err := UncommittedCount(repo)
	if err != nil {
		return s, err
	}
	s.Uncommitted = uncommitted

	op, err := InProgressOperation(repo)
	if err != nil {
		return s, err
	}
	s.InProgress = op

	devExists, err := BranchExists(repo, opts.DevBranch)
	if err != nil {
		return s, err
	}
	if devExists {
		if RemoteRefExists(repo, opts.Remote, opts.DevBranch) {
			ahead, err := AheadCount(repo, opts.Remote+"/"+opts.DevBranch, opts.DevBranch)
			if err != nil {
				return s, err
			}
			s.LocalAhead = ahead
		} else {
			full, err := CommitCount(repo, opts.DevBranch)
			if err != nil {
				return s, err
			}
			s.LocalAhead = full
		}
	}

	mainRef := ""
	switch {
	case RemoteRefExists(repo, opts.Remote, opts.MainBranch):
		mainRef = opts.Remote + "/" + opts.MainBranch
	default:
		mainExists, err := BranchExists(repo, opts.MainBranch)
		if err != nil {
			return s, err
		}
		if mainExists {
			mainRef = opts.MainBranch
		}
	}

	if devExists && mainRef != "" {
		ahead, err := AheadCount(repo, mainRef, opts.DevBranch)
		if err != nil {
			return s, err
		}
		s.DevAheadOfMain = ahead
	}

	return s, nil
}
