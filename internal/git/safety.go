package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// conflictMarker is the sentinel scanned for in pin files and merge-tree
// output. The trailing space distinguishes real markers from separator
// lines of the same character.
const conflictMarker = "<<<<<<< "

// PinFile is the tracked dependency manifest checked for unresolved
// conflict markers by the safety gate.
const PinFile = "requirements.txt"

// InProgressOp identifies an interrupted git operation found in a repo.
type InProgressOp string

const (
	OpNone       InProgressOp = ""
	OpMerge      InProgressOp = "merge"
	OpRebase     InProgressOp = "rebase"
	OpCherryPick InProgressOp = "cherry-pick"
)

// InProgressOperation detects an interrupted merge, rebase, or cherry-pick
// by probing the operation markers under the repository's git dir.
func InProgressOperation(repo string) (InProgressOp, error) {
	gitDir, err := GitDir(repo)
	if err != nil {
		return OpNone, err
	}

	if exists(filepath.Join(gitDir, "MERGE_HEAD")) {
		return OpMerge, nil
	}
	if exists(filepath.Join(gitDir, "rebase-merge")) || exists(filepath.Join(gitDir, "rebase-apply")) {
		return OpRebase, nil
	}
	if exists(filepath.Join(gitDir, "CHERRY_PICK_HEAD")) {
		return OpCherryPick, nil
	}
	return OpNone, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// hasConflictMarkers reports whether any line of content starts with the
// conflict-marker sentinel.
func hasConflictMarkers(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, conflictMarker) {
			return true
		}
	}
	return false
}

// SafetyOptions configures CheckSafety.
type SafetyOptions struct {
	Remote     string
	MainBranch string
	DevBranch  string

	// Strict additionally inspects the pin file on the remote main and dev
	// refs for conflict markers.
	Strict bool
}

// CheckSafety decides whether repo is safe to automate. It returns nil when
// safe, or an error naming the reason. An unsafe repository requires human
// intervention; the caller must report the reason and never retry.
//
// Read-only: no fetch, no checkout, no mutation of any kind.
func CheckSafety(repo string, opts SafetyOptions) error {
	if !IsWorkTree(repo) {
		return fmt.Errorf("%s is not a git working copy", repo)
	}

	op, err := InProgressOperation(repo)
	if err != nil {
		return fmt.Errorf("detect in-progress operation: %w", err)
	}
	if op != OpNone {
		return fmt.Errorf("interrupted %s in progress", op)
	}

	local := filepath.Join(repo, PinFile)
	if data, err := os.ReadFile(local); err == nil {
		if hasConflictMarkers(string(data)) {
			return fmt.Errorf("unresolved conflict markers in %s", PinFile)
		}
	}

	if !opts.Strict {
		return nil
	}

	for _, branch := range []string{opts.MainBranch, opts.DevBranch} {
		ref := opts.Remote + "/" + branch
		if !RemoteRefExists(repo, opts.Remote, branch) {
			continue
		}
		content, ok, err := ShowFile(repo, ref, PinFile)
		if err != nil {
			return fmt.Errorf("inspect %s on %s: %w", PinFile, ref, err)
		}
		if ok && hasConflictMarkers(content) {
			return fmt.Errorf("unresolved conflict markers in %s on %s", PinFile, ref)
		}
	}

	return nil
}
