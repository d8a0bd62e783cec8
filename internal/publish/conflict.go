// Package publish promotes a package's development branch: pushing it
// (rebasing if behind), probing for merge conflicts without touching the
// working tree, and merging to mainline either directly or through a pull
// request.
package publish

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/m3trik/releasechain/internal/git"
)

// ConflictReport is the outcome of a virtual merge between mainline and the
// development branch.
type ConflictReport struct {
	HasConflicts bool
	Files        []string
}

// AutoResolvable reports whether every conflicting file is on the allow-list
// of files safe to resolve by preferring the development branch's version.
func (r ConflictReport) AutoResolvable() bool {
	if !r.HasConflicts {
		return true
	}
	for _, f := range r.Files {
		if !allowedConflictFile(f) {
			return false
		}
	}
	return true
}

// allowedConflictPatterns is the canonical allow-list: CI workflow
// definitions, package version/init files, and dependency manifest files.
// Shared by the probe and the direct-merge auto-resolver so the two can
// never disagree about what is safe.
var allowedConflictPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\.github/workflows/[^/]+\.ya?ml$`),
	regexp.MustCompile(`(^|/)__init__\.py$`),
	regexp.MustCompile(`^requirements\.txt$`),
	regexp.MustCompile(`^setup\.py$`),
}

func allowedConflictFile(path string) bool {
	for _, p := range allowedConflictPatterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// Options names the branches and remote a publish operation works against.
type Options struct {
	Remote     string
	MainBranch string
	DevBranch  string
	DryRun     bool
}

// Probe fetches the latest remote state of mainline and development,
// computes their merge base, and performs a virtual merge between them.
// The working tree is never mutated. The merge text is scanned for conflict
// markers because a clean merge-tree exit alone does not signal a
// conflict-free merge.
func Probe(repo string, opts Options) (ConflictReport, error) {
	if err := git.Fetch(repo, opts.Remote); err != nil {
		return ConflictReport{}, err
	}

	mainRef := opts.Remote + "/" + opts.MainBranch
	devRef := opts.Remote + "/" + opts.DevBranch
	if !git.RemoteRefExists(repo, opts.Remote, opts.MainBranch) || !git.RemoteRefExists(repo, opts.Remote, opts.DevBranch) {
		// One side has never been pushed: nothing to merge, nothing to
		// conflict.
		return ConflictReport{}, nil
	}

	base, err := git.MergeBase(repo, mainRef, devRef)
	if err != nil {
		return ConflictReport{}, fmt.Errorf("merge base of %s and %s: %w", mainRef, devRef, err)
	}

	out, err := git.MergeTree(repo, base, mainRef, devRef)
	if err != nil {
		return ConflictReport{}, err
	}

	files := parseMergeTreeConflicts(out)
	return ConflictReport{HasConflicts: len(files) > 0, Files: files}, nil
}

// parseMergeTreeConflicts extracts the paths of files whose merged content
// contains conflict markers from git merge-tree output. The output lists
// each file as an entry header block ("changed in both" with indented
// base/our/their lines) followed by the merged hunks.
func parseMergeTreeConflicts(out string) []string {
	var files []string
	seen := map[string]bool{}
	current := ""

	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "  our "), strings.HasPrefix(line, "  their "), strings.HasPrefix(line, "  base "):
			fields := strings.Fields(line)
			current = fields[len(fields)-1]
		case strings.Contains(line, "<<<<<<<"):
			if current != "" && !seen[current] {
				seen[current] = true
				files = append(files, current)
			}
		}
	}
	return files
}
