package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/m3trik/releasechain/internal/log"
)

// Errors from the pull-request merge strategy.
var (
	// ErrPRTimeout means the pull request did not reach a terminal state
	// before the configured deadline. This halts the run: an un-merged PR
	// means the release never happened.
	ErrPRTimeout = errors.New("pull request did not merge before deadline")

	// ErrPRClosed means the pull request was closed without merging.
	ErrPRClosed = errors.New("pull request closed without merging")
)

// ghCommandTimeout bounds a single gh invocation (not the overall wait).
const ghCommandTimeout = 30 * time.Second

// ghOutput runs gh with args in repo and returns stdout. Package-level var
// so tests can substitute a fake without a gh binary or network.
var ghOutput = func(repo string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ghCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = repo
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// sleep is substitutable in tests so polling loops run instantly.
var sleep = time.Sleep

// ghPR mirrors the fields we care about from gh's JSON output.
type ghPR struct {
	Number   int    `json:"number"`
	State    string `json:"state"` // "OPEN", "MERGED", "CLOSED"
	MergedAt string `json:"mergedAt"`
}

// findOpenPR returns the number of an existing open PR from head into base.
func findOpenPR(repo, base, head string) (int, bool, error) {
	out, err := ghOutput(repo,
		"pr", "list",
		"--base", base,
		"--head", head,
		"--state", "open",
		"--json", "number",
	)
	if err != nil {
		return 0, false, err
	}

	var prs []ghPR
	if err := json.Unmarshal(out, &prs); err != nil {
		return 0, false, fmt.Errorf("parse gh pr list output: %w", err)
	}
	if len(prs) == 0 {
		return 0, false, nil
	}
	return prs[0].Number, true, nil
}

// createPR opens a new PR from head into base and returns its number,
// parsed from the trailing segment of the URL gh prints.
func createPR(repo, base, head string) (int, error) {
	out, err := ghOutput(repo,
		"pr", "create",
		"--base", base,
		"--head", head,
		"--title", fmt.Sprintf("Release: merge %s into %s", head, base),
		"--body", "Automated release promotion.",
	)
	if err != nil {
		return 0, err
	}

	url := strings.TrimSpace(string(out))
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return 0, fmt.Errorf("cannot parse PR number from gh output %q", url)
	}
	number, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("cannot parse PR number from gh output %q: %w", url, err)
	}
	return number, nil
}

// enableAutoMerge turns on automatic merging for the PR. The remote may not
// support auto-merge; that failure is reported, never silently retried.
func enableAutoMerge(repo string, number int) error {
	if _, err := ghOutput(repo, "pr", "merge", "--auto", "--merge", strconv.Itoa(number)); err != nil {
		return fmt.Errorf("enable auto-merge on #%d: %w", number, err)
	}
	return nil
}

// viewPR fetches the current state of the PR.
func viewPR(repo string, number int) (ghPR, error) {
	out, err := ghOutput(repo, "pr", "view", strconv.Itoa(number), "--json", "state,mergedAt")
	if err != nil {
		return ghPR{}, err
	}
	var pr ghPR
	if err := json.Unmarshal(out, &pr); err != nil {
		return ghPR{}, fmt.Errorf("parse gh pr view output: %w", err)
	}
	return pr, nil
}

// MergeViaPR promotes the development branch to mainline through a pull
// request: finds an existing open PR or creates one, enables automatic
// merging, and polls until the PR merges, closes, or the deadline passes.
//
// The poll never spins tighter than interval, to respect the remote
// service's rate limits. There is no external cancellation signal; the
// deadline is the only way out of the loop.
func MergeViaPR(repo string, opts Options, timeout, interval time.Duration) error {
	number, found, err := findOpenPR(repo, opts.MainBranch, opts.DevBranch)
	if err != nil {
		return err
	}

	if found {
		log.Info(fmt.Sprintf("reusing open PR #%d (%s -> %s)", number, opts.DevBranch, opts.MainBranch))
	} else {
		if opts.DryRun {
			log.Info(fmt.Sprintf("dry-run: would create PR %s -> %s", opts.DevBranch, opts.MainBranch))
			return nil
		}
		number, err = createPR(repo, opts.MainBranch, opts.DevBranch)
		if err != nil {
			return err
		}
		log.Info(fmt.Sprintf("created PR #%d (%s -> %s)", number, opts.DevBranch, opts.MainBranch))
	}

	if opts.DryRun {
		log.Info(fmt.Sprintf("dry-run: would wait for PR #%d to merge", number))
		return nil
	}

	if err := enableAutoMerge(repo, number); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		pr, err := viewPR(repo, number)
		if err != nil {
			return err
		}

		switch pr.State {
		case "MERGED":
			log.Success(fmt.Sprintf("PR #%d merged", number))
			return nil
		case "CLOSED":
			return fmt.Errorf("#%d: %w", number, ErrPRClosed)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("#%d after %s: %w", number, timeout, ErrPRTimeout)
		}
		sleep(interval)
	}
}
