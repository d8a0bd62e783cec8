// Package ci waits for the downstream publish workflow to run against a new
// mainline commit and reach a terminal, successful state.
//
// Absence of evidence is never treated as evidence of success: if no run
// matching the commit appears before the deadline, the wait fails and the
// operator must inspect CI manually.
package ci

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/m3trik/releasechain/internal/git"
	"github.com/m3trik/releasechain/internal/log"
)

// Run mirrors the fields we care about from gh's workflow-run JSON output.
type Run struct {
	Status       string `json:"status"`     // "queued", "in_progress", "completed"
	Conclusion   string `json:"conclusion"` // "success", "failure", ... ("" while running)
	HeadSha      string `json:"headSha"`
	CreatedAt    string `json:"createdAt"`
	DisplayTitle string `json:"displayTitle"`
}

// Terminal reports whether the run has finished.
func (r Run) Terminal() bool { return r.Status == "completed" }

// ghCommandTimeout bounds a single gh invocation (not the overall wait).
const ghCommandTimeout = 30 * time.Second

// listRuns queries recent runs of the named workflow on branch. Package-level
// var so tests can substitute canned responses.
var listRuns = func(repo, workflow, branch string) ([]Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ghCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "gh", "run", "list",
		"--workflow", workflow,
		"--branch", branch,
		"--limit", "20",
		"--json", "status,conclusion,headSha,createdAt,displayTitle",
	)
	cmd.Dir = repo
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("gh run list: %w", err)
	}

	var runs []Run
	if err := json.Unmarshal(out, &runs); err != nil {
		return nil, fmt.Errorf("parse gh run list output: %w", err)
	}
	return runs, nil
}

// sleep is substitutable in tests so the poll loop runs instantly.
var sleep = time.Sleep

// Waiter polls for workflow runs matching a mainline commit.
type Waiter struct {
	Remote       string
	MainBranch   string
	WorkflowFile string
	Timeout      time.Duration
	Interval     time.Duration
}

// Wait determines the current remote mainline commit and blocks until every
// workflow run for that commit has completed successfully.
//
//   - no matching run has appeared yet: keep polling
//   - any matching run still queued/in progress: keep polling
//   - all matching runs terminal: success iff every conclusion is "success"
//   - deadline reached first: failure requiring manual inspection
func (w Waiter) Wait(repo string) error {
	if err := git.Fetch(repo, w.Remote); err != nil {
		return err
	}
	sha, err := git.RevParse(repo, w.Remote+"/"+w.MainBranch)
	if err != nil {
		return fmt.Errorf("resolve %s/%s: %w", w.Remote, w.MainBranch, err)
	}

	log.Info(fmt.Sprintf("waiting for %s run on %s (timeout %s)", w.WorkflowFile, shortSha(sha), w.Timeout))

	deadline := time.Now().Add(w.Timeout)
	for {
		runs, err := listRuns(repo, w.WorkflowFile, w.MainBranch)
		if err != nil {
			return err
		}

		matching := filterBySha(runs, sha)
		if done, err := evaluate(matching); done {
			return err
		}

		if time.Now().After(deadline) {
			if len(matching) == 0 {
				return fmt.Errorf("no %s run appeared for %s within %s", w.WorkflowFile, shortSha(sha), w.Timeout)
			}
			return fmt.Errorf("%s run for %s still not terminal after %s", w.WorkflowFile, shortSha(sha), w.Timeout)
		}
		sleep(w.Interval)
	}
}

// filterBySha keeps only runs whose head commit equals sha. Display titles
// are deliberately not used for matching: they are unstable across
// retriggers.
func filterBySha(runs []Run, sha string) []Run {
	var matching []Run
	for _, r := range runs {
		if r.HeadSha == sha {
			matching = append(matching, r)
		}
	}
	return matching
}

// evaluate inspects the matching runs. done is false while the answer is
// still unknown (no runs yet, or some run non-terminal).
func evaluate(matching []Run) (done bool, err error) {
	if len(matching) == 0 {
		return false, nil
	}
	for _, r := range matching {
		if !r.Terminal() {
			return false, nil
		}
	}
	for _, r := range matching {
		if r.Conclusion != "success" {
			return true, fmt.Errorf("workflow run %q concluded %s", r.DisplayTitle, r.Conclusion)
		}
	}
	return true, nil
}

func shortSha(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
