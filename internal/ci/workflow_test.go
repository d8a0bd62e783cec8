package ci

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m3trik/releasechain/internal/git"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// setupRepo creates a repo whose main branch is pushed to a bare origin and
// returns the repo path and the remote main head sha.
func setupRepo(t *testing.T) (work, sha string) {
	t.Helper()
	work = t.TempDir()
	bare := t.TempDir()

	runGit(t, bare, "init", "--bare")
	runGit(t, work, "init", "-b", "main")
	runGit(t, work, "config", "user.email", "test@example.com")
	runGit(t, work, "config", "user.name", "Test Agent")
	runGit(t, work, "remote", "add", "origin", bare)

	if err := os.WriteFile(filepath.Join(work, "README.md"), []byte("release\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	runGit(t, work, "add", ".")
	runGit(t, work, "commit", "-m", "initial commit")
	runGit(t, work, "push", "-u", "origin", "main")

	sha, err := git.RevParse(work, "origin/main")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}
	return work, sha
}

// stubRuns replaces listRuns with a sequence of canned responses (the last
// one repeats) and makes sleep instantaneous, restoring both afterwards.
func stubRuns(t *testing.T, sequence ...[]Run) {
	t.Helper()
	origList := listRuns
	origSleep := sleep
	t.Cleanup(func() {
		listRuns = origList
		sleep = origSleep
	})

	calls := 0
	listRuns = func(repo, workflow, branch string) ([]Run, error) {
		i := calls
		if i >= len(sequence) {
			i = len(sequence) - 1
		}
		calls++
		return sequence[i], nil
	}
	sleep = func(time.Duration) {}
}

func waiter(timeout time.Duration) Waiter {
	return Waiter{
		Remote:       "origin",
		MainBranch:   "main",
		WorkflowFile: "publish.yml",
		Timeout:      timeout,
		Interval:     time.Millisecond,
	}
}

func TestWait_SuccessAfterPolling(t *testing.T) {
	work, sha := setupRepo(t)

	stubRuns(t,
		[]Run{},
		[]Run{{Status: "in_progress", HeadSha: sha}},
		[]Run{{Status: "completed", Conclusion: "success", HeadSha: sha}},
	)

	if err := waiter(time.Minute).Wait(work); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWait_FailureConclusion(t *testing.T) {
	work, sha := setupRepo(t)

	stubRuns(t, []Run{
		{Status: "completed", Conclusion: "failure", HeadSha: sha, DisplayTitle: "publish wheel"},
	})

	err := waiter(time.Minute).Wait(work)
	if err == nil {
		t.Fatal("expected error for failed workflow run")
	}
	if !strings.Contains(err.Error(), "failure") {
		t.Errorf("err = %v, want the conclusion in the message", err)
	}
}

func TestWait_IgnoresRunsForOtherCommits(t *testing.T) {
	work, sha := setupRepo(t)

	// A failed run from an older commit must not fail this wait.
	stubRuns(t, []Run{
		{Status: "completed", Conclusion: "failure", HeadSha: "aaaa000000000000000000000000000000000000"},
		{Status: "completed", Conclusion: "success", HeadSha: sha},
	})

	if err := waiter(time.Minute).Wait(work); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWait_AllMatchingRunsMustSucceed(t *testing.T) {
	work, sha := setupRepo(t)

	stubRuns(t, []Run{
		{Status: "completed", Conclusion: "success", HeadSha: sha},
		{Status: "completed", Conclusion: "cancelled", HeadSha: sha},
	})

	if err := waiter(time.Minute).Wait(work); err == nil {
		t.Error("expected error when one matching run did not succeed")
	}
}

func TestWait_NoRunAppears_Timeout(t *testing.T) {
	work, _ := setupRepo(t)

	stubRuns(t, []Run{})

	err := waiter(time.Millisecond).Wait(work)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "no publish.yml run appeared") {
		t.Errorf("err = %v, want the no-run-appeared message", err)
	}
}

func TestWait_RunNeverFinishes_Timeout(t *testing.T) {
	work, sha := setupRepo(t)

	stubRuns(t, []Run{{Status: "in_progress", HeadSha: sha}})

	err := waiter(time.Millisecond).Wait(work)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "still not terminal") {
		t.Errorf("err = %v, want the not-terminal message", err)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		runs     []Run
		wantDone bool
		wantErr  bool
	}{
		{name: "no runs", runs: nil, wantDone: false},
		{
			name:     "one still running",
			runs:     []Run{{Status: "completed", Conclusion: "success"}, {Status: "queued"}},
			wantDone: false,
		},
		{
			name:     "all succeeded",
			runs:     []Run{{Status: "completed", Conclusion: "success"}},
			wantDone: true,
		},
		{
			name:     "terminal failure",
			runs:     []Run{{Status: "completed", Conclusion: "failure"}},
			wantDone: true,
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			done, err := evaluate(tc.runs)
			if done != tc.wantDone {
				t.Errorf("done = %v, want %v", done, tc.wantDone)
			}
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
