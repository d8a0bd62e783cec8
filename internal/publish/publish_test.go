package publish_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m3trik/releasechain/internal/git"
	"github.com/m3trik/releasechain/internal/publish"
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

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func commitAll(t *testing.T, dir, message string) {
	t.Helper()
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", message)
}

// setupRepo creates a working repo with main and dev branches both pushed to
// a bare origin, leaving the working tree on dev.
func setupRepo(t *testing.T) (work, bare string) {
	t.Helper()
	work = t.TempDir()
	bare = t.TempDir()

	runGit(t, bare, "init", "--bare")

	runGit(t, work, "init", "-b", "main")
	runGit(t, work, "config", "user.email", "test@example.com")
	runGit(t, work, "config", "user.name", "Test Agent")
	runGit(t, work, "remote", "add", "origin", bare)

	writeFile(t, work, "requirements.txt", "pythontk==2.3.0\n")
	writeFile(t, work, ".github/workflows/publish.yml", "name: publish\n")
	writeFile(t, work, "core.py", "VALUE = 1\n")
	commitAll(t, work, "initial commit")
	runGit(t, work, "push", "-u", "origin", "main")

	runGit(t, work, "checkout", "-b", "dev")
	runGit(t, work, "push", "-u", "origin", "dev")
	return work, bare
}

func defaultOpts() publish.Options {
	return publish.Options{Remote: "origin", MainBranch: "main", DevBranch: "dev"}
}

func TestProbe_NoConflicts(t *testing.T) {
	work, _ := setupRepo(t)

	writeFile(t, work, "new_feature.py", "FEATURE = True\n")
	commitAll(t, work, "add feature")
	runGit(t, work, "push", "origin", "dev")

	report, err := publish.Probe(work, defaultOpts())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if report.HasConflicts {
		t.Errorf("expected clean probe, got conflicts in %v", report.Files)
	}
}

func TestProbe_WorkflowConflict_AutoResolvable(t *testing.T) {
	work, _ := setupRepo(t)

	// Diverge the workflow file on both branches.
	runGit(t, work, "checkout", "main")
	writeFile(t, work, ".github/workflows/publish.yml", "name: publish\non: push\n")
	commitAll(t, work, "tweak workflow on main")
	runGit(t, work, "push", "origin", "main")

	runGit(t, work, "checkout", "dev")
	writeFile(t, work, ".github/workflows/publish.yml", "name: publish-all\n")
	commitAll(t, work, "tweak workflow on dev")
	runGit(t, work, "push", "origin", "dev")

	report, err := publish.Probe(work, defaultOpts())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !report.HasConflicts {
		t.Fatal("expected the probe to detect the workflow conflict")
	}
	if !report.AutoResolvable() {
		t.Errorf("workflow-only conflict should be auto-resolvable, files: %v", report.Files)
	}

	// The probe is virtual: the working tree and branches stay untouched.
	if got := runGit(t, work, "status", "--porcelain"); got != "" {
		t.Errorf("probe dirtied the working tree:\n%s", got)
	}
}

func TestProbe_SourceConflict_NotAutoResolvable(t *testing.T) {
	work, _ := setupRepo(t)

	runGit(t, work, "checkout", "main")
	writeFile(t, work, "core.py", "VALUE = 2\n")
	commitAll(t, work, "bump value on main")
	runGit(t, work, "push", "origin", "main")

	runGit(t, work, "checkout", "dev")
	writeFile(t, work, "core.py", "VALUE = 3\n")
	commitAll(t, work, "bump value on dev")
	runGit(t, work, "push", "origin", "dev")

	report, err := publish.Probe(work, defaultOpts())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !report.HasConflicts {
		t.Fatal("expected the probe to detect the source conflict")
	}
	if report.AutoResolvable() {
		t.Errorf("source conflict must not be auto-resolvable, files: %v", report.Files)
	}
}

func TestProbe_UnpushedBranch_EmptyReport(t *testing.T) {
	work, _ := setupRepo(t)
	runGit(t, work, "push", "origin", "--delete", "dev")

	report, err := publish.Probe(work, defaultOpts())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if report.HasConflicts {
		t.Error("a branch with no remote counterpart cannot conflict")
	}
}

func TestPush_CommitsAndPushes(t *testing.T) {
	work, bare := setupRepo(t)

	writeFile(t, work, "pending.py", "WIP = True\n")

	if err := publish.Push(work, defaultOpts()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	subject := runGit(t, bare, "log", "-1", "--format=%s", "dev")
	if !strings.Contains(subject, "pending changes") {
		t.Errorf("remote dev subject = %q, want the sweep-up commit", subject)
	}
}

func TestPush_RebasesWhenBehindRemote(t *testing.T) {
	work, bare := setupRepo(t)

	// Remote gains a commit the local branch does not have.
	writeFile(t, work, "from_ci.py", "CI = True\n")
	commitAll(t, work, "ci bot commit")
	runGit(t, work, "push", "origin", "dev")
	runGit(t, work, "reset", "--hard", "HEAD~1")

	// And the local branch diverges with its own work.
	writeFile(t, work, "local.py", "LOCAL = True\n")
	commitAll(t, work, "local work")

	if err := publish.Push(work, defaultOpts()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	// Both commits must survive on the remote.
	for _, file := range []string{"from_ci.py", "local.py"} {
		runGit(t, bare, "cat-file", "-e", "dev:"+file)
	}
}

func TestPush_SetsUpstreamForNewBranch(t *testing.T) {
	work, _ := setupRepo(t)
	runGit(t, work, "checkout", "-b", "feature")

	opts := defaultOpts()
	opts.DevBranch = "feature"
	writeFile(t, work, "feature.py", "FEATURE = True\n")

	if err := publish.Push(work, opts); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !git.RemoteRefExists(work, "origin", "feature") {
		t.Error("expected the new branch to exist on the remote after push")
	}
}

func TestPush_DryRun_NoMutation(t *testing.T) {
	work, bare := setupRepo(t)
	before := runGit(t, bare, "rev-parse", "dev")

	writeFile(t, work, "pending.py", "WIP = True\n")

	opts := defaultOpts()
	opts.DryRun = true
	if err := publish.Push(work, opts); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if got := runGit(t, bare, "rev-parse", "dev"); got != before {
		t.Error("dry run pushed to the remote")
	}
	if got := runGit(t, work, "status", "--porcelain"); got == "" {
		t.Error("dry run committed the pending change")
	}
}

func TestMergeDirect_MergesAndReturnsToDev(t *testing.T) {
	work, bare := setupRepo(t)

	writeFile(t, work, "release.py", "RELEASED = True\n")
	commitAll(t, work, "release work")
	runGit(t, work, "push", "origin", "dev")

	if err := publish.MergeDirect(work, defaultOpts()); err != nil {
		t.Fatalf("MergeDirect: %v", err)
	}

	runGit(t, bare, "cat-file", "-e", "main:release.py")
	branch, err := git.CurrentBranch(work)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "dev" {
		t.Errorf("left on branch %q, want dev", branch)
	}
}

func TestMergeDirect_PromotesRemoteDevNotStaleLocal(t *testing.T) {
	work, bare := setupRepo(t)

	writeFile(t, work, "release.py", "RELEASED = True\n")
	commitAll(t, work, "release work")
	runGit(t, work, "push", "origin", "dev")

	// A CI bot pushes to the remote dev branch after our push; the local
	// dev branch is now stale.
	bot := t.TempDir()
	runGit(t, bot, "clone", "-b", "dev", bare, ".")
	runGit(t, bot, "config", "user.email", "bot@example.com")
	runGit(t, bot, "config", "user.name", "CI Bot")
	writeFile(t, bot, "from_bot.py", "BOT = True\n")
	runGit(t, bot, "add", "-A")
	runGit(t, bot, "commit", "-m", "bot version bump")
	runGit(t, bot, "push", "origin", "dev")

	if err := publish.MergeDirect(work, defaultOpts()); err != nil {
		t.Fatalf("MergeDirect: %v", err)
	}

	// Mainline must carry both our work and the bot's commit.
	for _, file := range []string{"release.py", "from_bot.py"} {
		runGit(t, bare, "cat-file", "-e", "main:"+file)
	}
}

func TestMergeDirect_AutoResolvesAllowlistedConflict(t *testing.T) {
	work, bare := setupRepo(t)

	runGit(t, work, "checkout", "main")
	writeFile(t, work, "requirements.txt", "pythontk==2.2.9\n")
	commitAll(t, work, "stale pin on main")
	runGit(t, work, "push", "origin", "main")

	runGit(t, work, "checkout", "dev")
	writeFile(t, work, "requirements.txt", "pythontk==2.3.1\n")
	commitAll(t, work, "fresh pin on dev")
	runGit(t, work, "push", "origin", "dev")

	if err := publish.MergeDirect(work, defaultOpts()); err != nil {
		t.Fatalf("MergeDirect: %v", err)
	}

	// Development's version of the manifest wins.
	got := runGit(t, bare, "show", "main:requirements.txt")
	if got != "pythontk==2.3.1" {
		t.Errorf("main requirements.txt = %q, want the dev pin", got)
	}
}

func TestMergeDirect_UnexpectedConflictAborts(t *testing.T) {
	work, bare := setupRepo(t)

	runGit(t, work, "checkout", "main")
	writeFile(t, work, "core.py", "VALUE = 2\n")
	commitAll(t, work, "bump value on main")
	runGit(t, work, "push", "origin", "main")

	runGit(t, work, "checkout", "dev")
	writeFile(t, work, "core.py", "VALUE = 3\n")
	commitAll(t, work, "bump value on dev")
	runGit(t, work, "push", "origin", "dev")

	beforeMain := runGit(t, bare, "rev-parse", "main")

	err := publish.MergeDirect(work, defaultOpts())
	if !errors.Is(err, publish.ErrUnexpectedConflict) {
		t.Fatalf("err = %v, want ErrUnexpectedConflict", err)
	}

	// The merge was aborted: no half-merged state, remote main untouched,
	// and the repo is back on dev.
	op, opErr := git.InProgressOperation(work)
	if opErr != nil {
		t.Fatalf("InProgressOperation: %v", opErr)
	}
	if op != git.OpNone {
		t.Errorf("in-progress operation %q left behind", op)
	}
	if got := runGit(t, bare, "rev-parse", "main"); got != beforeMain {
		t.Error("remote main moved despite the aborted merge")
	}
	branch, _ := git.CurrentBranch(work)
	if branch != "dev" {
		t.Errorf("left on branch %q, want dev", branch)
	}
}

func TestMergeDirect_DryRun_NoMutation(t *testing.T) {
	work, bare := setupRepo(t)

	writeFile(t, work, "release.py", "RELEASED = True\n")
	commitAll(t, work, "release work")
	runGit(t, work, "push", "origin", "dev")

	beforeMain := runGit(t, bare, "rev-parse", "main")

	opts := defaultOpts()
	opts.DryRun = true
	if err := publish.MergeDirect(work, opts); err != nil {
		t.Fatalf("MergeDirect: %v", err)
	}
	if got := runGit(t, bare, "rev-parse", "main"); got != beforeMain {
		t.Error("dry run pushed to main")
	}
}
