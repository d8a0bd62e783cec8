package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/m3trik/releasechain/internal/config"
	"github.com/m3trik/releasechain/internal/log"
	"github.com/m3trik/releasechain/internal/orchestrator"
)

// releaseFlags holds CLI flag values that override releasechain.yaml config
// settings. Only flags explicitly changed by the user are applied (checked
// via cmd.Flags().Changed).
var releaseFlags struct {
	all          bool
	merge        bool
	strict       bool
	usePR        bool
	dryRun       bool
	skipBuild    bool
	skipWorkflow bool
	skipRegistry bool

	workflowTimeoutSec int
	prTimeoutSec       int
	pollIntervalSec    int
	root               string
}

var releaseCmd = &cobra.Command{
	Use:   "release [packages...]",
	Short: "Run the release pipeline for the selected packages",
	Long: "Run the release pipeline: safety gate, pin sync, build validation,\n" +
		"push, merge promotion, and CI workflow wait for each selected package.\n" +
		"With no packages and no --all, the package owning the current directory\n" +
		"is selected.",
	RunE: runRelease,
}

func init() {
	f := releaseCmd.Flags()
	f.BoolVar(&releaseFlags.all, "all", false, "select every package found under the root directory")
	f.BoolVar(&releaseFlags.merge, "merge", false, "merge the development branch into mainline after pushing")
	f.BoolVar(&releaseFlags.strict, "strict", false, "enable build validation, pin sync, and workflow waiting")
	f.BoolVar(&releaseFlags.usePR, "pr", false, "merge through a pull request instead of a direct merge")
	f.BoolVar(&releaseFlags.dryRun, "dry-run", false, "execute decision steps only; never push, commit, or merge")
	f.BoolVar(&releaseFlags.skipBuild, "skip-build", false, "skip build validation")
	f.BoolVar(&releaseFlags.skipWorkflow, "skip-workflow", false, "skip waiting for the publish workflow")
	f.BoolVar(&releaseFlags.skipRegistry, "skip-registry", false, "skip the registry availability check")
	f.IntVar(&releaseFlags.workflowTimeoutSec, "workflow-timeout", 0, "override workflow_timeout_sec from releasechain.yaml")
	f.IntVar(&releaseFlags.prTimeoutSec, "pr-timeout", 0, "override pr_timeout_sec from releasechain.yaml")
	f.IntVar(&releaseFlags.pollIntervalSec, "poll-interval", 0, "override poll_interval_sec from releasechain.yaml")
	f.StringVar(&releaseFlags.root, "root", "", "root directory containing the package repositories")

	rootCmd.AddCommand(releaseCmd)
}

// resolveRoot returns the package root: --root if given, else the current
// directory. selectPackages may still re-root to the parent when the current
// directory itself is the selected package.
func resolveRoot() (string, error) {
	if releaseFlags.root != "" {
		return filepath.Abs(releaseFlags.root)
	}
	return os.Getwd()
}

// selectPackages resolves the positional args / --all / current-directory
// selection rules into a working set.
func selectPackages(root string, args []string) ([]config.Package, string, error) {
	if len(args) > 0 {
		pkgs, err := config.Discover(root, args)
		return pkgs, root, err
	}
	if releaseFlags.all {
		pkgs, err := config.Discover(root, nil)
		return pkgs, root, err
	}

	// No explicit selection: the current directory must be a package
	// directly under its parent.
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	name := filepath.Base(cwd)
	parent := filepath.Dir(cwd)
	pkgs, err := config.Discover(parent, []string{name})
	if err != nil {
		return nil, "", fmt.Errorf("current directory is not a releasable package: %w", err)
	}
	return pkgs, parent, nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	cfg, err := config.LoadConfig(filepath.Join(root, "releasechain.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("workflow-timeout") {
		cfg.WorkflowTimeoutSec = releaseFlags.workflowTimeoutSec
	}
	if cmd.Flags().Changed("pr-timeout") {
		cfg.PRTimeoutSec = releaseFlags.prTimeoutSec
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.PollIntervalSec = releaseFlags.pollIntervalSec
	}

	pkgs, root, err := selectPackages(root, args)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return fmt.Errorf("no packages selected under %s", root)
	}

	orch := orchestrator.New(cfg, orchestrator.Options{
		Merge:        releaseFlags.merge,
		Strict:       releaseFlags.strict,
		UsePR:        releaseFlags.usePR,
		DryRun:       releaseFlags.dryRun,
		SkipBuild:    releaseFlags.skipBuild,
		SkipWorkflow: releaseFlags.skipWorkflow,
		SkipRegistry: releaseFlags.skipRegistry,
		Root:         root,
	})

	results := orch.Run(pkgs)
	orchestrator.PrintSummary(results)

	if code := orchestrator.ExitCode(results); code != 0 {
		log.OsExit(code)
	}
	return nil
}
