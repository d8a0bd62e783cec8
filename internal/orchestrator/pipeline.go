package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3trik/releasechain/internal/buildcheck"
	"github.com/m3trik/releasechain/internal/ci"
	"github.com/m3trik/releasechain/internal/config"
	"github.com/m3trik/releasechain/internal/git"
	"github.com/m3trik/releasechain/internal/log"
	"github.com/m3trik/releasechain/internal/publish"
	"github.com/m3trik/releasechain/internal/registry"
	"github.com/m3trik/releasechain/internal/requirements"
)

// pipeline runs the full state machine for one package and returns its
// terminal result. Stages in order, any of which may short-circuit:
//
//	SafetyCheck → RequirementsSync → RegistryCheck → BuildValidate →
//	ChangeCheck → Push → ConflictProbe → Merge → WorkflowWait
//
// The repository working directory is treated as an exclusive resource for
// the duration of this call, and remote state is re-fetched immediately
// before each push/merge decision rather than carried across stages.
func (o *Orchestrator) pipeline(pkg config.Package) PackageResult {
	result := func(kind ResultKind, detail string) PackageResult {
		return PackageResult{Package: pkg.Name, Version: pkg.Version, Kind: kind, Detail: detail}
	}

	pubOpts := publish.Options{
		Remote:     o.Config.Remote,
		MainBranch: o.Config.MainBranch,
		DevBranch:  o.Config.DevBranch,
		DryRun:     o.Opts.DryRun,
	}

	// --- SafetyCheck --------------------------------------------------
	if err := git.CheckSafety(pkg.Path, git.SafetyOptions{
		Remote:     o.Config.Remote,
		MainBranch: o.Config.MainBranch,
		DevBranch:  o.Config.DevBranch,
		Strict:     o.Opts.Strict,
	}); err != nil {
		log.Error(fmt.Sprintf("%s: unsafe repository: %v", pkg.Name, err))
		return result(ResultUnsafeRepo, err.Error())
	}

	// --- RequirementsSync ----------------------------------------------
	pins := o.resolvePins(pkg)
	if pkg.Strict && o.Opts.Strict && len(pins) > 0 {
		if !o.Opts.DryRun {
			if err := git.Checkout(pkg.Path, o.Config.DevBranch); err != nil {
				return result(ResultPushFailed, err.Error())
			}
		}
		changed, err := requirements.Sync(pkg.Path, pins, o.Opts.DryRun)
		if err != nil {
			log.Error(fmt.Sprintf("%s: requirements sync: %v", pkg.Name, err))
			return result(ResultRequirementsInvalid, err.Error())
		}
		if changed {
			log.Info(fmt.Sprintf("%s: dependency pins synchronized", pkg.Name))
		}
	}

	// --- RegistryCheck --------------------------------------------------
	// Gated on strict like the sync above: without strict the pins were
	// never synchronized, so there is nothing meaningful to verify.
	if pkg.Strict && o.Opts.Strict && o.Opts.Merge && !o.Opts.SkipRegistry && len(pins) > 0 {
		checker := registry.Checker{BaseURL: o.Config.RegistryBaseURL}
		for dep, version := range pins {
			project := dep
			if cfg, err := config.Get(dep); err == nil {
				project = cfg.PyPI()
			}
			if !checker.Available(project, version) {
				detail := fmt.Sprintf("%s %s not visible in registry", project, version)
				log.Error(fmt.Sprintf("%s: %s", pkg.Name, detail))
				return result(ResultRegistryMissing, detail)
			}
		}
	}

	// --- BuildValidate ----------------------------------------------------
	if pkg.Strict && o.Opts.Strict && !o.Opts.SkipBuild {
		validator := buildcheck.Validator{
			BuildCommand: o.Config.BuildCommand,
			CheckCommand: o.Config.CheckCommand,
			BuildTimeout: o.Config.BuildTimeout(),
			CheckTimeout: o.Config.CheckTimeout(),
		}
		outcome, err := validator.Validate(pkg.Path)
		if err != nil {
			return result(ResultBuildFailed, err.Error())
		}
		if !outcome.Passed {
			log.Error(fmt.Sprintf("%s: build validation failed: %s", pkg.Name, outcome.FirstDiagnostic))
			return result(ResultBuildFailed, outcome.FirstDiagnostic)
		}
		log.Success(fmt.Sprintf("%s: build validated", pkg.Name))
	}

	// --- ChangeCheck --------------------------------------------------------
	if err := git.Fetch(pkg.Path, o.Config.Remote); err != nil {
		log.Warning(fmt.Sprintf("%s: fetch before change check: %v", pkg.Name, err))
	}
	state, err := git.State(pkg.Path, git.StateOptions{
		Remote:     o.Config.Remote,
		MainBranch: o.Config.MainBranch,
		DevBranch:  o.Config.DevBranch,
	})
	if err != nil {
		return result(ResultUnsafeRepo, err.Error())
	}
	if !state.HasPendingWork() {
		log.Info(fmt.Sprintf("%s: nothing to push or merge", pkg.Name))
		return result(ResultSkipped, "")
	}

	// --- Push --------------------------------------------------------------
	if state.Uncommitted > 0 || state.LocalAhead > 0 {
		if err := publish.Push(pkg.Path, pubOpts); err != nil {
			log.Error(fmt.Sprintf("%s: push: %v", pkg.Name, err))
			return result(ResultPushFailed, err.Error())
		}
		if !o.Opts.DryRun {
			log.Success(fmt.Sprintf("%s: pushed %s", pkg.Name, o.Config.DevBranch))
		}
	}

	if !o.Opts.Merge {
		if o.Opts.DryRun {
			return result(ResultDryRunOK, "")
		}
		return result(ResultSuccess, "")
	}

	// --- ConflictProbe --------------------------------------------------
	report, err := publish.Probe(pkg.Path, pubOpts)
	if err != nil {
		return result(ResultMergeFailed, err.Error())
	}
	if report.HasConflicts && !report.AutoResolvable() {
		detail := "unexpected conflicts in " + strings.Join(report.Files, ", ")
		log.Error(fmt.Sprintf("%s: %s", pkg.Name, detail))
		return result(ResultMergeConflict, detail)
	}
	if report.HasConflicts {
		log.Info(fmt.Sprintf("%s: conflicts confined to auto-resolvable files: %s",
			pkg.Name, strings.Join(report.Files, ", ")))
	}

	// --- Merge ------------------------------------------------------------
	if o.Opts.UsePR {
		err = publish.MergeViaPR(pkg.Path, pubOpts, o.Config.PRTimeout(), o.Config.PollInterval())
	} else {
		err = publish.MergeDirect(pkg.Path, pubOpts)
	}
	if err != nil {
		if errors.Is(err, publish.ErrUnexpectedConflict) {
			return result(ResultMergeConflict, err.Error())
		}
		log.Error(fmt.Sprintf("%s: merge: %v", pkg.Name, err))
		return result(ResultMergeFailed, err.Error())
	}
	if !o.Opts.DryRun {
		log.Success(fmt.Sprintf("%s: merged %s into %s", pkg.Name, o.Config.DevBranch, o.Config.MainBranch))
	}

	// --- WorkflowWait ----------------------------------------------------
	if pkg.Strict && o.Opts.Strict && !o.Opts.SkipWorkflow && !o.Opts.DryRun {
		waiter := ci.Waiter{
			Remote:       o.Config.Remote,
			MainBranch:   o.Config.MainBranch,
			WorkflowFile: o.Config.WorkflowFile,
			Timeout:      o.Config.WorkflowTimeout(),
			Interval:     o.Config.PollInterval(),
		}
		if err := waiter.Wait(pkg.Path); err != nil {
			log.Error(fmt.Sprintf("%s: workflow: %v", pkg.Name, err))
			return result(ResultWorkflowFailed, err.Error())
		}
		log.Success(fmt.Sprintf("%s: publish workflow succeeded", pkg.Name))
	}

	if o.Opts.DryRun {
		return result(ResultDryRunOK, "")
	}
	return result(ResultSuccess, "")
}

// resolvePins maps each of pkg's pin-set dependencies to its current local
// version. A dependency whose version cannot be read maps to "", which the
// synchronizer rejects as unsynchronizable.
func (o *Orchestrator) resolvePins(pkg config.Package) map[string]string {
	cfg, err := config.Get(pkg.Name)
	if err != nil || len(cfg.DependsOn) == 0 {
		return nil
	}

	pins := make(map[string]string, len(cfg.DependsOn))
	for _, dep := range cfg.DependsOn {
		version, err := config.ReadVersion(config.PackagePath(o.Opts.Root, dep), dep)
		if err != nil {
			pins[dep] = ""
			continue
		}
		pins[dep] = version
	}
	return pins
}
