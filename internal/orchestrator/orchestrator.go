// Package orchestrator sequences the release pipeline across packages:
// canonical ordering of the dependency chain, per-package state machines
// with one terminal result each, stop-on-failure policy, and the final
// report.
//
// Execution is single-threaded and strictly sequential across packages —
// parallelizing is unsafe because downstream packages pin the exact released
// version of upstream packages.
package orchestrator

import (
	"fmt"

	"github.com/m3trik/releasechain/internal/config"
	"github.com/m3trik/releasechain/internal/log"
)

// Options are the run-level switches selected on the command line.
type Options struct {
	// Merge promotes dev to mainline after the push.
	Merge bool

	// Strict enables build validation, pin synchronization, workflow
	// waiting, and (with Merge) canonical ordering and stop-on-failure.
	Strict bool

	// UsePR merges through a pull request instead of a direct merge.
	UsePR bool

	// DryRun substitutes a no-op for every mutating step while still
	// executing every read-only decision step.
	DryRun bool

	SkipBuild    bool
	SkipWorkflow bool
	SkipRegistry bool

	// Root is the directory containing all package repositories.
	Root string
}

// Orchestrator drives a single release run.
type Orchestrator struct {
	Config *config.OrchestratorConfig
	Opts   Options
}

// New returns an Orchestrator over cfg and opts.
func New(cfg *config.OrchestratorConfig, opts Options) *Orchestrator {
	return &Orchestrator{Config: cfg, Opts: opts}
}

// stopOnFailure reports whether the first failing package aborts the run.
// Active only when both merge and strict semantics are requested.
func (o *Orchestrator) stopOnFailure() bool {
	return o.Opts.Merge && o.Opts.Strict
}

// Run processes the working set in order and returns one result per package,
// in processing order. Already-processed packages keep their results when
// stop-on-failure aborts the run; the remainder are recorded unprocessed.
func (o *Orchestrator) Run(pkgs []config.Package) []PackageResult {
	pkgs = o.releaseOrder(pkgs)

	results := make([]PackageResult, 0, len(pkgs))
	for i, pkg := range pkgs {
		log.Section(fmt.Sprintf("%s (%d/%d)", pkg.Name, i+1, len(pkgs)))

		res := o.pipeline(pkg)
		results = append(results, res)
		log.Info(fmt.Sprintf("%s: %s", pkg.Name, res.Kind))

		if res.Kind.Failing() && o.stopOnFailure() {
			log.Error(fmt.Sprintf("stopping run: %s failed with %s", pkg.Name, res.Kind))
			for _, rest := range pkgs[i+1:] {
				results = append(results, PackageResult{
					Package: rest.Name,
					Version: rest.Version,
					Kind:    ResultUnprocessed,
				})
			}
			break
		}
	}

	return results
}

// releaseOrder applies the canonical chain order to the working set. It is
// applied only when more than one package is selected and both merge and
// strict modes are active: chain members move to the front in publish
// order, all others keep their original relative order appended after.
func (o *Orchestrator) releaseOrder(pkgs []config.Package) []config.Package {
	if len(pkgs) < 2 || !o.Opts.Merge || !o.Opts.Strict {
		return pkgs
	}

	selected := make(map[string]config.Package, len(pkgs))
	for _, p := range pkgs {
		selected[p.Name] = p
	}

	ordered := make([]config.Package, 0, len(pkgs))
	inChain := map[string]bool{}
	for _, name := range config.PublishOrder {
		if p, ok := selected[name]; ok {
			ordered = append(ordered, p)
			inChain[name] = true
		}
	}
	for _, p := range pkgs {
		if !inChain[p.Name] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
