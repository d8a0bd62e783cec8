package orchestrator

// ResultKind is the terminal outcome of one package's pipeline. Every
// selected package ends in exactly one kind by the time the summary prints;
// there is no in-progress state visible to reporting.
type ResultKind string

const (
	// Non-failing terminals.
	ResultSkipped     ResultKind = "skipped"
	ResultSuccess     ResultKind = "success"
	ResultDryRunOK    ResultKind = "dry-run-ok"
	ResultUnprocessed ResultKind = "unprocessed"

	// Failing terminals.
	ResultUnsafeRepo          ResultKind = "unsafe-repo"
	ResultRequirementsInvalid ResultKind = "requirements-invalid"
	ResultRegistryMissing     ResultKind = "registry-missing"
	ResultBuildFailed         ResultKind = "build-failed"
	ResultPushFailed          ResultKind = "push-failed"
	ResultMergeConflict       ResultKind = "merge-conflict"
	ResultMergeFailed         ResultKind = "merge-failed"
	ResultWorkflowFailed      ResultKind = "workflow-failed"
)

// Failing reports whether the kind represents a failure. Unprocessed
// packages were never started, so they are not themselves failures — the
// failure that stopped the run is recorded on the package that caused it.
func (k ResultKind) Failing() bool {
	switch k {
	case ResultSkipped, ResultSuccess, ResultDryRunOK, ResultUnprocessed:
		return false
	}
	return true
}

// PackageResult is the immutable outcome of one package's pipeline
// invocation. It is written once by the pipeline and collected by the
// orchestrator; no other component mutates result state.
type PackageResult struct {
	Package string
	Version string
	Kind    ResultKind

	// Detail carries the operator-facing reason for failures (first
	// diagnostic line, conflicting files, unsafe reason). Empty on
	// non-failing results.
	Detail string
}

// ExitCode returns 0 if every result is non-failing, 1 otherwise.
func ExitCode(results []PackageResult) int {
	for _, r := range results {
		if r.Kind.Failing() {
			return 1
		}
	}
	return 0
}
