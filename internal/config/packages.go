package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// PackageConfig describes one package in the release chain. The table below
// is the single source of truth for chain membership, publish order, and
// dependency pins — it is fixed at compile time, not discovered.
type PackageConfig struct {
	// Name is the package directory and import name (e.g. "pythontk").
	Name string

	// PyPIName is set when the registry project name differs from the
	// directory name (e.g. "tentacle" publishes as "tentacletk").
	PyPIName string

	// DependsOn lists the sibling packages whose exact versions this
	// package must pin in its requirements.txt. Every entry must appear
	// before this package in PublishOrder.
	DependsOn []string

	// Strict marks a package as eligible for build validation, pin
	// synchronization, and workflow waiting.
	Strict bool
}

// PyPI returns the registry project name for the package.
func (p PackageConfig) PyPI() string {
	if p.PyPIName != "" {
		return p.PyPIName
	}
	return p.Name
}

// Packages is the canonical package table for the release chain.
var Packages = map[string]PackageConfig{
	"pythontk": {
		Name:   "pythontk",
		Strict: true,
	},
	"uitk": {
		Name:      "uitk",
		DependsOn: []string{"pythontk"},
		Strict:    true,
	},
	"mayatk": {
		Name:      "mayatk",
		DependsOn: []string{"pythontk", "uitk"},
		Strict:    true,
	},
	"tentacle": {
		Name:      "tentacle",
		PyPIName:  "tentacletk",
		DependsOn: []string{"pythontk", "uitk", "mayatk"},
		Strict:    true,
	},
}

// PublishOrder is the canonical release order, topologically sorted by
// DependsOn. Packages outside this list are auxiliary: pushed and merged but
// never validated, pin-synced, or waited on.
var PublishOrder = []string{"pythontk", "uitk", "mayatk", "tentacle"}

func init() {
	if errs := validateChain(); len(errs) > 0 {
		panic(fmt.Sprintf("package table validation failed: %v", errs))
	}
}

// validateChain checks that every package's dependencies appear earlier in
// PublishOrder. Returns a list of human-readable errors, empty when valid.
func validateChain() []string {
	var errs []string

	seen := map[string]bool{}
	for _, name := range PublishOrder {
		pkg, ok := Packages[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s is in PublishOrder but not in Packages", name))
			continue
		}
		for _, dep := range pkg.DependsOn {
			if !seen[dep] {
				errs = append(errs, fmt.Sprintf("%s depends on %s but %s does not come earlier in PublishOrder", name, dep, dep))
			}
		}
		seen[name] = true
	}

	return errs
}

// Get returns the table entry for name, or an error listing valid names.
func Get(name string) (PackageConfig, error) {
	pkg, ok := Packages[name]
	if !ok {
		return PackageConfig{}, fmt.Errorf("unknown package %q: available: %v", name, PublishOrder)
	}
	return pkg, nil
}

// PackagePath returns the filesystem path of a package under root.
func PackagePath(root, name string) string {
	return filepath.Join(root, name)
}

// Package is one member of a run's working set: a table entry resolved
// against the filesystem. Immutable for the duration of a run.
type Package struct {
	Name    string
	Path    string
	PyPI    string
	Strict  bool
	Version string
}

// versionPattern matches __version__ = "x.y.z" in a package's __init__.py,
// with either quote style.
var versionPattern = regexp.MustCompile(`__version__\s*=\s*["']([^"']+)["']`)

// ReadVersion extracts the declared version from <pkgPath>/<name>/__init__.py
// without executing anything.
func ReadVersion(pkgPath, name string) (string, error) {
	initPath := filepath.Join(pkgPath, name, "__init__.py")
	data, err := os.ReadFile(initPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", initPath, err)
	}
	m := versionPattern.FindSubmatch(data)
	if m == nil {
		return "", fmt.Errorf("no __version__ found in %s", initPath)
	}
	return string(m[1]), nil
}

// Discover resolves a selection of package names against root and returns
// the working set in the order given. An empty selection selects every
// directory under root that appears in the package table, in PublishOrder
// first and then any extras sorted by name.
//
// A strict package with no readable version is an error; auxiliary packages
// may have none.
func Discover(root string, selection []string) ([]Package, error) {
	if len(selection) == 0 {
		selection = defaultSelection(root)
	}

	var pkgs []Package
	for _, name := range selection {
		path := PackagePath(root, name)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("package %q not found at %s", name, path)
		}

		cfg, tableErr := Get(name)
		strict := tableErr == nil && cfg.Strict

		pypi := name
		if tableErr == nil {
			pypi = cfg.PyPI()
		}

		version, err := ReadVersion(path, name)
		if err != nil && strict {
			return nil, fmt.Errorf("package %q: %w", name, err)
		}

		pkgs = append(pkgs, Package{
			Name:    name,
			Path:    path,
			PyPI:    pypi,
			Strict:  strict,
			Version: version,
		})
	}
	return pkgs, nil
}

// defaultSelection lists packages present under root: chain members in
// PublishOrder, then any other directories with a recognisable
// <dir>/<dir>/__init__.py layout, sorted by name.
func defaultSelection(root string) []string {
	var names []string
	for _, name := range PublishOrder {
		if info, err := os.Stat(PackagePath(root, name)); err == nil && info.IsDir() {
			names = append(names, name)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return names
	}
	var extras []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := Packages[e.Name()]; ok {
			continue
		}
		init := filepath.Join(root, e.Name(), e.Name(), "__init__.py")
		if _, err := os.Stat(init); err == nil {
			extras = append(extras, e.Name())
		}
	}
	sort.Strings(extras)
	return append(names, extras...)
}
