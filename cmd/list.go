package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/m3trik/releasechain/internal/config"
	"github.com/m3trik/releasechain/internal/git"
)

var listRoot string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the package table and per-repo safety status",
	Long: "Print every package found under the root directory with its version,\n" +
		"pin set, and whether its repository is currently safe to automate.\n" +
		"Read-only: nothing is fetched, committed, or pushed.",
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listRoot, "root", "", "root directory containing the package repositories")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	var root string
	var err error
	if listRoot != "" {
		root, err = filepath.Abs(listRoot)
	} else {
		root, err = resolveRoot()
	}
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(filepath.Join(root, "releasechain.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pkgs, err := config.Discover(root, nil)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return fmt.Errorf("no packages found under %s", root)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PACKAGE", "VERSION", "STRICT", "PINS", "SAFETY")

	for _, pkg := range pkgs {
		pins := "-"
		if c, err := config.Get(pkg.Name); err == nil && len(c.DependsOn) > 0 {
			pins = strings.Join(c.DependsOn, ", ")
		}

		safety := "safe"
		if err := git.CheckSafety(pkg.Path, git.SafetyOptions{
			Remote:     cfg.Remote,
			MainBranch: cfg.MainBranch,
			DevBranch:  cfg.DevBranch,
		}); err != nil {
			safety = err.Error()
		}

		version := pkg.Version
		if version == "" {
			version = "-"
		}
		strict := "no"
		if pkg.Strict {
			strict = "yes"
		}
		t.Row(pkg.Name, version, strict, pins, safety)
	}

	fmt.Println(t)
	return nil
}
