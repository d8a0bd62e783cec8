// Package cmd defines the releasechain command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "v0.2.0"

var rootCmd = &cobra.Command{
	Use:   "releasechain",
	Short: "releasechain promotes a chain of interdependent packages to release",
	Long: "releasechain safely promotes each package's development branch to mainline,\n" +
		"keeps inter-package version pins consistent, and coordinates with the\n" +
		"downstream CI publish workflow.",
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
}
