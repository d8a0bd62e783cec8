// Package log provides colored terminal output for the release orchestrator.
package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles for the leveled output prefixes.
var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// sectionLine is the separator printed above and below section titles.
var sectionLine = strings.Repeat("━", 46)

// OsExit is the function called by Fatal to terminate the process.
// It is a package-level variable so tests can replace it without subprocess
// overhead.
var OsExit = os.Exit

// Info prints an [INFO] message to stdout.
func Info(msg string) {
	fmt.Printf("%s %s\n", infoStyle.Render("[INFO]"), msg)
}

// Success prints a green [SUCCESS] message to stdout.
func Success(msg string) {
	fmt.Printf("%s %s\n", successStyle.Render("[SUCCESS]"), msg)
}

// Warning prints a yellow [WARNING] message to stdout.
func Warning(msg string) {
	fmt.Printf("%s %s\n", warningStyle.Render("[WARNING]"), msg)
}

// Error prints a red [ERROR] message to stdout.
func Error(msg string) {
	fmt.Printf("%s %s\n", errorStyle.Render("[ERROR]"), msg)
}

// Fatal prints a red [ERROR] message then exits with status 1.
func Fatal(msg string) {
	Error(msg)
	OsExit(1)
}

// Section prints a box-draw separator with a title, marking the start of one
// package's pipeline in the run log.
func Section(title string) {
	fmt.Printf("\n%s\n", sectionStyle.Render(sectionLine))
	fmt.Printf("%s\n", sectionStyle.Render(title))
	fmt.Printf("%s\n\n", sectionStyle.Render(sectionLine))
}
