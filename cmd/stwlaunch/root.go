// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for stwlaunch.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/stwsaver/stwlaunch/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug-level logging
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// cfgProvider resolves the launcher configuration for every command.
	// Tests swap it for a provider returning a canned config.
	cfgProvider config.Provider = config.NewProvider()

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "stwlaunch",
		Short: "Bootstrap launcher for the STWSAVER media backend",
		Long: TitleStyle.Render("stwlaunch") + SubtitleStyle.Render(" - bootstrap launcher for the STWSAVER media backend") + `

stwlaunch brings a runtime environment from uninitialized to ready:
it provisions the writable download and temp directories, resolves
ffmpeg (fetching a static build when it is not preinstalled), projects
the backend's environment variables, and finally hands control to the
application server - replacing its own process image so signals reach
the server directly.

` + SubtitleStyle.Render("Examples:") + `
  stwlaunch up                 Bootstrap and start the server
  stwlaunch up --diagnostics   Report environment facts before handoff
  stwlaunch up --dry-run       Show the plan without side effects
  stwlaunch doctor             Diagnostics only, never starts the server
  stwlaunch config show        Show the resolved configuration`,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/stwlaunch/config.toml)")

	// Add subcommands
	rootCmd.AddCommand(newUpCommand())
	rootCmd.AddCommand(newDoctorCommand())
	rootCmd.AddCommand(newConfigCommand())
}

// newLogger builds the structured logger shared by the bootstrap steps.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "stwlaunch",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
