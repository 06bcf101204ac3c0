// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/stwsaver/stwlaunch/internal/bootstrap"
	"github.com/stwsaver/stwlaunch/internal/config"
	"github.com/stwsaver/stwlaunch/internal/handoff"
	"github.com/stwsaver/stwlaunch/internal/issue"
)

// upParams bundles the dependencies and flags for the up command, enabling
// the core logic in runUp to be tested without a real Cobra command or any
// filesystem and network side effects.
type upParams struct {
	stdout      io.Writer
	stderr      io.Writer
	logger      *log.Logger
	cfg         *config.Config
	diagnostics bool
	dryRun      bool
	spawn       bool

	// runnerOpts inject test doubles into the bootstrap runner.
	runnerOpts []bootstrap.RunnerOption
}

// newUpCommand creates the `stwlaunch up` command: run the full bootstrap
// sequence and hand control to the application server.
func newUpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bootstrap the environment and start the server",
		Long: `Bootstrap the environment and start the server.

The sequence is strictly ordered: provision the writable directories,
resolve ffmpeg (downloading the static build only when it is absent),
optionally report diagnostics, then hand off to the application server.
Under the default exec handoff the launcher process is replaced entirely,
so on success this command never returns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			diagnostics, _ := cmd.Flags().GetBool("diagnostics")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			spawn, _ := cmd.Flags().GetBool("spawn")

			cfg, _, err := cfgProvider.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
			if err != nil {
				wrapped := issue.Wrap(err, "load configuration", cfgFile,
					"Run 'stwlaunch config show' to inspect the defaults",
					"Environment variables override the config file")
				reportUpError(cmd.ErrOrStderr(), wrapped)
				return &ExitError{Code: 1, Err: wrapped}
			}

			p := upParams{
				stdout:      cmd.OutOrStdout(),
				stderr:      cmd.ErrOrStderr(),
				logger:      newLogger(),
				cfg:         cfg,
				diagnostics: diagnostics,
				dryRun:      dryRun,
				spawn:       spawn,
			}

			if err := runUp(cmd.Context(), p); err != nil {
				reportUpError(p.stderr, err)
				return &ExitError{Code: exitCodeFor(err), Err: err}
			}
			return nil
		},
	}

	cmd.Flags().Bool("diagnostics", false, "Report environment facts before handoff")
	cmd.Flags().Bool("dry-run", false, "Print the bootstrap plan without side effects")
	cmd.Flags().Bool("spawn", false, "Keep the launcher resident instead of replacing its process image")

	return cmd
}

// runUp is the core bootstrap logic, separated from Cobra for testability.
func runUp(ctx context.Context, p upParams) error {
	if p.spawn {
		p.cfg.HandoffStyle = config.HandoffSpawn
	}

	runner := bootstrap.NewRunner(p.cfg, p.logger, p.runnerOpts...)
	runner.Diagnostics = p.diagnostics

	if p.dryRun {
		return printPlan(p.stdout, runner)
	}

	// Under exec handoff, success never returns from here.
	return runner.Run(ctx)
}

// printPlan writes the resolved step list, the server argv, and the exported
// variables that would reach the child. Nothing is executed.
func printPlan(w io.Writer, runner *bootstrap.Runner) error {
	cfg := runner.Config

	fmt.Fprintln(w, TitleStyle.Render("Bootstrap plan"))
	for i, name := range runner.Sequence().Names() {
		fmt.Fprintf(w, "  %d. %s\n", i+1, name)
	}
	if cfg.ToolPolicy == config.ToolPolicyLenient {
		fmt.Fprintln(w, WarningStyle.Render("  tool policy is lenient: a failed ffmpeg step will not abort startup"))
	}

	argv, err := handoff.BuildArgv(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, TitleStyle.Render("Server command"))
	fmt.Fprintf(w, "  %s\n", strings.Join(argv, " "))

	fmt.Fprintln(w, TitleStyle.Render("Exported environment"))
	fmt.Fprintf(w, "  DOWNLOADS_DIR=%s\n", cfg.DownloadsDir)
	fmt.Fprintf(w, "  TEMP_DIR=%s\n", cfg.TempDir)
	fmt.Fprintf(w, "  MAX_FILE_AGE=%d\n", cfg.MaxFileAge)
	fmt.Fprintf(w, "  CLEANUP_INTERVAL=%d\n", cfg.CleanupInterval)
	fmt.Fprintf(w, "  PORT=%d\n", cfg.Port)
	return nil
}

// reportUpError prints the failure and, when the error class has operator
// guidance, the rendered help below it.
func reportUpError(w io.Writer, err error) {
	var actionable *issue.ActionableError
	if errors.As(err, &actionable) {
		fmt.Fprintln(w, ErrorStyle.Render("Error: ")+actionable.Format(verbose))
	} else {
		fmt.Fprintln(w, ErrorStyle.Render("Error: ")+err.Error())
	}

	if g := issue.For(err); g != nil {
		// stderr is usually a log pipe in the target deployment; plain
		// rendering keeps the guidance grep-able.
		if out, renderErr := g.Render("notty"); renderErr == nil {
			fmt.Fprintln(w, out)
		}
	}
}

// exitCodeFor maps a bootstrap failure to the process exit code. A spawned
// server's own exit status passes through; everything else is the generic
// failure code.
func exitCodeFor(err error) int {
	var exitStatus *handoff.ExitStatusError
	if errors.As(err, &exitStatus) && exitStatus.Code != 0 {
		return exitStatus.Code
	}
	return 1
}
