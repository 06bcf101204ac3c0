// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stwsaver/stwlaunch/internal/config"
	"github.com/stwsaver/stwlaunch/internal/diagnose"
	"github.com/stwsaver/stwlaunch/internal/issue"
	"github.com/stwsaver/stwlaunch/internal/provision"
)

// newDoctorCommand creates the `stwlaunch doctor` command: run the
// diagnostics report without starting the server. The directories are
// provisioned first so the write smoke test exercises the real locations.
func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report environment facts without starting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			cfg, _, err := cfgProvider.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
			if err != nil {
				reportUpError(cmd.ErrOrStderr(), err)
				return &ExitError{Code: 1, Err: err}
			}

			logger := newLogger()

			if err := provision.EnsureDirs(cfg.DownloadsDir, cfg.TempDir); err != nil {
				wrapped := issue.Wrap(err, "provision directories", "",
					"Keep downloads_dir and temp_dir under a writable root such as /tmp")
				reportUpError(cmd.ErrOrStderr(), wrapped)
				return &ExitError{Code: 1, Err: wrapped}
			}

			report := diagnose.Collect(cfg)
			report.Log(logger)

			if missing := report.MissingTools(); len(missing) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render("tools missing: "+strings.Join(missing, ", ")))
			}

			if !report.Healthy() {
				fmt.Fprintln(cmd.OutOrStdout(), ErrorStyle.Render("environment not ready"))
				return &ExitError{Code: 1}
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("environment ready"))
			return nil
		},
	}
}
