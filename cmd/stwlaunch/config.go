// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/stwsaver/stwlaunch/internal/config"
)

// newConfigCommand creates the `stwlaunch config` command group.
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize the launcher configuration",
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())
	return cmd
}

// newConfigShowCommand prints the fully resolved configuration, after
// defaults, config file, and environment have been merged.
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			cfg, path, err := cfgProvider.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
			if err != nil {
				reportUpError(cmd.ErrOrStderr(), err)
				return &ExitError{Code: 1, Err: err}
			}

			if path != "" {
				fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("# loaded from "+path))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("# defaults and environment only"))
			}

			out, err := toml.Marshal(cfg)
			if err != nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("encoding config: %w", err)}
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// newConfigInitCommand writes a starter config file with the defaults. An
// existing file is never overwritten.
func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			target := cfgFile
			if target == "" {
				dir, err := config.ConfigDir()
				if err != nil {
					return &ExitError{Code: 1, Err: err}
				}
				target = filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
			}

			if _, err := os.Stat(target); err == nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("config file already exists: %s", target)}
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("creating config directory: %w", err)}
			}

			out, err := toml.Marshal(config.DefaultConfig())
			if err != nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("encoding defaults: %w", err)}
			}
			if err := os.WriteFile(target, out, 0o644); err != nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("writing config file: %w", err)}
			}

			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("wrote ")+target)
			return nil
		},
	}
}
