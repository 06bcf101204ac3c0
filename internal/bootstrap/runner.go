// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"context"
	"os"

	"github.com/charmbracelet/log"

	"github.com/stwsaver/stwlaunch/internal/config"
	"github.com/stwsaver/stwlaunch/internal/diagnose"
	"github.com/stwsaver/stwlaunch/internal/ffmpeg"
	"github.com/stwsaver/stwlaunch/internal/handoff"
	"github.com/stwsaver/stwlaunch/internal/provision"
)

// Step names, stable for logs and tests.
const (
	StepDirectories = "provision directories"
	StepTool        = "resolve ffmpeg"
	StepDiagnostics = "diagnostics"
	StepHandoff     = "handoff"
)

type (
	// Runner assembles and executes the full launcher sequence for a loaded
	// config. The function fields default to the production implementations;
	// tests swap them to isolate sequencing behavior from side effects.
	Runner struct {
		Config *config.Config
		Logger *log.Logger
		// Diagnostics enables the optional report step before handoff.
		Diagnostics bool

		ensureDirs func(paths ...string) error
		ensureTool func(ctx context.Context, opts ffmpeg.Options) (*ffmpeg.Resolution, error)
		collect    func(cfg *config.Config) *diagnose.Report
		handoffFn  func(ctx context.Context, cfg *config.Config, toolDir string, logger *log.Logger) error
	}

	// RunnerOption overrides a Runner dependency, for tests.
	RunnerOption func(*Runner)
)

// WithEnsureDirs overrides the directory provisioning dependency.
func WithEnsureDirs(fn func(paths ...string) error) RunnerOption {
	return func(r *Runner) { r.ensureDirs = fn }
}

// WithEnsureTool overrides the ffmpeg resolution dependency.
func WithEnsureTool(fn func(ctx context.Context, opts ffmpeg.Options) (*ffmpeg.Resolution, error)) RunnerOption {
	return func(r *Runner) { r.ensureTool = fn }
}

// WithCollect overrides the diagnostics dependency.
func WithCollect(fn func(cfg *config.Config) *diagnose.Report) RunnerOption {
	return func(r *Runner) { r.collect = fn }
}

// WithHandoff overrides the handoff dependency.
func WithHandoff(fn func(ctx context.Context, cfg *config.Config, toolDir string, logger *log.Logger) error) RunnerOption {
	return func(r *Runner) { r.handoffFn = fn }
}

// NewRunner builds a Runner with production dependencies.
func NewRunner(cfg *config.Config, logger *log.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{
		Config:     cfg,
		Logger:     logger,
		ensureDirs: provision.EnsureDirs,
		ensureTool: ffmpeg.Ensure,
		collect:    diagnose.Collect,
		handoffFn:  runHandoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// runHandoff is the production handoff: project the child environment,
// resolve the server binary, and transfer control per the configured style.
func runHandoff(ctx context.Context, cfg *config.Config, toolDir string, logger *log.Logger) error {
	env := cfg.ChildEnv(os.Environ(), toolDir)
	inv, err := handoff.BuildInvocation(cfg, env)
	if err != nil {
		return err
	}
	return handoff.Run(ctx, inv, cfg.HandoffStyle, logger)
}

// Sequence builds the ordered step list. The tool step is best-effort only
// under the lenient policy; diagnostics never block the handoff.
func (r *Runner) Sequence() *Sequencer {
	cfg := r.Config
	seq := NewSequencer(r.Logger)

	// toolDir is set by the tool step iff the fallback download ran, and
	// consumed at handoff so the child's PATH covers the fresh binaries.
	var toolDir string

	seq.Add(Step{
		Name: StepDirectories,
		Run: func(context.Context) error {
			return r.ensureDirs(cfg.DownloadsDir, cfg.TempDir)
		},
	})

	seq.Add(Step{
		Name:       StepTool,
		BestEffort: cfg.ToolPolicy == config.ToolPolicyLenient,
		Run: func(ctx context.Context) error {
			res, err := r.ensureTool(ctx, ffmpeg.Options{
				SourceURL:  cfg.FFmpeg.SourceURL,
				InstallDir: cfg.FFmpeg.InstallDir,
				Logger:     r.Logger,
			})
			if err != nil {
				if cfg.ToolPolicy == config.ToolPolicyLenient {
					r.Logger.Warn("ffmpeg unavailable, audio conversion may not work", "err", err)
				}
				return err
			}
			if res.Acquired {
				toolDir = cfg.FFmpeg.InstallDir
			}
			return nil
		},
	})

	if r.Diagnostics {
		seq.Add(Step{
			Name:       StepDiagnostics,
			BestEffort: true,
			Run: func(context.Context) error {
				r.collect(cfg).Log(r.Logger)
				return nil
			},
		})
	}

	seq.Add(Step{
		Name: StepHandoff,
		Run: func(ctx context.Context) error {
			return r.handoffFn(ctx, cfg, toolDir, r.Logger)
		},
	})

	return seq
}

// Run executes the whole sequence. Under the exec handoff style a successful
// run never returns.
func (r *Runner) Run(ctx context.Context) error {
	return r.Sequence().Run(ctx)
}
