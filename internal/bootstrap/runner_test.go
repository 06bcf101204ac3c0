// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/stwsaver/stwlaunch/internal/config"
	"github.com/stwsaver/stwlaunch/internal/diagnose"
	"github.com/stwsaver/stwlaunch/internal/ffmpeg"
	"github.com/stwsaver/stwlaunch/internal/provision"
)

// handoffRecorder captures the handoff call without starting anything.
type handoffRecorder struct {
	called  bool
	port    int
	toolDir string
}

func (h *handoffRecorder) fn(_ context.Context, cfg *config.Config, toolDir string, _ *log.Logger) error {
	h.called = true
	h.port = cfg.Port
	h.toolDir = toolDir
	return nil
}

// toolStub fakes ffmpeg resolution and counts invocations.
type toolStub struct {
	calls int
	res   *ffmpeg.Resolution
	err   error
}

func (s *toolStub) fn(context.Context, ffmpeg.Options) (*ffmpeg.Resolution, error) {
	s.calls++
	return s.res, s.err
}

func testRunnerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	root := t.TempDir()
	cfg.DownloadsDir = filepath.Join(root, "downloads")
	cfg.TempDir = filepath.Join(root, "temp")
	cfg.FFmpeg.InstallDir = filepath.Join(root, "bin")
	return cfg
}

// Scenario: directories absent, tool preinstalled, PORT resolved to 8080.
func TestRunToolPresentProvisionsAndHandsOff(t *testing.T) {
	cfg := testRunnerConfig(t)
	cfg.Port = 8080

	tool := &toolStub{res: &ffmpeg.Resolution{FFmpegPath: "/usr/bin/ffmpeg"}}
	rec := &handoffRecorder{}

	r := NewRunner(cfg, nil, WithEnsureTool(tool.fn), WithHandoff(rec.fn))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, dir := range []string{cfg.DownloadsDir, cfg.TempDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory not provisioned: %v", err)
		}
	}
	if !rec.called {
		t.Fatal("handoff never invoked")
	}
	if rec.port != 8080 {
		t.Errorf("handoff port = %d, want 8080", rec.port)
	}
	if rec.toolDir != "" {
		t.Errorf("toolDir = %q, want empty for preinstalled tool", rec.toolDir)
	}
	if tool.calls != 1 {
		t.Errorf("tool resolutions = %d, want 1", tool.calls)
	}
}

// Scenario: directories already present, tool acquired via fallback,
// PORT unset so the documented default applies.
func TestRunToolAcquiredUsesDefaultPort(t *testing.T) {
	cfg := testRunnerConfig(t)
	if err := os.MkdirAll(cfg.DownloadsDir, 0o755); err != nil {
		t.Fatalf("pre-creating dirs: %v", err)
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		t.Fatalf("pre-creating dirs: %v", err)
	}

	tool := &toolStub{res: &ffmpeg.Resolution{
		FFmpegPath: filepath.Join(cfg.FFmpeg.InstallDir, "ffmpeg"),
		Acquired:   true,
	}}
	rec := &handoffRecorder{}

	r := NewRunner(cfg, nil, WithEnsureTool(tool.fn), WithHandoff(rec.fn))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tool.calls != 1 {
		t.Errorf("tool resolutions = %d, want exactly 1", tool.calls)
	}
	if rec.port != 10000 {
		t.Errorf("handoff port = %d, want default 10000", rec.port)
	}
	if rec.toolDir != cfg.FFmpeg.InstallDir {
		t.Errorf("toolDir = %q, want install dir for acquired tool", rec.toolDir)
	}
}

// Scenario: directory provisioning fails; nothing else may run.
func TestRunDirectoryFailureAbortsBeforeToolAndHandoff(t *testing.T) {
	cfg := testRunnerConfig(t)

	tool := &toolStub{res: &ffmpeg.Resolution{}}
	rec := &handoffRecorder{}

	r := NewRunner(cfg, nil,
		WithEnsureDirs(func(...string) error {
			return &provision.DirError{Path: cfg.DownloadsDir, Reason: "permission denied"}
		}),
		WithEnsureTool(tool.fn),
		WithHandoff(rec.fn),
	)

	err := r.Run(context.Background())
	if !errors.Is(err, provision.ErrDirUnavailable) {
		t.Errorf("Run = %v, want ErrDirUnavailable", err)
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepDirectories {
		t.Errorf("failing step = %+v, want %q", stepErr, StepDirectories)
	}
	if tool.calls != 0 {
		t.Error("tool resolution ran after directory failure")
	}
	if rec.called {
		t.Error("handoff ran after directory failure")
	}
}

func TestRunStrictPolicyAbortsOnToolFailure(t *testing.T) {
	cfg := testRunnerConfig(t)
	cfg.ToolPolicy = config.ToolPolicyStrict

	tool := &toolStub{err: &ffmpeg.NotFoundError{Missing: []string{"ffmpeg", "ffprobe"}}}
	rec := &handoffRecorder{}

	r := NewRunner(cfg, nil, WithEnsureTool(tool.fn), WithHandoff(rec.fn))

	err := r.Run(context.Background())
	if !errors.Is(err, ffmpeg.ErrToolNotFound) {
		t.Errorf("Run = %v, want ErrToolNotFound", err)
	}
	if rec.called {
		t.Error("handoff ran despite strict tool failure")
	}
}

func TestRunLenientPolicyContinuesOnToolFailure(t *testing.T) {
	cfg := testRunnerConfig(t)
	cfg.ToolPolicy = config.ToolPolicyLenient

	tool := &toolStub{err: &ffmpeg.NetworkError{URL: cfg.FFmpeg.SourceURL, Cause: errors.New("refused")}}
	rec := &handoffRecorder{}

	r := NewRunner(cfg, nil, WithEnsureTool(tool.fn), WithHandoff(rec.fn))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rec.called {
		t.Error("handoff skipped under lenient policy")
	}
	if rec.toolDir != "" {
		t.Errorf("toolDir = %q after failed acquisition", rec.toolDir)
	}
}

func TestRunDiagnosticsStepIsOptionalAndBestEffort(t *testing.T) {
	cfg := testRunnerConfig(t)
	tool := &toolStub{res: &ffmpeg.Resolution{}}
	rec := &handoffRecorder{}

	r := NewRunner(cfg, nil, WithEnsureTool(tool.fn), WithHandoff(rec.fn))
	names := r.Sequence().Names()
	for _, name := range names {
		if name == StepDiagnostics {
			t.Errorf("diagnostics present without opt-in: %v", names)
		}
	}

	var collected bool
	r = NewRunner(cfg, nil,
		WithEnsureTool(tool.fn),
		WithHandoff(rec.fn),
		WithCollect(func(c *config.Config) *diagnose.Report {
			collected = true
			return diagnose.Collect(c)
		}),
	)
	r.Diagnostics = true

	found := false
	for _, name := range r.Sequence().Names() {
		if name == StepDiagnostics {
			found = true
		}
	}
	if !found {
		t.Error("diagnostics step missing after opt-in")
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run with diagnostics: %v", err)
	}
	if !collected {
		t.Error("diagnostics report never collected")
	}
	if !rec.called {
		t.Error("handoff not reached with diagnostics enabled")
	}
}
