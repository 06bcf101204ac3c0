// SPDX-License-Identifier: MPL-2.0

// Package diagnose reports runtime facts for operator visibility: the Go
// runtime, the presence of the executables the backend leans on, a write
// smoke test on the provisioned directories, and whether the process is
// running on a detected hosting platform. Nothing downstream consumes the
// report; it exists purely so a failed deploy can be read off the logs.
package diagnose

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/stwsaver/stwlaunch/internal/config"
	"github.com/stwsaver/stwlaunch/internal/provision"
)

// relevantTools is the fixed set of executables worth reporting: the server
// stack and the media toolchain the backend shells out to.
var relevantTools = []string{"python3", "uvicorn", "ffmpeg", "ffprobe", "yt-dlp"}

//nolint:gochecknoglobals // Test seam for exec.LookPath().
var lookPath = exec.LookPath

type (
	// ToolStatus records one executable probe.
	ToolStatus struct {
		Name  string
		Path  string
		Found bool
	}

	// DirStatus records one directory write smoke test.
	DirStatus struct {
		Path     string
		Writable bool
		Err      error
	}

	// Report is a point-in-time snapshot of the environment.
	Report struct {
		GoVersion      string
		Platform       string
		RenderDetected bool
		Tools          []ToolStatus
		Dirs           []DirStatus
	}
)

// Collect gathers the report. It never fails: a missing tool or an
// unwritable directory is a finding, not an error.
func Collect(cfg *config.Config) *Report {
	r := &Report{
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		// RENDER is presence-only; the hosting platform sets it with no
		// meaningful value.
		RenderDetected: os.Getenv("RENDER") != "",
	}

	for _, name := range relevantTools {
		status := ToolStatus{Name: name}
		if path, err := lookPath(name); err == nil {
			status.Path = path
			status.Found = true
		}
		r.Tools = append(r.Tools, status)
	}

	for _, dir := range []string{cfg.DownloadsDir, cfg.TempDir} {
		status := DirStatus{Path: dir}
		if err := provision.CheckWritable(dir); err != nil {
			status.Err = err
		} else {
			status.Writable = true
		}
		r.Dirs = append(r.Dirs, status)
	}

	return r
}

// Log writes the report through the structured logger, one line per fact.
func (r *Report) Log(logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}

	logger.Info("runtime", "go", r.GoVersion, "platform", r.Platform)
	if r.RenderDetected {
		logger.Info("hosting platform detected", "platform", "render")
	}
	for _, tool := range r.Tools {
		if tool.Found {
			logger.Info("tool present", "name", tool.Name, "path", tool.Path)
		} else {
			logger.Warn("tool missing", "name", tool.Name)
		}
	}
	for _, dir := range r.Dirs {
		if dir.Writable {
			logger.Info("directory writable", "path", dir.Path)
		} else {
			logger.Warn("directory not writable", "path", dir.Path, "err", dir.Err)
		}
	}
}

// MissingTools returns the names of the probed executables that were not
// found on PATH, in probe order.
func (r *Report) MissingTools() []string {
	var missing []string
	for _, tool := range r.Tools {
		if !tool.Found {
			missing = append(missing, tool.Name)
		}
	}
	return missing
}

// Healthy reports whether every directory passed its write smoke test. Tool
// absence is intentionally excluded: the bootstrap's tool policy owns that
// decision.
func (r *Report) Healthy() bool {
	for _, dir := range r.Dirs {
		if !dir.Writable {
			return false
		}
	}
	return true
}
