// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ToolPolicyStrict aborts the bootstrap sequence when ffmpeg cannot be
	// resolved, neither preinstalled nor via fallback acquisition.
	ToolPolicyStrict ToolPolicy = "strict"
	// ToolPolicyLenient downgrades an unresolved ffmpeg to a warning and
	// continues; audio conversion in the backend may be unavailable.
	ToolPolicyLenient ToolPolicy = "lenient"

	// HandoffExec replaces the launcher process image with the server so the
	// OS delivers signals directly to it. Unix only.
	HandoffExec HandoffStyle = "exec"
	// HandoffSpawn starts the server as a child process and waits,
	// propagating its exit code.
	HandoffSpawn HandoffStyle = "spawn"
)

var (
	// ErrInvalidToolPolicy is returned when a ToolPolicy value is not recognized.
	ErrInvalidToolPolicy = errors.New("invalid tool policy")
	// ErrInvalidHandoffStyle is returned when a HandoffStyle value is not recognized.
	ErrInvalidHandoffStyle = errors.New("invalid handoff style")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ToolPolicy decides what an unresolvable ffmpeg means for the sequence.
	ToolPolicy string

	// HandoffStyle selects how control is transferred to the server process.
	HandoffStyle string

	// InvalidToolPolicyError is returned when a ToolPolicy value is not
	// recognized. It wraps ErrInvalidToolPolicy for errors.Is() compatibility.
	InvalidToolPolicyError struct {
		Value ToolPolicy
	}

	// InvalidHandoffStyleError is returned when a HandoffStyle value is not
	// recognized. It wraps ErrInvalidHandoffStyle for errors.Is() compatibility.
	InvalidHandoffStyleError struct {
		Value HandoffStyle
	}

	// InvalidConfigError reports a field-level validation failure. It wraps
	// ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		Field  string
		Reason string
	}

	// FFmpegConfig locates the fallback archive and the install target for
	// the static ffmpeg build.
	FFmpegConfig struct {
		// SourceURL is the fixed archive fetched when ffmpeg is absent from PATH.
		SourceURL string `mapstructure:"source_url" toml:"source_url"`
		// InstallDir receives the extracted ffmpeg and ffprobe binaries and is
		// prepended to PATH for the remainder of the process tree.
		InstallDir string `mapstructure:"install_dir" toml:"install_dir"`
	}

	// Config is the launcher configuration, built once per invocation.
	Config struct {
		// Host is the bind address handed to the server.
		Host string `mapstructure:"host" toml:"host"`
		// Port is the bind port, taken from PORT when set.
		Port int `mapstructure:"port" toml:"port"`

		// DownloadsDir is the download staging area, exported as DOWNLOADS_DIR.
		DownloadsDir string `mapstructure:"downloads_dir" toml:"downloads_dir"`
		// TempDir is the temp working area, exported as TEMP_DIR.
		TempDir string `mapstructure:"temp_dir" toml:"temp_dir"`

		// MaxFileAge is the retention limit in seconds, exported as MAX_FILE_AGE.
		MaxFileAge int `mapstructure:"max_file_age" toml:"max_file_age"`
		// CleanupInterval is the backend cleanup period in seconds, exported
		// as CLEANUP_INTERVAL.
		CleanupInterval int `mapstructure:"cleanup_interval" toml:"cleanup_interval"`

		// Workers is the server worker count.
		Workers int `mapstructure:"workers" toml:"workers"`
		// KeepAliveTimeout is the server keep-alive timeout in seconds.
		KeepAliveTimeout int `mapstructure:"keepalive_timeout" toml:"keepalive_timeout"`

		// ServerCommand is the application server command line. It is split
		// with shell field rules, so quoting works as in a shell.
		ServerCommand string `mapstructure:"server_command" toml:"server_command"`

		ToolPolicy   ToolPolicy   `mapstructure:"tool_policy" toml:"tool_policy"`
		HandoffStyle HandoffStyle `mapstructure:"handoff_style" toml:"handoff_style"`

		FFmpeg FFmpegConfig `mapstructure:"ffmpeg" toml:"ffmpeg"`
	}
)

func (e *InvalidToolPolicyError) Error() string {
	return fmt.Sprintf("invalid tool policy %q (must be %q or %q)",
		e.Value, ToolPolicyStrict, ToolPolicyLenient)
}

// Unwrap returns ErrInvalidToolPolicy for errors.Is() checks.
func (e *InvalidToolPolicyError) Unwrap() error { return ErrInvalidToolPolicy }

func (e *InvalidHandoffStyleError) Error() string {
	return fmt.Sprintf("invalid handoff style %q (must be %q or %q)",
		e.Value, HandoffExec, HandoffSpawn)
}

// Unwrap returns ErrInvalidHandoffStyle for errors.Is() checks.
func (e *InvalidHandoffStyleError) Unwrap() error { return ErrInvalidHandoffStyle }

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidConfig for errors.Is() checks.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks a ToolPolicy value.
func (p ToolPolicy) Validate() error {
	switch p {
	case ToolPolicyStrict, ToolPolicyLenient:
		return nil
	default:
		return &InvalidToolPolicyError{Value: p}
	}
}

// Validate checks a HandoffStyle value.
func (s HandoffStyle) Validate() error {
	switch s {
	case HandoffExec, HandoffSpawn:
		return nil
	default:
		return &InvalidHandoffStyleError{Value: s}
	}
}

// DefaultConfig returns the built-in defaults. The directory and tuning
// defaults mirror what the backend assumes when the variables are absent;
// the port default applies only when PORT is unset.
func DefaultConfig() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             10000,
		DownloadsDir:     "/tmp/downloads",
		TempDir:          "/tmp/temp",
		MaxFileAge:       300,
		CleanupInterval:  300,
		Workers:          1,
		KeepAliveTimeout: 120,
		ServerCommand:    "uvicorn main:app",
		ToolPolicy:       ToolPolicyStrict,
		HandoffStyle:     HandoffExec,
		FFmpeg: FFmpegConfig{
			SourceURL:  "https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz",
			InstallDir: "/tmp/bin",
		},
	}
}

// Validate enforces the constraints the CUE schema cannot see from a partial
// file: the fully resolved config must be coherent before any step runs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return &InvalidConfigError{Field: "host", Reason: "must not be empty"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &InvalidConfigError{Field: "port", Reason: fmt.Sprintf("%d is outside 1-65535", c.Port)}
	}
	for field, dir := range map[string]string{
		"downloads_dir":      c.DownloadsDir,
		"temp_dir":           c.TempDir,
		"ffmpeg.install_dir": c.FFmpeg.InstallDir,
	} {
		if !filepath.IsAbs(dir) {
			return &InvalidConfigError{Field: field, Reason: fmt.Sprintf("%q is not an absolute path", dir)}
		}
	}
	if c.MaxFileAge <= 0 {
		return &InvalidConfigError{Field: "max_file_age", Reason: "must be positive"}
	}
	if c.CleanupInterval <= 0 {
		return &InvalidConfigError{Field: "cleanup_interval", Reason: "must be positive"}
	}
	if c.Workers <= 0 {
		return &InvalidConfigError{Field: "workers", Reason: "must be positive"}
	}
	if c.KeepAliveTimeout <= 0 {
		return &InvalidConfigError{Field: "keepalive_timeout", Reason: "must be positive"}
	}
	if strings.TrimSpace(c.ServerCommand) == "" {
		return &InvalidConfigError{Field: "server_command", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.FFmpeg.SourceURL) == "" {
		return &InvalidConfigError{Field: "ffmpeg.source_url", Reason: "must not be empty"}
	}
	if err := c.ToolPolicy.Validate(); err != nil {
		return err
	}
	return c.HandoffStyle.Validate()
}

// ChildEnv projects the launcher configuration into the environment handed to
// the server process. It starts from the parent environment so everything the
// hosting platform set is inherited, then overlays the exported variables.
// extraPathDir, when non-empty, is prepended to PATH so freshly installed
// tools resolve in the child and its descendants.
func (c *Config) ChildEnv(parent []string, extraPathDir string) []string {
	overlay := map[string]string{
		"DOWNLOADS_DIR":    c.DownloadsDir,
		"TEMP_DIR":         c.TempDir,
		"MAX_FILE_AGE":     strconv.Itoa(c.MaxFileAge),
		"CLEANUP_INTERVAL": strconv.Itoa(c.CleanupInterval),
		"PORT":             strconv.Itoa(c.Port),
	}

	env := make([]string, 0, len(parent)+len(overlay))
	seen := make(map[string]bool, len(overlay))
	for _, kv := range parent {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if val, hit := overlay[key]; hit {
			env = append(env, key+"="+val)
			seen[key] = true
			continue
		}
		if key == "PATH" && extraPathDir != "" {
			env = append(env, "PATH="+prependPath(kv[len("PATH="):], extraPathDir))
			seen["PATH"] = true
			continue
		}
		env = append(env, kv)
	}
	for key, val := range overlay {
		if !seen[key] {
			env = append(env, key+"="+val)
		}
	}
	if extraPathDir != "" && !seen["PATH"] {
		env = append(env, "PATH="+extraPathDir)
	}
	return env
}

// prependPath places dir at the front of a PATH-style list unless it is
// already the first entry.
func prependPath(path, dir string) string {
	if path == dir || strings.HasPrefix(path, dir+string(filepath.ListSeparator)) {
		return path
	}
	if path == "" {
		return dir
	}
	return dir + string(filepath.ListSeparator) + path
}
