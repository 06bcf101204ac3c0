// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "stwlaunch"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix is the prefix for launcher-specific environment overrides.
	EnvPrefix = "STWLAUNCH"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the stwlaunch configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. Callers that want caching can wrap this function.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	// Set defaults
	defaults := DefaultConfig()
	v.SetDefault("host", defaults.Host)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("downloads_dir", defaults.DownloadsDir)
	v.SetDefault("temp_dir", defaults.TempDir)
	v.SetDefault("max_file_age", defaults.MaxFileAge)
	v.SetDefault("cleanup_interval", defaults.CleanupInterval)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("keepalive_timeout", defaults.KeepAliveTimeout)
	v.SetDefault("server_command", defaults.ServerCommand)
	v.SetDefault("tool_policy", string(defaults.ToolPolicy))
	v.SetDefault("handoff_style", string(defaults.HandoffStyle))
	v.SetDefault("ffmpeg.source_url", defaults.FFmpeg.SourceURL)
	v.SetDefault("ffmpeg.install_dir", defaults.FFmpeg.InstallDir)

	// The hosting platform speaks through bare, well-known variable names;
	// everything else is reachable under the STWLAUNCH_ prefix.
	bindEnvs(v)

	resolvedPath := ""

	// If a custom config file path is set via the --config flag, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config file %s: %w", opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		tomlPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(tomlPath) {
			v.SetConfigFile(tomlPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, "", fmt.Errorf("failed to read config file %s: %w", tomlPath, err)
			}
			resolvedPath = tomlPath
		}
		// If no config file found, use defaults (no error)
	}

	cfg := &Config{
		Host:             v.GetString("host"),
		Port:             v.GetInt("port"),
		DownloadsDir:     v.GetString("downloads_dir"),
		TempDir:          v.GetString("temp_dir"),
		MaxFileAge:       v.GetInt("max_file_age"),
		CleanupInterval:  v.GetInt("cleanup_interval"),
		Workers:          v.GetInt("workers"),
		KeepAliveTimeout: v.GetInt("keepalive_timeout"),
		ServerCommand:    v.GetString("server_command"),
		ToolPolicy:       ToolPolicy(v.GetString("tool_policy")),
		HandoffStyle:     HandoffStyle(v.GetString("handoff_style")),
		FFmpeg: FFmpegConfig{
			SourceURL:  v.GetString("ffmpeg.source_url"),
			InstallDir: v.GetString("ffmpeg.install_dir"),
		},
	}

	if err := validateAgainstSchema(cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, resolvedPath, nil
}

// bindEnvs wires the externally documented variables to their bare names and
// enables STWLAUNCH_-prefixed overrides for the rest.
func bindEnvs(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare names are the contract with the hosting platform and the backend.
	_ = v.BindEnv("port", "STWLAUNCH_PORT", "PORT")
	_ = v.BindEnv("downloads_dir", "STWLAUNCH_DOWNLOADS_DIR", "DOWNLOADS_DIR")
	_ = v.BindEnv("temp_dir", "STWLAUNCH_TEMP_DIR", "TEMP_DIR")
	_ = v.BindEnv("max_file_age", "STWLAUNCH_MAX_FILE_AGE", "MAX_FILE_AGE")
	_ = v.BindEnv("cleanup_interval", "STWLAUNCH_CLEANUP_INTERVAL", "CLEANUP_INTERVAL")
}

// validateAgainstSchema unifies the resolved config with the embedded CUE
// schema. This catches constraint violations regardless of which layer
// (default, file, environment) supplied the offending value.
func validateAgainstSchema(cfg *Config) error {
	cuectx := cuecontext.New()

	schemaValue := cuectx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	resolved := cuectx.Encode(schemaMap(cfg))
	if resolved.Err() != nil {
		return fmt.Errorf("internal error: failed to encode config: %w", resolved.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(resolved)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &InvalidConfigError{Field: "(schema)", Reason: err.Error()}
	}

	return nil
}

// schemaMap renders the config in the shape the CUE schema expects.
func schemaMap(cfg *Config) map[string]any {
	return map[string]any{
		"host":              cfg.Host,
		"port":              cfg.Port,
		"downloads_dir":     cfg.DownloadsDir,
		"temp_dir":          cfg.TempDir,
		"max_file_age":      cfg.MaxFileAge,
		"cleanup_interval":  cfg.CleanupInterval,
		"workers":           cfg.Workers,
		"keepalive_timeout": cfg.KeepAliveTimeout,
		"server_command":    cfg.ServerCommand,
		"tool_policy":       string(cfg.ToolPolicy),
		"handoff_style":     string(cfg.HandoffStyle),
		"ffmpeg": map[string]any{
			"source_url":  cfg.FFmpeg.SourceURL,
			"install_dir": cfg.FFmpeg.InstallDir,
		},
	}
}

// configDirWithOverride resolves the config directory, honoring an explicit
// override from LoadOptions before the package-level test override.
func configDirWithOverride(dirOverride string) (string, error) {
	if dirOverride != "" {
		return dirOverride, nil
	}
	return ConfigDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
