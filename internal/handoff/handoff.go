// SPDX-License-Identifier: MPL-2.0

// Package handoff transfers control from the launcher to the application
// server. The preferred style replaces the launcher's process image so the
// operating system delivers termination and reload signals directly to the
// server; the spawn style keeps the launcher resident as a thin parent and
// propagates the child's exit code.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"

	"github.com/stwsaver/stwlaunch/internal/config"
)

var (
	// ErrServerNotFound indicates the server command is not resolvable on PATH.
	ErrServerNotFound = errors.New("server command not found")
	// ErrEmptyCommand indicates the configured server command parsed to nothing.
	ErrEmptyCommand = errors.New("server command is empty")

	//nolint:gochecknoglobals // Test seam for exec.LookPath().
	lookPath = exec.LookPath
)

type (
	// ServerNotFoundError reports an unresolvable server binary. It wraps
	// ErrServerNotFound for errors.Is() compatibility.
	ServerNotFoundError struct {
		Command string
		Cause   error
	}

	// ExitStatusError carries a non-zero exit code from a spawned server back
	// to the CLI layer.
	ExitStatusError struct {
		Code int
	}

	// Invocation is a fully resolved server start: absolute binary path,
	// complete argv (argv[0] included), and the projected child environment.
	Invocation struct {
		Path string
		Argv []string
		Env  []string
	}
)

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server command %q not found on PATH: %v", e.Command, e.Cause)
}

// Unwrap returns ErrServerNotFound for errors.Is() checks.
func (e *ServerNotFoundError) Unwrap() error { return ErrServerNotFound }

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("server exited with status %d", e.Code)
}

// BuildArgv assembles the server argv from the configured command line plus
// the bind and tuning flags. The command string is split with shell field
// rules so quoting behaves the way an operator expects. No PATH resolution
// happens here, which makes it safe for dry-run previews.
func BuildArgv(cfg *config.Config) ([]string, error) {
	fields, err := shell.Fields(cfg.ServerCommand, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing server command %q: %w", cfg.ServerCommand, err)
	}
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}

	return append(fields,
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
		"--workers", strconv.Itoa(cfg.Workers),
		"--timeout-keep-alive", strconv.Itoa(cfg.KeepAliveTimeout),
	), nil
}

// BuildInvocation builds the argv and resolves the server binary on PATH.
// The resolution happens here, before any exec attempt, so a missing server
// binary surfaces as a typed error instead of a late exec failure.
func BuildInvocation(cfg *config.Config, env []string) (*Invocation, error) {
	argv, err := BuildArgv(cfg)
	if err != nil {
		return nil, err
	}

	path, err := lookPath(argv[0])
	if err != nil {
		return nil, &ServerNotFoundError{Command: argv[0], Cause: err}
	}

	return &Invocation{Path: path, Argv: argv, Env: env}, nil
}

// Run hands control to the server. Under HandoffExec on a unix system it
// does not return on success: the launcher's process image is replaced.
// Under HandoffSpawn (and always on Windows, which cannot replace a process
// image) the server runs as a child and Run returns after it exits, with an
// ExitStatusError for any non-zero status.
func Run(ctx context.Context, inv *Invocation, style config.HandoffStyle, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	if style == config.HandoffExec && runtime.GOOS == "windows" {
		logger.Warn("exec handoff unavailable on windows, spawning instead")
		style = config.HandoffSpawn
	}

	switch style {
	case config.HandoffExec:
		logger.Info("replacing process image", "path", inv.Path, "argv", inv.Argv)
		return replaceProcess(inv)
	case config.HandoffSpawn:
		return spawn(ctx, inv, logger)
	default:
		return &config.InvalidHandoffStyleError{Value: style}
	}
}

// spawn starts the server as a child with inherited stdio and waits for it.
func spawn(ctx context.Context, inv *Invocation, logger *log.Logger) error {
	logger.Info("spawning server", "path", inv.Path, "argv", inv.Argv)

	cmd := exec.CommandContext(ctx, inv.Path, inv.Argv[1:]...)
	cmd.Env = inv.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitStatusError{Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("starting server: %w", err)
}
