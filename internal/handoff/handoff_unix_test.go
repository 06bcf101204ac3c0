// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package handoff

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stwsaver/stwlaunch/internal/config"
)

func TestRunExecReplacesProcessImage(t *testing.T) {
	var gotPath string
	var gotArgv, gotEnv []string

	orig := execve
	execve = func(path string, argv []string, env []string) error {
		gotPath, gotArgv, gotEnv = path, argv, env
		return nil
	}
	t.Cleanup(func() { execve = orig })

	inv := &Invocation{
		Path: "/usr/bin/uvicorn",
		Argv: []string{"uvicorn", "main:app", "--port", "10000"},
		Env:  []string{"PORT=10000"},
	}
	if err := Run(context.Background(), inv, config.HandoffExec, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if gotPath != inv.Path {
		t.Errorf("exec path = %q", gotPath)
	}
	if !slices.Equal(gotArgv, inv.Argv) {
		t.Errorf("exec argv = %v", gotArgv)
	}
	if !slices.Equal(gotEnv, inv.Env) {
		t.Errorf("exec env = %v", gotEnv)
	}
}

func TestRunExecFailureSurfaces(t *testing.T) {
	orig := execve
	execve = func(string, []string, []string) error {
		return errors.New("permission denied")
	}
	t.Cleanup(func() { execve = orig })

	inv := &Invocation{Path: "/usr/bin/uvicorn", Argv: []string{"uvicorn"}}
	if err := Run(context.Background(), inv, config.HandoffExec, nil); err == nil {
		t.Fatal("expected error from failed exec")
	}
}

func TestRunSpawnPropagatesExitCode(t *testing.T) {
	inv := &Invocation{
		Path: "/bin/sh",
		Argv: []string{"sh", "-c", "exit 3"},
	}

	err := Run(context.Background(), inv, config.HandoffSpawn, nil)
	var exitErr *ExitStatusError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run = %v, want ExitStatusError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
}

func TestRunSpawnSuccess(t *testing.T) {
	inv := &Invocation{
		Path: "/bin/sh",
		Argv: []string{"sh", "-c", "exit 0"},
	}
	if err := Run(context.Background(), inv, config.HandoffSpawn, nil); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
}
