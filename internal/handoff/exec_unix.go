// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package handoff

import (
	"fmt"

	"golang.org/x/sys/unix"
)

//nolint:gochecknoglobals // Test seam for unix.Exec, which never returns on success.
var execve = unix.Exec

// replaceProcess swaps this process image for the server via execve. On
// success it never returns; the server inherits the PID and receives signals
// directly from the OS.
func replaceProcess(inv *Invocation) error {
	if err := execve(inv.Path, inv.Argv, inv.Env); err != nil {
		return fmt.Errorf("exec %s: %w", inv.Path, err)
	}
	return nil
}
