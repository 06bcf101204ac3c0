// SPDX-License-Identifier: MPL-2.0

//go:build windows

package handoff

import "errors"

// replaceProcess is unavailable on Windows; Run falls back to spawn before
// ever reaching this.
func replaceProcess(_ *Invocation) error {
	return errors.New("process image replacement is not supported on windows")
}
