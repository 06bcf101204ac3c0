// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride redirects ConfigDir for tests. os.UserHomeDir ignores a
// test-scoped HOME on some platforms, so tests point the launcher at a temp
// directory through this instead.
var configDirOverride string

// Reset clears the test override. Call from test cleanup.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir return dir instead of the platform
// location. Intended for tests.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
