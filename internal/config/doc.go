// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates the launcher configuration.
//
// Configuration is resolved from three layers, lowest priority first:
// built-in defaults, an optional TOML config file, and process environment
// variables (PORT, DOWNLOADS_DIR, TEMP_DIR, MAX_FILE_AGE, CLEANUP_INTERVAL,
// plus STWLAUNCH_*-prefixed overrides for everything else). The resolved
// values are validated against an embedded CUE schema before use.
//
// The resulting Config is built once per invocation and passed explicitly to
// the bootstrap steps; nothing in the launcher reads ambient environment
// state after loading.
package config
