// SPDX-License-Identifier: MPL-2.0

// Package provision creates the writable directories the backend needs
// before it starts. Creation is idempotent: a directory that already exists
// is success, and re-running the provisioner changes nothing.
package provision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// dirMode is the permission set for provisioned directories.
const dirMode = 0o755

// ErrDirUnavailable is the sentinel error wrapped by DirError.
var ErrDirUnavailable = errors.New("directory unavailable")

// DirError reports a directory that could not be created or is not usable.
// It wraps ErrDirUnavailable for errors.Is() compatibility.
type DirError struct {
	Path   string
	Reason string
	Cause  error
}

func (e *DirError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("directory %s: %s: %v", e.Path, e.Reason, e.Cause)
	}
	return fmt.Sprintf("directory %s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrDirUnavailable for errors.Is() checks.
func (e *DirError) Unwrap() error { return ErrDirUnavailable }

// EnsureDirs creates each path and any missing parents. Paths must be
// absolute: the hosting environment may mount the working directory
// read-only, so relative locations are a configuration mistake, not
// something to resolve silently. The first failure aborts; a fresh
// filesystem problem will not resolve itself on retry.
func EnsureDirs(paths ...string) error {
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			return &DirError{Path: path, Reason: "path must be absolute"}
		}
		if err := os.MkdirAll(path, dirMode); err != nil {
			return &DirError{Path: path, Reason: "create failed", Cause: err}
		}
		if err := CheckWritable(path); err != nil {
			return err
		}
	}
	return nil
}

// CheckWritable performs a marker-file smoke test: create a file in dir,
// then remove it. MkdirAll succeeding does not prove the directory is
// writable (it may have pre-existed with restrictive permissions).
func CheckWritable(dir string) error {
	marker, err := os.CreateTemp(dir, ".stwlaunch-write-test-*")
	if err != nil {
		return &DirError{Path: dir, Reason: "not writable", Cause: err}
	}
	name := marker.Name()
	if err := marker.Close(); err != nil {
		_ = os.Remove(name)
		return &DirError{Path: dir, Reason: "marker close failed", Cause: err}
	}
	if err := os.Remove(name); err != nil {
		return &DirError{Path: dir, Reason: "marker cleanup failed", Cause: err}
	}
	return nil
}
