// SPDX-License-Identifier: MPL-2.0

// Package ffmpeg resolves the ffmpeg toolchain the backend uses for audio
// conversion. The expected fast path is a preinstalled binary on PATH; when
// that probe misses, the package falls back to fetching a static build
// archive from a fixed URL and installing ffmpeg and ffprobe into a
// predictable directory.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// BinaryFFmpeg is the primary tool the backend shells out to.
	BinaryFFmpeg = "ffmpeg"
	// BinaryFFprobe ships in the same static build and is installed alongside.
	BinaryFFprobe = "ffprobe"
)

var (
	// ErrNetwork indicates the archive fetch failed.
	ErrNetwork = errors.New("archive fetch failed")
	// ErrArchive indicates the fetched archive could not be decompressed or read.
	ErrArchive = errors.New("archive invalid")
	// ErrToolNotFound indicates the expected binaries were missing after extraction.
	ErrToolNotFound = errors.New("tool not found")

	//nolint:gochecknoglobals // Test seam for exec.LookPath().
	lookPath = exec.LookPath
)

type (
	// NetworkError wraps a failed archive fetch. It wraps ErrNetwork for
	// errors.Is() compatibility.
	NetworkError struct {
		URL   string
		Cause error
	}

	// ArchiveError wraps a decompression or extraction failure. It wraps
	// ErrArchive for errors.Is() compatibility.
	ArchiveError struct {
		Reason string
		Cause  error
	}

	// NotFoundError reports binaries that were expected in the archive but
	// never appeared. It wraps ErrToolNotFound for errors.Is() compatibility.
	NotFoundError struct {
		Missing []string
	}

	// Options configures an Ensure call. The zero value is not usable;
	// SourceURL and InstallDir are required for the fallback path.
	Options struct {
		// SourceURL is the fixed archive location. The extension selects the
		// decompressor (.tar.xz or .tar.gz); there is no alternate mirror.
		SourceURL string
		// InstallDir receives the extracted binaries and is prepended to PATH.
		InstallDir string
		// HTTPClient overrides the default client, mainly for tests.
		HTTPClient *http.Client
		// Logger receives progress output. Nil uses the package default.
		Logger *log.Logger
	}

	// Resolution is the outcome of a successful Ensure call.
	Resolution struct {
		// FFmpegPath is the resolved ffmpeg location.
		FFmpegPath string
		// FFprobePath is the resolved ffprobe location; may be empty when a
		// preinstalled ffmpeg was found without a sibling ffprobe.
		FFprobePath string
		// Acquired is true when the fallback download ran.
		Acquired bool
	}
)

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Cause)
}

// Unwrap returns ErrNetwork for errors.Is() checks.
func (e *NetworkError) Unwrap() error { return ErrNetwork }

func (e *ArchiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("reading archive: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("reading archive: %s", e.Reason)
}

// Unwrap returns ErrArchive for errors.Is() checks.
func (e *ArchiveError) Unwrap() error { return ErrArchive }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archive did not contain: %s", strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrToolNotFound for errors.Is() checks.
func (e *NotFoundError) Unwrap() error { return ErrToolNotFound }

// Ensure resolves ffmpeg. A binary already on PATH wins and causes zero
// network activity; otherwise the static build archive is fetched, the two
// expected binaries are installed into opts.InstallDir, and that directory
// is prepended to PATH for the remainder of the process tree.
//
// There is no retry and no alternate source: a failure here is either fatal
// to the bootstrap or downgraded to a warning by the caller's tool policy.
func Ensure(ctx context.Context, opts Options) (*Resolution, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	if path, err := lookPath(BinaryFFmpeg); err == nil {
		res := &Resolution{FFmpegPath: path}
		// ffprobe usually ships next to ffmpeg; resolving it is best-effort.
		if probe, probeErr := lookPath(BinaryFFprobe); probeErr == nil {
			res.FFprobePath = probe
		}
		logger.Debug("ffmpeg preinstalled", "path", path)
		return res, nil
	}

	logger.Info("ffmpeg not on PATH, fetching static build", "url", opts.SourceURL)

	installed, err := fetchAndInstall(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := prependToProcessPath(opts.InstallDir); err != nil {
		return nil, err
	}
	logger.Info("ffmpeg installed", "dir", opts.InstallDir)

	return &Resolution{
		FFmpegPath:  installed[BinaryFFmpeg],
		FFprobePath: installed[BinaryFFprobe],
		Acquired:    true,
	}, nil
}

// prependToProcessPath puts dir at the front of this process's PATH so the
// handoff step and every descendant resolve the fresh binaries unqualified.
func prependToProcessPath(dir string) error {
	path := os.Getenv("PATH")
	if path == dir || strings.HasPrefix(path, dir+string(filepath.ListSeparator)) {
		return nil
	}
	next := dir
	if path != "" {
		next = dir + string(filepath.ListSeparator) + path
	}
	if err := os.Setenv("PATH", next); err != nil {
		return fmt.Errorf("updating PATH: %w", err)
	}
	return nil
}
