// SPDX-License-Identifier: MPL-2.0

package ffmpeg

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// maxToolBytes is the upper bound on a single extracted binary (200 MB).
// Prevents decompression bombs when streaming the static build archive.
const maxToolBytes = 200 << 20

// installMode marks the extracted binaries executable.
const installMode = 0o755

// fetchAndInstall streams the archive at opts.SourceURL, composing the
// decompressor directly into tar extraction so the archive never touches
// disk. The two expected binaries are matched inside the versioned top-level
// directory by pattern (the version segment changes between releases) and
// written to opts.InstallDir.
func fetchAndInstall(ctx context.Context, opts Options) (map[string]string, error) {
	if err := os.MkdirAll(opts.InstallDir, installMode); err != nil {
		return nil, fmt.Errorf("creating install dir %s: %w", opts.InstallDir, err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.SourceURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: opts.SourceURL, Cause: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: opts.SourceURL, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{
			URL:   opts.SourceURL,
			Cause: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	decompressed, err := newDecompressor(opts.SourceURL, resp.Body)
	if err != nil {
		return nil, err
	}

	installed, err := extractBinaries(tar.NewReader(decompressed), opts.InstallDir)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range []string{BinaryFFmpeg, BinaryFFprobe} {
		if installed[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{Missing: missing}
	}

	return installed, nil
}

// newDecompressor selects the decompression filter from the archive URL
// extension. The static build ships as tar.xz; tar.gz is accepted for
// mirrors that repackage it.
func newDecompressor(url string, body io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(url, ".tar.xz") || strings.HasSuffix(url, ".txz"):
		r, err := xz.NewReader(body)
		if err != nil {
			return nil, &ArchiveError{Reason: "xz stream", Cause: err}
		}
		return r, nil
	case strings.HasSuffix(url, ".tar.gz") || strings.HasSuffix(url, ".tgz"):
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, &ArchiveError{Reason: "gzip stream", Cause: err}
		}
		return r, nil
	default:
		return nil, &ArchiveError{Reason: fmt.Sprintf("unsupported archive format in %q", url)}
	}
}

// extractBinaries walks the tar stream and installs every entry whose name
// matches one of the wanted binaries. Entries outside the expected versioned
// directory are skipped rather than rejected: the static build bundles
// documentation and models the launcher has no use for.
func extractBinaries(tr *tar.Reader, installDir string) (map[string]string, error) {
	installed := make(map[string]string, 2)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ArchiveError{Reason: "tar stream", Cause: err}
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Base(hdr.Name)
		if name != BinaryFFmpeg && name != BinaryFFprobe {
			continue
		}
		if !matchesVersionedDir(hdr.Name) {
			continue
		}

		target := filepath.Join(installDir, name)
		if err := writeBinary(target, tr); err != nil {
			return nil, err
		}
		installed[name] = target
	}

	return installed, nil
}

// matchesVersionedDir accepts entries rooted in a directory like
// "ffmpeg-7.0.2-amd64-static" (the version segment varies per release) as
// well as flat archives with the binary at the top level.
func matchesVersionedDir(entry string) bool {
	entry = strings.TrimPrefix(path.Clean(entry), "./")
	dir := path.Dir(entry)
	if dir == "." {
		return true
	}
	top := strings.SplitN(dir, "/", 2)[0]
	matched, err := path.Match("ffmpeg-*", top)
	return err == nil && matched
}

// writeBinary copies one tar entry to its install target and marks it
// executable. The copy is capped to keep a corrupted or hostile archive from
// filling the disk.
func writeBinary(target string, r io.Reader) error {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, installMode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	_, copyErr := io.Copy(f, io.LimitReader(r, maxToolBytes))
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(target)
		return &ArchiveError{Reason: fmt.Sprintf("extracting %s", target), Cause: copyErr}
	}
	if closeErr != nil {
		_ = os.Remove(target)
		return fmt.Errorf("closing %s: %w", target, closeErr)
	}

	if err := os.Chmod(target, installMode); err != nil {
		return fmt.Errorf("marking %s executable: %w", target, err)
	}
	return nil
}
