// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"

	"github.com/charmbracelet/glamour"

	"github.com/stwsaver/stwlaunch/internal/config"
	"github.com/stwsaver/stwlaunch/internal/ffmpeg"
	"github.com/stwsaver/stwlaunch/internal/handoff"
	"github.com/stwsaver/stwlaunch/internal/provision"
)

// Guidance is a markdown help text keyed to a class of launcher failure.
type Guidance struct {
	Title    string
	Markdown string
}

// guidanceTable maps sentinel errors to operator guidance. Order matters:
// the first matching sentinel wins.
var guidanceTable = []struct {
	sentinel error
	guidance Guidance
}{
	{provision.ErrDirUnavailable, Guidance{
		Title: "Directory provisioning failed",
		Markdown: `A required directory could not be created or is not writable.

- The hosting environment may mount everything except ` + "`/tmp`" + ` read-only; keep
  ` + "`downloads_dir`" + ` and ` + "`temp_dir`" + ` under a writable root.
- Check filesystem permissions for the launcher's user.`,
	}},
	{ffmpeg.ErrNetwork, Guidance{
		Title: "ffmpeg download failed",
		Markdown: `The static ffmpeg build could not be fetched.

- Verify the instance has outbound HTTPS access.
- Preinstalling ffmpeg on the image avoids the download entirely.
- Set ` + "`tool_policy = \"lenient\"`" + ` to boot without audio conversion.`,
	}},
	{ffmpeg.ErrArchive, Guidance{
		Title: "ffmpeg archive unreadable",
		Markdown: `The fetched archive could not be decompressed or extracted.

- Confirm ` + "`ffmpeg.source_url`" + ` points at a ` + "`.tar.xz`" + ` or ` + "`.tar.gz`" + ` static build.
- A truncated download looks like corruption; retry the deploy.`,
	}},
	{ffmpeg.ErrToolNotFound, Guidance{
		Title: "ffmpeg missing from archive",
		Markdown: `The archive extracted cleanly but did not contain both ` + "`ffmpeg`" + ` and
` + "`ffprobe`" + `.

- The source URL probably points at the wrong build flavor.
- Set ` + "`tool_policy = \"lenient\"`" + ` to boot without audio conversion.`,
	}},
	{handoff.ErrServerNotFound, Guidance{
		Title: "Server command not found",
		Markdown: `The application server binary is not on PATH.

- Check ` + "`server_command`" + ` in the config.
- The backend's runtime (e.g. a Python environment with uvicorn) must be
  installed on the image; the launcher does not provision it.`,
	}},
	{config.ErrInvalidConfig, Guidance{
		Title: "Configuration invalid",
		Markdown: `The resolved configuration failed validation.

- Run ` + "`stwlaunch config show`" + ` to inspect the merged values.
- Environment variables override the config file; check PORT, DOWNLOADS_DIR,
  TEMP_DIR, MAX_FILE_AGE and CLEANUP_INTERVAL.`,
	}},
}

// renderMarkdown is a seam so tests can bypass terminal detection.
//
//nolint:gochecknoglobals
var renderMarkdown = glamour.Render

// For returns the guidance matching err, or nil when no class applies.
func For(err error) *Guidance {
	for _, entry := range guidanceTable {
		if errors.Is(err, entry.sentinel) {
			g := entry.guidance
			return &g
		}
	}
	return nil
}

// Render produces the terminal-styled form of the guidance. stylePath is a
// glamour style name ("dark", "light", "notty", ...).
func (g *Guidance) Render(stylePath string) (string, error) {
	return renderMarkdown("# "+g.Title+"\n\n"+g.Markdown, stylePath)
}
