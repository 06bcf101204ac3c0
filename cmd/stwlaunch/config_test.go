// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stwsaver/stwlaunch/internal/config"
)

// withConfigFile points the global --config flag at path for one test.
func withConfigFile(t *testing.T, path string) {
	t.Helper()
	orig := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = orig })
}

// stubConfigProvider returns a canned config without touching the
// filesystem or the environment.
type stubConfigProvider struct {
	cfg  *config.Config
	path string
}

func (p *stubConfigProvider) Load(context.Context, config.LoadOptions) (*config.Config, string, error) {
	return p.cfg, p.path, nil
}

// withProvider swaps the command-level config provider for one test.
func withProvider(t *testing.T, p config.Provider) {
	t.Helper()
	orig := cfgProvider
	cfgProvider = p
	t.Cleanup(func() { cfgProvider = orig })
}

func TestConfigInitWritesDefaults(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	withConfigFile(t, target)

	cmd := newConfigInitCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("config init: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	for _, want := range []string{
		"port = 10000",
		"uvicorn main:app",
		"strict",
		"[ffmpeg]",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("written config missing %q:\n%s", want, data)
		}
	}
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("port = 9999\n"), 0o644); err != nil {
		t.Fatalf("seeding config: %v", err)
	}
	withConfigFile(t, target)

	cmd := newConfigInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	if err := cmd.RunE(cmd, nil); err == nil {
		t.Fatal("expected error for existing config file")
	}

	data, _ := os.ReadFile(target)
	if !strings.Contains(string(data), "9999") {
		t.Error("existing config file was clobbered")
	}
}

func TestConfigShowPrintsResolvedValues(t *testing.T) {
	dir := t.TempDir()
	config.SetConfigDirOverride(dir)
	t.Cleanup(config.Reset)
	withConfigFile(t, "")
	t.Setenv("PORT", "8123")

	cmd := newConfigShowCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	// RunE is invoked directly, bypassing Execute, so the context that
	// Execute would install must be set by hand.
	cmd.SetContext(context.Background())

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out.String(), "port = 8123") {
		t.Errorf("resolved PORT missing from output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "/tmp/downloads") {
		t.Errorf("default downloads_dir missing:\n%s", out.String())
	}
}

func TestConfigShowUsesInjectedProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Port = 4321
	withProvider(t, &stubConfigProvider{cfg: cfg, path: "/etc/stwlaunch/config.toml"})
	withConfigFile(t, "")

	cmd := newConfigShowCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out.String(), "port = 4321") {
		t.Errorf("provider config missing from output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "/etc/stwlaunch/config.toml") {
		t.Errorf("provider path missing from output:\n%s", out.String())
	}
}
