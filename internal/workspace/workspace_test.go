package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fbkclanna/pinroot/internal/manifest"
	"gopkg.in/yaml.v3"
)

func testManifest(url string) *manifest.Provision {
	return &manifest.Provision{
		Version:    1,
		Name:       "gateway",
		Outer:      manifest.Repo{URL: url, Revision: "abc123"},
		Inner:      manifest.Nested{Path: "tools/nested", Revision: "DEF456"},
		Submodules: []string{"tools/nested"},
		AllowList:  []string{"src", "tools"},
	}
}

// writeManifest is a test helper that writes a provision.yaml to the given dir.
func writeManifest(t *testing.T, dir string, p *manifest.Provision) {
	t.Helper()
	data, err := yaml.Marshal(p)
	if err != nil {
		t.Fatalf("marshaling manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), data, 0600); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, testManifest("https://example.com/outer.git"))

	ctx, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if ctx.Manifest.Name != "gateway" {
		t.Errorf("Manifest.Name = %q, want %q", ctx.Manifest.Name, "gateway")
	}
	if ctx.Lock != nil {
		t.Error("Lock should be nil when no record exists")
	}
	if ctx.ManifestPath != filepath.Join(ctx.Root, "provision.yaml") {
		t.Errorf("ManifestPath = %q, unexpected", ctx.ManifestPath)
	}
	if ctx.LockPath != filepath.Join(ctx.Root, "provision.lock.yaml") {
		t.Errorf("LockPath = %q, unexpected", ctx.LockPath)
	}
	if ctx.WorkDir != filepath.Join(ctx.Root, ".pinroot") {
		t.Errorf("WorkDir = %q, unexpected", ctx.WorkDir)
	}
}

func TestLoad_withLock(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, testManifest("https://example.com/outer.git"))

	lockData := []byte(`version: 1
name: gateway
generated_at: "2026-02-15T00:00:00Z"
tool_version: "0.1.0"
run_id: 6f1c2d9e-0000-4000-8000-000000000000
outer:
  url: https://example.com/outer.git
  revision: abc123
  commit: abc1234567
inner:
  path: tools/nested
  revision: def456
  commit: def4567890
build_root: .pinroot/root
digest: sha256:00
allow_list: [src, tools]
`)
	if err := os.WriteFile(filepath.Join(dir, "provision.lock.yaml"), lockData, 0600); err != nil {
		t.Fatal(err)
	}

	ctx, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if ctx.Lock == nil {
		t.Fatal("Lock should not be nil when a record exists")
	}
	if ctx.Lock.Inner.Commit != "def4567890" {
		t.Errorf("Lock.Inner.Commit = %q, want %q", ctx.Lock.Inner.Commit, "def4567890")
	}
}

func TestLoad_missingManifest(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir, "")
	if err == nil {
		t.Fatal("Load() should fail when provision.yaml is missing")
	}
}

func TestLoad_invalidManifest(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "provision.yaml"), []byte(":::invalid"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir, "")
	if err == nil {
		t.Fatal("Load() should fail with invalid YAML")
	}
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, testManifest("https://example.com/outer.git"))

	ctx, err := Load(dir, "work")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	root := filepath.Join(ctx.Root, "work", "root")
	if got := ctx.BuildRoot(); got != root {
		t.Errorf("BuildRoot() = %q, want %q", got, root)
	}
	if got := ctx.StagingDir("r1"); got != root+".partial-r1" {
		t.Errorf("StagingDir() = %q", got)
	}
	if got := ctx.ScratchDir("r1"); got != filepath.Join(ctx.Root, "work", "scratch", "r1") {
		t.Errorf("ScratchDir() = %q", got)
	}
	if got := ctx.GuardPath(); got != root+".inuse" {
		t.Errorf("GuardPath() = %q", got)
	}

	ctx.Manifest.BuildRoot = "out/buildroot"
	if got := ctx.BuildRoot(); got != filepath.Join(ctx.Root, "out", "buildroot") {
		t.Errorf("BuildRoot() with manifest override = %q", got)
	}
}

func TestPins(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, testManifest("../upstream/outer.git"))

	ctx, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	set, err := ctx.Pins()
	if err != nil {
		t.Fatalf("Pins() error: %v", err)
	}
	wantOuter := filepath.Join(filepath.Dir(ctx.Root), "upstream", "outer.git")
	if set.Outer.Repo() != wantOuter {
		t.Errorf("outer repo = %q, want %q", set.Outer.Repo(), wantOuter)
	}
	if set.Inner.Revision() != "def456" {
		t.Errorf("inner revision = %q, want lowercased def456", set.Inner.Revision())
	}
	if !strings.HasSuffix(set.Inner.Repo(), "outer.git#tools/nested") {
		t.Errorf("inner repo = %q, want outer URL plus path", set.Inner.Repo())
	}
	if set.InnerPath != filepath.Join("tools", "nested") {
		t.Errorf("InnerPath = %q", set.InnerPath)
	}
}

func TestToolchain(t *testing.T) {
	dir := t.TempDir()
	p := testManifest("https://example.com/outer.git")
	p.Toolchain.Locale = "C.UTF-8"
	writeManifest(t, dir, p)

	ctx, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg, err := ctx.Toolchain()
	if err != nil {
		t.Fatalf("Toolchain() error: %v", err)
	}
	found := false
	for _, kv := range cfg.Env() {
		if kv == "LC_ALL=C.UTF-8" {
			found = true
		}
	}
	if !found {
		t.Errorf("Env() = %v, missing LC_ALL", cfg.Env())
	}
}

func TestCheckBuildRoot(t *testing.T) {
	tests := []struct {
		name      string
		buildRoot string
		workDir   string
		files     map[string]string
		record    string
		wantErr   string
	}{
		{name: "default absent"},
		{name: "default present", files: map[string]string{".pinroot/root/a": "x"}},
		{name: "explicit absent", buildRoot: "out"},
		{name: "explicit unrecorded", buildRoot: "out", files: map[string]string{"out/a": "x"}, wantErr: "refusing to replace"},
		{name: "explicit recorded", buildRoot: "out", files: map[string]string{"out/a": "x"}, record: "out"},
		{name: "recorded elsewhere", buildRoot: "out", files: map[string]string{"out/a": "x"}, record: "other", wantErr: "refusing to replace"},
		{name: "contains work dir", buildRoot: "build", workDir: "build/work", wantErr: "must not contain the work directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			m := testManifest("https://example.com/outer.git")
			m.BuildRoot = tt.buildRoot
			writeManifest(t, dir, m)
			for rel, content := range tt.files {
				p := filepath.Join(dir, filepath.FromSlash(rel))
				if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(p, []byte(content), 0600); err != nil {
					t.Fatal(err)
				}
			}
			if tt.record != "" {
				rec := "version: 1\nname: gateway\nbuild_root: " + tt.record + "\n"
				if err := os.WriteFile(filepath.Join(dir, "provision.lock.yaml"), []byte(rec), 0600); err != nil {
					t.Fatal(err)
				}
			}

			ctx, err := Load(dir, tt.workDir)
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			err = ctx.CheckBuildRoot()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("CheckBuildRoot() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("CheckBuildRoot() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
