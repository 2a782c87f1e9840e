package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/lock"
	"github.com/fbkclanna/pinroot/internal/manifest"
	"github.com/fbkclanna/pinroot/internal/testutil"
	"github.com/fbkclanna/pinroot/internal/toolchain"
)

// stubScript stands in for python3: it appends its working directory and
// arguments to $STUB_LOG.
const stubScript = "#!/bin/sh\necho \"$(pwd -P) $*\" >> \"$STUB_LOG\"\n"

type testWorkspace struct {
	dir     string
	up      *testutil.Upstream
	stubLog string
	m       *manifest.Provision
}

// setupWorkspace creates a workspace pinned to the test upstream. The
// toolchain PATH holds git and a python3 stub, so dependency installation
// only writes to the stub log.
func setupWorkspace(t *testing.T) *testWorkspace {
	t.Helper()
	up := testutil.CreateUpstream(t)
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"local/fw/board.c": "/* local board */\n",
	})

	gitPath, err := exec.LookPath("git")
	if err != nil {
		t.Fatal(err)
	}
	stubs := t.TempDir()
	if err := os.WriteFile(filepath.Join(stubs, "python3"), []byte(stubScript), 0755); err != nil { //nolint:gosec // test stub
		t.Fatal(err)
	}

	ws := &testWorkspace{
		dir:     dir,
		up:      up,
		stubLog: filepath.Join(stubs, "stub.log"),
	}
	ws.m = &manifest.Provision{
		Version:    1,
		Name:       "gateway",
		Outer:      manifest.Repo{URL: up.Outer, Revision: up.OuterCommits[0][:12]},
		Inner:      manifest.Nested{Path: up.InnerPath, Revision: up.InnerCommits[1][:12]},
		Submodules: []string{up.InnerPath},
		AllowList:  []string{"src", "tools"},
		Overlays:   []manifest.Overlay{{Source: "local/fw", Dest: "src/overlay"}},
		Dependencies: manifest.Dependencies{
			Manifest: "tools/requirements.txt",
			Extras:   []string{"pytest"},
		},
		Toolchain: toolchain.Settings{
			Path:      []string{stubs, filepath.Dir(gitPath)},
			Tools:     []string{"git"},
			GitConfig: []string{testutil.AllowFileProtocol},
			Env:       map[string]string{"STUB_LOG": ws.stubLog},
		},
	}
	ws.save(t)
	return ws
}

func (w *testWorkspace) save(t *testing.T) {
	t.Helper()
	if err := manifest.Save(filepath.Join(w.dir, manifest.FileName), w.m); err != nil {
		t.Fatal(err)
	}
}

func (w *testWorkspace) buildRoot() string {
	return filepath.Join(w.dir, ".pinroot", "root")
}

// execute runs the root command with --root set and returns its stdout.
func (w *testWorkspace) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--root", w.dir}, args...))
	err := root.Execute()
	if err != nil {
		t.Logf("stderr:\n%s", errOut.String())
	}
	return out.String(), err
}

func TestRunProvision_buildsRoot(t *testing.T) {
	ws := setupWorkspace(t)

	out, err := ws.execute(t, "provision")
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if !strings.Contains(out, "[6/6]") {
		t.Errorf("expected six progress lines, got:\n%s", out)
	}
	if !strings.Contains(out, "Build root ready") {
		t.Errorf("missing summary, got:\n%s", out)
	}

	data, err := os.ReadFile(filepath.Join(ws.buildRoot(), "src", "overlay", "board.c")) //nolint:gosec // test file
	if err != nil {
		t.Fatalf("overlay file missing: %v", err)
	}
	if string(data) != "/* local board */\n" {
		t.Errorf("overlay content = %q", data)
	}
	if _, err := os.Stat(filepath.Join(ws.buildRoot(), "tools", "nested", "dbc", "extra.dbc")); err != nil {
		t.Errorf("inner pin content missing: %v", err)
	}

	lf, err := lock.Load(filepath.Join(ws.dir, lock.FileName))
	if err != nil {
		t.Fatalf("record not written: %v", err)
	}
	if lf.Outer.Commit != ws.up.OuterCommits[0] {
		t.Errorf("outer commit = %s, want %s", lf.Outer.Commit, ws.up.OuterCommits[0])
	}
	if lf.Inner.Commit != ws.up.InnerCommits[1] {
		t.Errorf("inner commit = %s, want %s", lf.Inner.Commit, ws.up.InnerCommits[1])
	}
	if lf.ToolVersion != version {
		t.Errorf("tool version = %q, want %q", lf.ToolVersion, version)
	}

	calls, err := os.ReadFile(ws.stubLog)
	if err != nil {
		t.Fatalf("installer never ran: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(calls)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 installer invocations, got %d:\n%s", len(lines), calls)
	}
	if !strings.Contains(lines[0], "-m pip install --no-cache-dir numpy==1.26.4") {
		t.Errorf("manifest install = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "--no-cache-dir pytest") {
		t.Errorf("extras install = %q", lines[1])
	}
}

func TestRunProvision_skipDeps(t *testing.T) {
	ws := setupWorkspace(t)

	if _, err := ws.execute(t, "provision", "--skip-deps"); err != nil {
		t.Fatalf("provision --skip-deps failed: %v", err)
	}
	if _, err := os.Stat(ws.stubLog); !os.IsNotExist(err) {
		t.Error("installer should not run with --skip-deps")
	}
}

func TestRunProvision_missingAllowListPath(t *testing.T) {
	ws := setupWorkspace(t)
	ws.m.AllowList = append(ws.m.AllowList, "selfdrive")
	ws.save(t)

	_, err := ws.execute(t, "provision")
	if err == nil {
		t.Fatal("expected error for missing allow-list path")
	}
	if code := failure.ExitCode(err); code != failure.ExitExtract {
		t.Errorf("exit code = %d, want %d (%v)", code, failure.ExitExtract, err)
	}
	var mp *failure.MissingPathError
	if !errors.As(err, &mp) || mp.Path != "selfdrive" {
		t.Errorf("expected MissingPathError for selfdrive, got %v", err)
	}
	if _, err := os.Stat(ws.buildRoot()); !os.IsNotExist(err) {
		t.Error("no build root may survive a failed run")
	}
}

func TestRunProvision_unknownPin(t *testing.T) {
	ws := setupWorkspace(t)
	ws.m.Outer.Revision = "deadbeef"
	ws.save(t)

	_, err := ws.execute(t, "provision")
	if code := failure.ExitCode(err); code != failure.ExitPins {
		t.Errorf("exit code = %d, want %d (%v)", code, failure.ExitPins, err)
	}
}

func TestRunProvision_configFile(t *testing.T) {
	ws := setupWorkspace(t)
	testutil.WriteFiles(t, ws.dir, map[string]string{
		"pinroot.yaml": "work_dir: build\njobs: 2\n",
	})

	if _, err := ws.execute(t, "provision", "--skip-deps"); err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws.dir, "build", "root", "src", "main.c")); err != nil {
		t.Errorf("build root should live under the configured work dir: %v", err)
	}
	if _, err := os.Stat(ws.buildRoot()); !os.IsNotExist(err) {
		t.Error("default work dir should be unused")
	}
}

func TestRunProvision_invalidJobs(t *testing.T) {
	ws := setupWorkspace(t)

	if _, err := ws.execute(t, "provision", "--jobs", "0"); err == nil {
		t.Fatal("expected error for --jobs 0")
	}
}

func TestRoot_invalidLogFormat(t *testing.T) {
	ws := setupWorkspace(t)

	if _, err := ws.execute(t, "--log-format", "xml", "status"); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestRunProvision_branchPinInManifest(t *testing.T) {
	ws := setupWorkspace(t)
	path := filepath.Join(ws.dir, manifest.FileName)
	data, err := os.ReadFile(path) //nolint:gosec // test file
	if err != nil {
		t.Fatal(err)
	}
	src := string(data)
	for _, form := range []string{ws.m.Outer.Revision, "'" + ws.m.Outer.Revision + "'", `"` + ws.m.Outer.Revision + `"`} {
		src = strings.Replace(src, "revision: "+form+"\n", "revision: main\n", 1)
	}
	if src == string(data) {
		t.Fatalf("outer revision not found in manifest:\n%s", data)
	}
	data = []byte(src)
	if err := os.WriteFile(path, data, 0644); err != nil { //nolint:gosec // test file
		t.Fatal(err)
	}

	_, err = ws.execute(t, "provision")
	if code := failure.ExitCode(err); code != failure.ExitPins {
		t.Errorf("exit code = %d, want %d (%v)", code, failure.ExitPins, err)
	}
}
