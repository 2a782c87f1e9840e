// Package testutil builds throwaway git repositories for tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// AllowFileProtocol is the git config override tests need so that
// submodules with local-path URLs can be cloned.
const AllowFileProtocol = "protocol.file.allow=always"

// CreateBareRepo creates a bare git repository with an initial commit in a temp directory.
// Returns the path to the bare repo.
func CreateBareRepo(t *testing.T) string {
	t.Helper()
	work := NewWorkRepo(t)
	WriteFiles(t, work, map[string]string{"README.md": "# test\n"})
	Commit(t, work, "initial commit")
	return CloneBare(t, work)
}

// NewWorkRepo initializes an empty non-bare repository on branch main.
func NewWorkRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	work := filepath.Join(dir, "work")
	Git(t, dir, "init", "-b", "main", work)
	Git(t, work, "config", "user.email", "test@example.com")
	Git(t, work, "config", "user.name", "Test")
	return work
}

// CloneBare clones work into a sibling bare repository and returns its path.
func CloneBare(t *testing.T, work string) string {
	t.Helper()
	bare := filepath.Join(filepath.Dir(work), "repo.git")
	Git(t, filepath.Dir(work), "clone", "--bare", work, bare)
	return bare
}

// WriteFiles writes files relative to dir, creating parent directories.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil { //nolint:gosec // test dir
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil { //nolint:gosec // test file
			t.Fatal(err)
		}
	}
}

// Commit stages everything in work, commits, and returns the new HEAD SHA.
func Commit(t *testing.T, work, message string) string {
	t.Helper()
	Git(t, work, "add", "-A")
	Git(t, work, "commit", "-m", message)
	return strings.TrimSpace(Output(t, work, "rev-parse", "HEAD"))
}

// Push pushes the current branch of work to the bare repository.
func Push(t *testing.T, work, bare string) {
	t.Helper()
	Git(t, work, "push", bare, "HEAD:refs/heads/main")
}

// Git runs a git command in dir and fails the test on error.
func Git(t *testing.T, dir string, args ...string) {
	t.Helper()
	full := append([]string{"-c", AllowFileProtocol}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("command git %v failed: %v", args, err)
	}
}

// Output runs a git command in dir and returns its stdout.
func Output(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("command git %v failed: %v", args, err)
	}
	return string(out)
}
