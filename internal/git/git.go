package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownRevision is returned by ResolveCommit when the revision does not
// name a commit in the repository.
var ErrUnknownRevision = errors.New("unknown revision")

// Client runs git with a fixed binary, environment and config overrides.
type Client struct {
	// Bin is the git executable. Defaults to "git".
	Bin string
	// Env is the complete environment for child processes.
	Env []string
	// Config holds key=value pairs passed as -c options to every command.
	Config []string
	// Stderr receives progress output of streaming commands. Defaults to io.Discard.
	Stderr io.Writer
}

// Clone clones url into dest without checking out a branch. Callers check
// out a pinned commit afterwards, so no branch tip is ever materialized.
func (c *Client) Clone(ctx context.Context, url, dest string) error {
	if err := c.run(ctx, ".", "clone", "--no-checkout", "--", url, dest); err != nil {
		return fmt.Errorf("cloning %s: %w", url, err)
	}
	return nil
}

// Fetch fetches all branches and tags from origin, plus any extra refspecs.
func (c *Client) Fetch(ctx context.Context, repoDir string, refspecs ...string) error {
	args := append([]string{"fetch", "--tags", "--prune", "origin"}, refspecs...)
	return c.run(ctx, repoDir, args...)
}

// ResolveCommit returns the full object id of the commit rev names.
// ErrUnknownRevision is returned when rev does not resolve to a commit.
func (c *Client) ResolveCommit(ctx context.Context, repoDir, rev string) (string, error) {
	out, err := c.outputQuiet(ctx, repoDir, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		if isExitError(err) {
			return "", fmt.Errorf("%s: %w", rev, ErrUnknownRevision)
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CheckoutDetached checks out commit with a detached HEAD, discarding
// conflicting local changes.
func (c *Client) CheckoutDetached(ctx context.Context, repoDir, commit string) error {
	return c.runQuiet(ctx, repoDir, "checkout", "--force", "--detach", commit)
}

// HeadCommit returns the full SHA of HEAD.
func (c *Client) HeadCommit(ctx context.Context, repoDir string) (string, error) {
	out, err := c.outputQuiet(ctx, repoDir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SubmodulePaths lists the submodule paths declared in .gitmodules, sorted.
// A repository without .gitmodules has no submodules.
func (c *Client) SubmodulePaths(ctx context.Context, repoDir string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(repoDir, ".gitmodules")); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out, err := c.outputQuiet(ctx, repoDir, "config", "--file", ".gitmodules", "--get-regexp", `^submodule\..*\.path$`)
	if err != nil {
		if isExitError(err) {
			// No matching keys.
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		// "submodule.<name>.path <path>"
		_, p, ok := strings.Cut(strings.TrimSpace(line), " ")
		if ok && p != "" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SubmoduleInit initializes and checks out only the given submodule paths.
func (c *Client) SubmoduleInit(ctx context.Context, repoDir string, paths []string) error {
	args := append([]string{"submodule", "update", "--init", "--"}, paths...)
	return c.run(ctx, repoDir, args...)
}

// SetRemoteURL points origin at url.
func (c *Client) SetRemoteURL(ctx context.Context, repoDir, url string) error {
	return c.runQuiet(ctx, repoDir, "remote", "set-url", "origin", url)
}

// ResetHard resets the working tree to the given ref.
func (c *Client) ResetHard(ctx context.Context, repoDir, ref string) error {
	return c.runQuiet(ctx, repoDir, "reset", "--hard", ref)
}

// Clean removes untracked and ignored files and directories.
func (c *Client) Clean(ctx context.Context, repoDir string) error {
	return c.runQuiet(ctx, repoDir, "clean", "-ffdx")
}

// IsDirty returns true if the working tree has uncommitted changes.
func (c *Client) IsDirty(ctx context.Context, repoDir string) (bool, error) {
	out, err := c.outputQuiet(ctx, repoDir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Reachable reports whether url answers ls-remote.
func (c *Client) Reachable(ctx context.Context, url string) bool {
	return c.runQuiet(ctx, ".", "ls-remote", "--quiet", url) == nil
}

// Version returns the output of git version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.outputQuiet(ctx, ".", "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsCloned returns true if the directory is a git repository or a
// submodule checkout (where .git is a file).
func IsCloned(repoDir string) bool {
	_, err := os.Stat(filepath.Join(repoDir, ".git"))
	return err == nil
}

func (c *Client) command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	full := make([]string, 0, 2*len(c.Config)+len(args))
	for _, kv := range c.Config {
		full = append(full, "-c", kv)
	}
	full = append(full, args...)

	bin := c.Bin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, full...) //nolint:gosec // args are built by this package
	cmd.Dir = dir
	if c.Env != nil {
		cmd.Env = append(append([]string(nil), c.Env...), "GIT_TERMINAL_PROMPT=0")
	}
	return cmd
}

// run executes a git command, streaming stderr to c.Stderr.
func (c *Client) run(ctx context.Context, dir string, args ...string) error {
	cmd := c.command(ctx, dir, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = io.MultiWriter(c.stderr(), &stderr)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// runQuiet executes a git command without printing anything.
// Stderr is captured and included in the error message on failure.
func (c *Client) runQuiet(ctx context.Context, dir string, args ...string) error {
	_, err := c.outputQuiet(ctx, dir, args...)
	return err
}

// outputQuiet executes a git command and returns its stdout.
func (c *Client) outputQuiet(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := c.command(ctx, dir, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (c *Client) stderr() io.Writer {
	if c.Stderr == nil {
		return io.Discard
	}
	return c.Stderr
}

func isExitError(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}
