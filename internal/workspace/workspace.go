package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/lock"
	"github.com/fbkclanna/pinroot/internal/manifest"
	"github.com/fbkclanna/pinroot/internal/pin"
	"github.com/fbkclanna/pinroot/internal/toolchain"
)

// DefaultWorkDir holds scratch space and, unless the manifest says
// otherwise, the build root.
const DefaultWorkDir = ".pinroot"

// Context holds the resolved paths and loaded config for a workspace.
type Context struct {
	Root         string
	ManifestPath string
	LockPath     string
	WorkDir      string
	Manifest     *manifest.Provision
	Lock         *lock.File // may be nil
}

// Load resolves workspace paths and loads the manifest (and record if
// present). workDir is relative to root unless absolute; empty means
// DefaultWorkDir.
func Load(root, workDir string) (*Context, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if workDir == "" {
		workDir = DefaultWorkDir
	}
	if !filepath.IsAbs(workDir) {
		workDir = filepath.Join(root, workDir)
	}

	manifestPath := filepath.Join(root, manifest.FileName)
	lockPath := filepath.Join(root, lock.FileName)

	p, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Root:         root,
		ManifestPath: manifestPath,
		LockPath:     lockPath,
		WorkDir:      filepath.Clean(workDir),
		Manifest:     p,
	}

	if _, statErr := os.Stat(lockPath); statErr == nil {
		lf, err := lock.Load(lockPath)
		if err != nil {
			return nil, err
		}
		ctx.Lock = lf
	}

	return ctx, nil
}

// BuildRoot returns the absolute build root path.
func (c *Context) BuildRoot() string {
	if c.Manifest.BuildRoot != "" {
		return filepath.Join(c.Root, c.Manifest.BuildRoot)
	}
	return filepath.Join(c.WorkDir, "root")
}

// CheckBuildRoot refuses a build root whose removal would delete content
// pinroot does not own: the work directory itself, or an existing path that
// is neither under the work directory nor the build root named by the
// record.
func (c *Context) CheckBuildRoot() error {
	br := c.BuildRoot()
	if within(br, c.WorkDir) {
		return fmt.Errorf("build root %s must not contain the work directory %s", br, c.WorkDir)
	}
	if _, err := os.Lstat(br); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("checking build root: %w", err)
	}
	if within(c.WorkDir, br) {
		return nil
	}
	if c.Lock != nil && c.recordedBuildRoot() == br {
		return nil
	}
	return fmt.Errorf("refusing to replace %s: it exists and is not the build root recorded in %s", br, lock.FileName)
}

func (c *Context) recordedBuildRoot() string {
	p := filepath.FromSlash(c.Lock.BuildRoot)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}

func within(parent, path string) bool {
	return path == parent || strings.HasPrefix(path, parent+string(filepath.Separator))
}

// ScratchDir returns the run-private scratch directory for runID.
func (c *Context) ScratchDir(runID string) string {
	return filepath.Join(c.WorkDir, "scratch", runID)
}

// StagingDir returns the run-private directory the build root is assembled
// in before it is published. It is a sibling of the build root so the final
// rename stays on one filesystem.
func (c *Context) StagingDir(runID string) string {
	return c.BuildRoot() + ".partial-" + runID
}

// GuardPath returns the path of the file that marks a run in progress.
func (c *Context) GuardPath() string {
	return c.BuildRoot() + ".inuse"
}

// RepoURL resolves a manifest URL. Local paths written relative to the
// workspace ("./x", "../x") are made absolute; anything else is returned
// unchanged.
func (c *Context) RepoURL(url string) string {
	if strings.HasPrefix(url, "./") || strings.HasPrefix(url, "../") {
		return filepath.Join(c.Root, url)
	}
	return url
}

// Pins builds the outer and inner pins from the manifest. The inner
// repository is identified by its override URL, or by the outer URL and
// its submodule path.
func (c *Context) Pins() (pin.Set, error) {
	m := c.Manifest
	outer, err := pin.New(c.RepoURL(m.Outer.URL), m.Outer.Revision)
	if err != nil {
		return pin.Set{}, &failure.PinResolutionError{Repo: m.Outer.URL, Revision: m.Outer.Revision, Reason: "invalid outer pin", Err: err}
	}
	innerRepo := c.RepoURL(m.Inner.URL)
	if innerRepo == "" {
		innerRepo = outer.Repo() + "#" + filepath.ToSlash(filepath.Clean(m.Inner.Path))
	}
	inner, err := pin.New(innerRepo, m.Inner.Revision)
	if err != nil {
		return pin.Set{}, &failure.PinResolutionError{Repo: innerRepo, Revision: m.Inner.Revision, Reason: "invalid inner pin", Err: err}
	}
	return pin.Set{Outer: outer, Inner: inner, InnerPath: filepath.Clean(m.Inner.Path)}, nil
}

// Toolchain builds the immutable toolchain config from the manifest.
func (c *Context) Toolchain() (toolchain.Config, error) {
	return toolchain.New(c.Manifest.Toolchain)
}
