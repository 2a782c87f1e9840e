package materialize

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/fsutil"
	"github.com/fbkclanna/pinroot/internal/git"
	"github.com/fbkclanna/pinroot/internal/logging"
	"github.com/fbkclanna/pinroot/internal/pin"
)

// WorkingTree is a materialized outer tree and the commits it was built from.
type WorkingTree struct {
	Dir         string
	OuterCommit string
	InnerPath   string
	InnerCommit string
}

// Materializer clones and pins repositories into scratch space.
type Materializer struct {
	Git      *git.Client
	Resolver *pin.Resolver
	Logger   *log.Logger
}

// New returns a Materializer that resolves pins with the same git client.
func New(g *git.Client, logger *log.Logger) *Materializer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Materializer{Git: g, Resolver: &pin.Resolver{Git: g}, Logger: logger}
}

// FetchAndCheckout clones repo fresh into scratch/outer and checks out the
// commit p resolves to. Any previous content at that location is removed.
func (m *Materializer) FetchAndCheckout(ctx context.Context, scratch string, p pin.Pin) (*WorkingTree, error) {
	dest := filepath.Join(scratch, "outer")
	if err := fsutil.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", dest, err)
	}
	if err := os.MkdirAll(scratch, 0755); err != nil { //nolint:gosec // scratch space
		return nil, fmt.Errorf("creating scratch space: %w", err)
	}

	m.Logger.Info("cloning outer repository", "repo", p.Repo(), "dest", dest)
	if err := m.Git.Clone(ctx, p.Repo(), dest); err != nil {
		return nil, &failure.PinResolutionError{Repo: p.Repo(), Revision: p.Revision(), Reason: "clone failed", Err: err}
	}
	if !git.IsCloned(dest) {
		return nil, fmt.Errorf("clone of %s produced no repository at %s", p.Repo(), dest)
	}

	commit, err := m.Resolver.Resolve(ctx, dest, p)
	if err != nil {
		return nil, err
	}
	if err := m.Git.CheckoutDetached(ctx, dest, commit); err != nil {
		return nil, fmt.Errorf("checking out %s: %w", commit, err)
	}
	if err := m.verifyPinned(ctx, dest, p, commit); err != nil {
		return nil, err
	}
	m.Logger.Info("outer repository pinned", "commit", commit)
	return &WorkingTree{Dir: dest, OuterCommit: commit}, nil
}

// InitNestedPin initializes only the named submodules of tree and then pins
// the inner one at innerPath to its own revision. The inner tree ends in
// exactly the state of its pinned commit: reset hard and cleaned of every
// untracked or ignored file. url, when set, replaces the submodule's
// recorded remote before fetching.
func (m *Materializer) InitNestedPin(ctx context.Context, tree *WorkingTree, subPaths []string, innerPath, url string, inner pin.Pin) error {
	declared, err := m.Git.SubmodulePaths(ctx, tree.Dir)
	if err != nil {
		return fmt.Errorf("reading submodules: %w", err)
	}
	known := make(map[string]bool, len(declared))
	for _, d := range declared {
		known[filepath.Clean(d)] = true
	}

	paths := normalize(subPaths)
	for _, p := range paths {
		if !known[p] {
			return &failure.MissingPathError{Kind: "submodule", Path: p, Root: tree.Dir}
		}
	}
	innerPath = filepath.Clean(innerPath)
	if !known[innerPath] {
		return &failure.MissingPathError{Kind: "submodule", Path: innerPath, Root: tree.Dir}
	}

	m.Logger.Info("initializing submodules", "paths", paths)
	if err := m.Git.SubmoduleInit(ctx, tree.Dir, paths); err != nil {
		return fmt.Errorf("initializing submodules: %w", err)
	}

	innerDir := filepath.Join(tree.Dir, innerPath)
	if !git.IsCloned(innerDir) {
		return &failure.MissingPathError{Kind: "submodule", Path: innerPath, Root: tree.Dir}
	}
	if url != "" {
		if err := m.Git.SetRemoteURL(ctx, innerDir, url); err != nil {
			return fmt.Errorf("setting %s remote: %w", innerPath, err)
		}
	}
	commit, err := m.Resolver.Resolve(ctx, innerDir, inner)
	if err != nil {
		return err
	}
	if err := m.Git.CheckoutDetached(ctx, innerDir, commit); err != nil {
		return fmt.Errorf("checking out %s in %s: %w", commit, innerPath, err)
	}
	if err := m.Git.ResetHard(ctx, innerDir, commit); err != nil {
		return fmt.Errorf("resetting %s: %w", innerPath, err)
	}
	if err := m.Git.Clean(ctx, innerDir); err != nil {
		return fmt.Errorf("cleaning %s: %w", innerPath, err)
	}
	if err := m.verifyPinned(ctx, innerDir, inner, commit); err != nil {
		return err
	}

	tree.InnerPath = innerPath
	tree.InnerCommit = commit
	m.Logger.Info("inner repository pinned", "path", innerPath, "commit", commit)
	return nil
}

// verifyPinned checks that dir sits at commit with no local modification.
// A HEAD elsewhere is a pin violation; leftover changes are a materialization
// failure.
func (m *Materializer) verifyPinned(ctx context.Context, dir string, p pin.Pin, commit string) error {
	head, err := m.Git.HeadCommit(ctx, dir)
	if err != nil {
		return fmt.Errorf("reading HEAD of %s: %w", dir, err)
	}
	if head != commit {
		return &failure.PinResolutionError{
			Repo:     p.Repo(),
			Revision: p.Revision(),
			Reason:   fmt.Sprintf("HEAD is %s after checking out %s", head, commit),
		}
	}
	dirty, err := m.Git.IsDirty(ctx, dir)
	if err != nil {
		return fmt.Errorf("checking %s for changes: %w", dir, err)
	}
	if dirty {
		return fmt.Errorf("%s has local changes after pinning %s", dir, commit)
	}
	return nil
}

// DiscardMetadata removes every .git directory or link file under tree,
// leaving a plain content snapshot.
func (m *Materializer) DiscardMetadata(tree *WorkingTree) error {
	var found []string
	err := filepath.WalkDir(tree.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Name() == ".git" {
			found = append(found, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning for metadata: %w", err)
	}
	for _, p := range found {
		if err := fsutil.RemoveAll(p); err != nil {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	m.Logger.Debug("discarded version-control metadata", "entries", len(found))
	return nil
}

func normalize(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		c := filepath.Clean(p)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
