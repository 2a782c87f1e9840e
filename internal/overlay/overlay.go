package overlay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/fsutil"
	"github.com/fbkclanna/pinroot/internal/logging"
)

// Overlay copies Source, relative to the workspace root, over Dest, relative
// to the build root. Exclude lists source-relative paths left out.
type Overlay struct {
	Source  string
	Dest    string
	Exclude []string
}

func (o Overlay) String() string { return o.Source + " -> " + o.Dest }

// Options tunes Install.
type Options struct {
	// Ignore lists absolute paths that are never copied from any source,
	// typically the tool's work directory and the build root itself.
	Ignore []string
	Logger *log.Logger
}

// Install applies overlays in order. Every source is checked before the
// build root is modified.
func Install(ctx context.Context, workspaceRoot, buildRoot string, overlays []Overlay, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	for _, o := range overlays {
		ok, err := fsutil.Exists(filepath.Join(workspaceRoot, o.Source))
		if err != nil {
			return fmt.Errorf("checking overlay %s: %w", o, err)
		}
		if !ok {
			return &failure.MissingPathError{Kind: "overlay", Path: o.Source, Root: workspaceRoot}
		}
	}

	for i, o := range overlays {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(workspaceRoot, o.Source)
		dst := filepath.Join(buildRoot, o.Dest)
		if err := checkNoSymlinks(buildRoot, o.Dest); err != nil {
			return fmt.Errorf("overlay %s: %w", o, err)
		}
		if err := fsutil.RemoveAll(dst); err != nil {
			return fmt.Errorf("clearing overlay destination %s: %w", o.Dest, err)
		}
		if err := fsutil.CopyTree(ctx, src, dst, skipper(src, o.Exclude, opts.Ignore)); err != nil {
			return fmt.Errorf("applying overlay %s: %w", o, err)
		}
		logger.Info("overlay applied", "order", i+1, "source", o.Source, "dest", o.Dest)
	}
	return nil
}

// checkNoSymlinks fails when any existing component of dest under root is a
// symbolic link, so clearing and copying never leave the build root.
func checkNoSymlinks(root, dest string) error {
	cur := root
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(dest)), "/") {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			rel, _ := filepath.Rel(root, cur)
			return fmt.Errorf("destination component %s is a symbolic link", filepath.ToSlash(rel))
		}
	}
	return nil
}

func skipper(src string, exclude, ignore []string) fsutil.SkipFunc {
	var prefixes []string
	for _, e := range exclude {
		prefixes = append(prefixes, filepath.ToSlash(filepath.Clean(e)))
	}
	for _, abs := range ignore {
		rel, err := filepath.Rel(src, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		prefixes = append(prefixes, filepath.ToSlash(rel))
	}

	return func(rel string, _ fs.DirEntry) bool {
		if path.Base(rel) == ".git" {
			return true
		}
		for _, p := range prefixes {
			if rel == p || strings.HasPrefix(rel, p+"/") {
				return true
			}
		}
		return false
	}
}
