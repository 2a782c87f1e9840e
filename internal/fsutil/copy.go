package fsutil

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// SkipFunc reports whether the entry at rel (slash-separated, relative to the
// copy source) is left out. Skipping a directory skips its contents.
type SkipFunc func(rel string, d fs.DirEntry) bool

// CopyTree copies src to dst. src may be a file, a symlink or a directory.
// Regular file contents and permission bits are preserved, symlinks are
// recreated verbatim, and nothing else (owners, times) is carried over.
// Existing files at dst are overwritten; dst directories are not emptied.
func CopyTree(ctx context.Context, src, dst string, skip SkipFunc) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil { //nolint:gosec // build root is world-readable
			return err
		}
		return copyEntry(src, dst, info)
	}

	type dirMode struct {
		path string
		perm fs.FileMode
	}
	var dirs []dirMode

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && skip != nil && skip(filepath.ToSlash(rel), d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil { //nolint:gosec // build root is world-readable
				return err
			}
			dirs = append(dirs, dirMode{target, info.Mode().Perm()})
			return nil
		}
		return copyEntry(path, target, info)
	})
	if err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}

	// Apply directory modes last so read-only directories can still be filled.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].perm); err != nil {
			return fmt.Errorf("copying %s: %w", src, err)
		}
	}
	return nil
}

func copyEntry(src, dst string, info fs.FileInfo) error {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
		return os.Symlink(link, dst)
	case info.Mode().IsRegular():
		return copyFile(src, dst, info.Mode().Perm())
	default:
		return fmt.Errorf("%s: unsupported file type %s", src, info.Mode().Type())
	}
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src) //nolint:gosec // src comes from a walked tree
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	// Replace rather than truncate, so a symlink or read-only file at dst
	// does not redirect or block the write.
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm) //nolint:gosec // dst is inside the build root
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile honors the umask; set the exact bits.
	return os.Chmod(dst, perm)
}

// Exists reports whether path exists, without following a final symlink.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// RemoveAll removes path, first making directories writable so read-only
// trees copied from upstream can be deleted.
func RemoveAll(path string) error {
	err := os.RemoveAll(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr == nil && d.IsDir() {
			_ = os.Chmod(p, 0755) //nolint:gosec // making the tree removable
		}
		return nil
	})
	return os.RemoveAll(path)
}
