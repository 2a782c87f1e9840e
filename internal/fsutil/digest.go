package fsutil

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Digest computes a deterministic SHA-256 digest of the tree at root.
//
// Entries are visited in lexical order. For each entry the relative path,
// type, permission bits and either the file contents or the symlink target
// are hashed, every field length-prefixed. Timestamps and owners are
// excluded, so two trees with the same content always share a digest.
func Digest(root string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		writeField(h, []byte(filepath.ToSlash(rel)))
		writeField(h, []byte(info.Mode().Type().String()))
		writeField(h, []byte(fmt.Sprintf("%o", info.Mode().Perm())))

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			writeField(h, []byte(link))
		case info.Mode().IsRegular():
			if err := writeFile(h, path, info.Size()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("digesting %s: %w", root, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func writeField(h hash.Hash, data []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	h.Write(data)
}

func writeFile(h hash.Hash, path string, size int64) error {
	f, err := os.Open(path) //nolint:gosec // path comes from a walked tree
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(size))
	h.Write(n[:])
	written, err := io.Copy(h, f)
	if err != nil {
		return err
	}
	if written != size {
		return fmt.Errorf("%s changed while hashing", path)
	}
	return nil
}
