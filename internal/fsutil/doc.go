// Package fsutil provides the file system operations the pipeline is built
// from: tree copies that preserve permission bits and symlinks, safe removal,
// and a deterministic content digest of a tree.
package fsutil
