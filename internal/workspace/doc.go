// Package workspace integrates manifest and record loading with path
// resolution. Its Context holds the resolved workspace paths, the loaded
// manifest, and the pins and toolchain derived from it.
package workspace
