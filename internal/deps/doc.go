// Package deps installs the library dependencies a build root declares,
// followed by a fixed set of extras.
//
// The dependency manifest is read from inside the build root, so it reflects
// the pinned upstream content. requirements.txt files (with -r includes) and
// pyproject.toml [project].dependencies are understood.
package deps
