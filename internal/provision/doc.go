// Package provision runs the build-root pipeline: toolchain check, pin
// resolution, materialization, subset extraction, overlays, dependency
// installation and publication.
//
// The build root is assembled in a run-private staging directory and only
// renamed into place after every stage succeeded. A failed run removes its
// scratch and staging space and the previous build root, so no partial or
// stale root survives a failure.
package provision
