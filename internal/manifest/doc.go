// Package manifest parses and validates provision.yaml, the declarative
// description of what a build root is made of: the two pins, the submodules
// to initialize, the allow-list, the overlays and the dependency manifest.
package manifest
