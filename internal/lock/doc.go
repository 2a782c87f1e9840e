// Package lock handles parsing and writing of provision.lock.yaml files.
// A lock file records the exact commits and build root digest of the last
// successful provisioning run. It lives beside the build root, never inside
// it, so the build root itself stays byte-identical across runs.
package lock
