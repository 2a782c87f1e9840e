// Package overlay installs local trees over subpaths of a build root.
//
// Overlays are applied in the order given. Each destination subpath is
// removed before its source is copied in, so overlay content always replaces
// upstream content and the last overlay wins where destinations overlap.
package overlay
