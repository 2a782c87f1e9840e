package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/lock"
	"github.com/fbkclanna/pinroot/internal/pin"
)

// Validate checks the manifest for errors.
func Validate(p *Provision) error { return validate(p) }

// Save validates and writes a manifest to disk.
func Save(path string, p *Provision) error {
	if err := validate(p); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil { //nolint:gosec // manifest needs to be readable
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Load reads and validates a provision.yaml file.
func Load(path string) (*Provision, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is the workspace manifest
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates provision.yaml content.
func Parse(data []byte) (*Provision, error) {
	var p Provision
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing manifest YAML: %w", err)
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validate(p *Provision) error {
	if p.Version != 1 {
		return fmt.Errorf("unsupported manifest version: %d (expected 1)", p.Version)
	}
	if p.Name == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if p.BuildRoot != "" {
		if err := validateSubpath(p.BuildRoot, "build_root"); err != nil {
			return err
		}
	}

	if p.Outer.URL == "" {
		return fmt.Errorf("manifest: outer.url is required")
	}
	if err := pin.ValidateRevision(p.Outer.Revision); err != nil {
		return &failure.PinResolutionError{Repo: p.Outer.URL, Revision: p.Outer.Revision, Reason: "manifest: outer.revision", Err: err}
	}

	if err := validateSubmodules(p); err != nil {
		return err
	}

	if len(p.AllowList) == 0 {
		return fmt.Errorf("manifest: allow_list must name at least one path")
	}
	for i, a := range p.AllowList {
		if err := validateSubpath(a, fmt.Sprintf("allow_list[%d]", i)); err != nil {
			return err
		}
	}

	for i, o := range p.Overlays {
		if err := validateOverlay(i, o); err != nil {
			return err
		}
	}
	if err := validateBuildRoot(p); err != nil {
		return err
	}

	if p.Dependencies.Manifest != "" {
		if err := validateSubpath(p.Dependencies.Manifest, "dependencies.manifest"); err != nil {
			return err
		}
	}
	for i, e := range p.Dependencies.Extras {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("manifest: dependencies.extras[%d] is empty", i)
		}
	}
	return nil
}

func validateSubmodules(p *Provision) error {
	seen := make(map[string]bool, len(p.Submodules))
	for i, s := range p.Submodules {
		if err := validateSubpath(s, fmt.Sprintf("submodules[%d]", i)); err != nil {
			return err
		}
		seen[filepath.Clean(s)] = true
	}

	if p.Inner.Path == "" {
		return fmt.Errorf("manifest: inner.path is required")
	}
	if err := validateSubpath(p.Inner.Path, "inner.path"); err != nil {
		return err
	}
	if !seen[filepath.Clean(p.Inner.Path)] {
		return fmt.Errorf("manifest: inner.path %q must be listed in submodules", p.Inner.Path)
	}
	if err := pin.ValidateRevision(p.Inner.Revision); err != nil {
		return &failure.PinResolutionError{Repo: p.Inner.Path, Revision: p.Inner.Revision, Reason: "manifest: inner.revision", Err: err}
	}
	return nil
}

func validateOverlay(i int, o Overlay) error {
	label := fmt.Sprintf("overlays[%d]", i)
	if o.Source == "" {
		return fmt.Errorf("manifest: %s.source is required", label)
	}
	if err := validatePath(o.Source, label+".source"); err != nil {
		return err
	}
	if o.Dest == "" {
		return fmt.Errorf("manifest: %s.dest is required", label)
	}
	if err := validateSubpath(o.Dest, label+".dest"); err != nil {
		return err
	}
	for j, ex := range o.Exclude {
		if err := validateSubpath(ex, fmt.Sprintf("%s.exclude[%d]", label, j)); err != nil {
			return err
		}
	}
	return nil
}

// validateBuildRoot rejects build roots whose removal would delete workspace
// content: an overlay source, or the manifest and record files.
func validateBuildRoot(p *Provision) error {
	if p.BuildRoot == "" {
		return nil
	}
	br := filepath.Clean(p.BuildRoot)
	first := strings.Split(filepath.ToSlash(br), "/")[0]
	for _, reserved := range []string{FileName, lock.FileName} {
		if first == reserved {
			return fmt.Errorf("manifest: build_root %q would replace %s", p.BuildRoot, reserved)
		}
	}
	for i, o := range p.Overlays {
		src := filepath.Clean(o.Source)
		// The workspace itself is a valid source; the overlay skips the build root.
		if src == "." {
			continue
		}
		if within(br, src) || within(src, br) {
			return fmt.Errorf("manifest: build_root %q overlaps overlays[%d].source %q", p.BuildRoot, i, o.Source)
		}
	}
	return nil
}

// within reports whether path equals parent or lies below it. Both are
// cleaned relative paths.
func within(parent, path string) bool {
	return path == parent || strings.HasPrefix(path, parent+string(filepath.Separator))
}

// validatePath ensures a path is relative and does not escape its root.
func validatePath(p, label string) error {
	if filepath.IsAbs(p) {
		return fmt.Errorf("manifest: %s: absolute path is not allowed: %s", label, p)
	}
	cleaned := filepath.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("manifest: %s: path must not escape its root (contains ..): %s", label, p)
	}
	return nil
}

// validateSubpath is validatePath that also rejects the root itself.
func validateSubpath(p, label string) error {
	if err := validatePath(p, label); err != nil {
		return err
	}
	if filepath.Clean(p) == "." {
		return fmt.Errorf("manifest: %s: must name a path below the root, got %q", label, p)
	}
	return nil
}
