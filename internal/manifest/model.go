package manifest

import "github.com/fbkclanna/pinroot/internal/toolchain"

// FileName is the manifest file name inside a workspace.
const FileName = "provision.yaml"

// Provision represents the top-level provision.yaml manifest.
type Provision struct {
	Version      int                `yaml:"version"`
	Name         string             `yaml:"name"`
	Description  string             `yaml:"description,omitempty"`
	BuildRoot    string             `yaml:"build_root,omitempty"`
	Outer        Repo               `yaml:"outer"`
	Inner        Nested             `yaml:"inner"`
	Submodules   []string           `yaml:"submodules"`
	AllowList    []string           `yaml:"allow_list"`
	Overlays     []Overlay          `yaml:"overlays,omitempty"`
	Dependencies Dependencies       `yaml:"dependencies,omitempty"`
	Toolchain    toolchain.Settings `yaml:"toolchain,omitempty"`
}

// Repo is the outer repository and its pinned revision.
type Repo struct {
	URL      string `yaml:"url"`
	Revision string `yaml:"revision"`
}

// Nested is the inner sub-dependency: a path inside the outer tree plus its
// own independent pin. URL overrides the submodule's recorded URL when set.
type Nested struct {
	Path     string `yaml:"path"`
	URL      string `yaml:"url,omitempty"`
	Revision string `yaml:"revision"`
}

// Overlay copies a local tree over a build root subpath. Overlays apply in
// manifest order; the last one wins where targets overlap.
type Overlay struct {
	Source  string   `yaml:"source"`
	Dest    string   `yaml:"dest"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Dependencies names the dependency manifest inside the build root and a
// fixed set of extra requirements installed after it.
type Dependencies struct {
	Manifest string   `yaml:"manifest,omitempty"`
	Extras   []string `yaml:"extras,omitempty"`
}

// IsEmpty reports whether no dependency installation is configured.
func (d Dependencies) IsEmpty() bool {
	return d.Manifest == "" && len(d.Extras) == 0
}
