package lock

// FileName is the lock file name inside a workspace.
const FileName = "provision.lock.yaml"

// File represents provision.lock.yaml.
type File struct {
	Version      int       `yaml:"version"`
	Name         string    `yaml:"name"`
	GeneratedAt  string    `yaml:"generated_at"`
	ToolVersion  string    `yaml:"tool_version"`
	RunID        string    `yaml:"run_id"`
	Outer        Repo      `yaml:"outer"`
	Inner        Repo      `yaml:"inner"`
	BuildRoot    string    `yaml:"build_root"`
	Digest       string    `yaml:"digest"`
	AllowList    []string  `yaml:"allow_list"`
	Overlays     []Overlay `yaml:"overlays,omitempty"`
	Dependencies []string  `yaml:"dependencies,omitempty"`
}

// Repo records the pinned and resolved state of a single repository.
type Repo struct {
	Path     string `yaml:"path,omitempty"`
	URL      string `yaml:"url,omitempty"`
	Revision string `yaml:"revision"`
	Commit   string `yaml:"commit"`
}

// Overlay records an applied overlay in application order.
type Overlay struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}
