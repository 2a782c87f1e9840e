package toolchain

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/fbkclanna/pinroot/internal/failure"
)

// DefaultInstallCommand installs Python requirements without a cache so the
// result does not depend on host state.
const DefaultInstallCommand = "python3 -m pip install --no-cache-dir"

// DefaultTools are the executables the firmware build and analysis need.
var DefaultTools = []string{"git", "python3", "arm-none-eabi-gcc", "cppcheck"}

// Settings is the serializable form of a toolchain, as written in the manifest.
type Settings struct {
	Interpreter    string            `yaml:"interpreter,omitempty"`
	Path           []string          `yaml:"path,omitempty"`
	Locale         string            `yaml:"locale,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
	Tools          []string          `yaml:"tools,omitempty"`
	GitConfig      []string          `yaml:"git_config,omitempty"`
	InstallCommand string            `yaml:"install_command,omitempty"`
}

// Config is an immutable toolchain description. Construct it with New; the
// zero value is not usable.
type Config struct {
	interpreter string
	path        []string
	home        string
	env         map[string]string
	tools       []string
	gitConfig   []string
	install     []string
}

// New builds a Config from manifest settings. Unset fields take defaults;
// PATH and HOME are captured from the process exactly once, here.
func New(s Settings) (Config, error) {
	c := Config{
		interpreter: s.Interpreter,
		path:        append([]string(nil), s.Path...),
		home:        os.Getenv("HOME"),
		env:         make(map[string]string, len(s.Env)+2),
		tools:       append([]string(nil), s.Tools...),
		gitConfig:   append([]string(nil), s.GitConfig...),
	}
	if c.interpreter == "" {
		c.interpreter = "python3"
	}
	if len(c.path) == 0 {
		c.path = filepath.SplitList(os.Getenv("PATH"))
	}
	if len(c.tools) == 0 {
		c.tools = append([]string(nil), DefaultTools...)
	}

	locale := s.Locale
	if locale == "" {
		locale = "en_US.UTF-8"
	}
	c.env["LANG"] = locale
	c.env["LC_ALL"] = locale
	for k, v := range s.Env {
		if k == "" || strings.Contains(k, "=") {
			return Config{}, fmt.Errorf("toolchain: invalid environment variable name %q", k)
		}
		c.env[k] = v
	}

	installCmd := s.InstallCommand
	if installCmd == "" {
		installCmd = DefaultInstallCommand
	}
	argv, err := shell.Fields(installCmd, c.lookupEnv)
	if err != nil {
		return Config{}, fmt.Errorf("toolchain: parsing install_command %q: %w", installCmd, err)
	}
	if len(argv) == 0 {
		return Config{}, fmt.Errorf("toolchain: install_command is empty")
	}
	c.install = argv

	for _, kv := range c.gitConfig {
		if !strings.Contains(kv, "=") {
			return Config{}, fmt.Errorf("toolchain: git_config entry %q must be key=value", kv)
		}
	}
	return c, nil
}

// lookupEnv resolves $VARS in install_command against the toolchain env only.
func (c Config) lookupEnv(name string) string {
	switch name {
	case "PATH":
		return strings.Join(c.path, string(os.PathListSeparator))
	case "HOME":
		return c.home
	}
	return c.env[name]
}

// Env returns the complete, sorted environment for child processes.
func (c Config) Env() []string {
	env := make([]string, 0, len(c.env)+2)
	env = append(env, "PATH="+strings.Join(c.path, string(os.PathListSeparator)))
	if c.home != "" {
		env = append(env, "HOME="+c.home)
	}
	for k, v := range c.env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// Interpreter returns the configured interpreter name or path.
func (c Config) Interpreter() string { return c.interpreter }

// Tools returns the required tool names.
func (c Config) Tools() []string { return append([]string(nil), c.tools...) }

// GitConfig returns git -c overrides.
func (c Config) GitConfig() []string { return append([]string(nil), c.gitConfig...) }

// InstallCommand returns the dependency installer argv prefix.
func (c Config) InstallCommand() []string { return append([]string(nil), c.install...) }

// LookPath resolves name against the toolchain PATH, not the process PATH.
func (c Config) LookPath(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s is not an executable file", name)
	}
	for _, dir := range c.path {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if isExecutable(p) {
			return p, nil
		}
	}
	return "", exec.ErrNotFound
}

// Check verifies the interpreter and every required tool resolve. The first
// miss is returned as a ToolchainPreconditionError.
func Check(c Config) error {
	names := append([]string{c.interpreter}, c.tools...)
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, err := c.LookPath(name); err != nil {
			return &failure.ToolchainPreconditionError{Tool: name, Detail: err.Error()}
		}
	}
	return nil
}

func isExecutable(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}
