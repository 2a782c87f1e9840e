package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/logging"
)

// ErrNoInstaller is returned when no install command is configured.
var ErrNoInstaller = errors.New("no install command configured")

// Runner starts a command. env is the complete environment; nothing is
// inherited from the calling process.
type Runner interface {
	Run(ctx context.Context, dir string, env, argv []string) error
}

// Installer installs requirements with Command, an argv prefix to which the
// requirement strings are appended.
type Installer struct {
	Runner  Runner
	Command []string
	Env     []string
	Logger  *log.Logger
}

// Install installs the requirements of the manifest at rel inside buildRoot,
// then extras, as two separate invocations. rel may be empty. It returns
// every requirement installed, manifest entries first.
func (in *Installer) Install(ctx context.Context, buildRoot, rel string, extras []string) ([]string, error) {
	logger := in.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if len(in.Command) == 0 {
		return nil, &failure.DependencyInstallError{Manifest: rel, Err: ErrNoInstaller}
	}

	var reqs []string
	if rel != "" {
		var err error
		if reqs, err = ReadManifest(buildRoot, rel); err != nil {
			return nil, err
		}
	}

	if len(reqs) > 0 {
		logger.Info("installing manifest dependencies", "manifest", rel, "count", len(reqs))
		if err := in.run(ctx, buildRoot, reqs); err != nil {
			return nil, &failure.DependencyInstallError{Manifest: rel, Requirements: reqs, Err: err}
		}
	}
	if len(extras) > 0 {
		logger.Info("installing extra dependencies", "count", len(extras))
		if err := in.run(ctx, buildRoot, extras); err != nil {
			return nil, &failure.DependencyInstallError{Requirements: extras, Err: err}
		}
	}
	return append(reqs, extras...), nil
}

func (in *Installer) run(ctx context.Context, dir string, reqs []string) error {
	argv := make([]string, 0, len(in.Command)+len(reqs))
	argv = append(argv, in.Command...)
	argv = append(argv, reqs...)
	return in.Runner.Run(ctx, dir, in.Env, argv)
}

// ExecRunner runs commands as child processes. The executable is looked up
// on the PATH carried in env.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, dir string, env, argv []string) error {
	if len(argv) == 0 {
		return ErrNoInstaller
	}
	bin, err := LookPath(env, argv[0])
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, argv[1:]...) //nolint:gosec // argv comes from the toolchain config
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return nil
}

// LookPath resolves name against the PATH entry of env.
func LookPath(env []string, name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}
	var pathList string
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			pathList = v
		}
	}
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() && info.Mode().Perm()&0111 != 0 {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}
