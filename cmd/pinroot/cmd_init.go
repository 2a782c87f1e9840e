package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/pinroot/internal/git"
	"github.com/fbkclanna/pinroot/internal/manifest"
	"github.com/fbkclanna/pinroot/internal/workspace"
)

// Template defaults describe the panda safety-test environment: an
// openpilot checkout with opendbc as the independently pinned submodule.
const (
	defaultOuterURL  = "https://github.com/commaai/openpilot.git"
	defaultInnerPath = "opendbc"
	addonDir         = "misra"
)

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Create a new workspace with a starter provision.yaml",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runInit,
	}
	cmd.Flags().String("from", "", "Import manifest from local path or repo#path")
	cmd.Flags().Bool("force", false, "Overwrite existing workspace")
	cmd.Flags().String("outer-url", defaultOuterURL, "Outer repository URL for the template")
	cmd.Flags().String("outer", "", "Outer repository revision (required without --from)")
	cmd.Flags().String("inner", "", "Inner repository revision (required without --from)")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	name := args[0]
	root := rootDir(cmd)
	from, _ := cmd.Flags().GetString("from")
	force, _ := cmd.Flags().GetBool("force")
	outerURL, _ := cmd.Flags().GetString("outer-url")
	outer, _ := cmd.Flags().GetString("outer")
	inner, _ := cmd.Flags().GetString("inner")

	if filepath.IsAbs(name) || strings.Contains(filepath.Clean(name), "..") {
		return fmt.Errorf("invalid workspace name %q: must be a simple directory name (no absolute paths or ..)", name)
	}

	wsDir := filepath.Join(root, name)
	manifestPath := filepath.Join(wsDir, manifest.FileName)

	if _, err := os.Stat(manifestPath); err == nil && !force {
		return fmt.Errorf("workspace %q already exists (use --force to overwrite)", name)
	}

	// Build manifest data before creating directory to avoid leaving empty dirs on error.
	var data []byte
	switch {
	case from != "":
		src, err := fetchFrom(cmd.Context(), cmd, from)
		if err != nil {
			return fmt.Errorf("reading --from source: %w", err)
		}
		if _, err := manifest.Parse(src); err != nil {
			return fmt.Errorf("invalid manifest from %s: %w", from, err)
		}
		data = src
	default:
		if outer == "" || inner == "" {
			return fmt.Errorf("pins are never defaulted: pass --outer and --inner revisions, or use --from")
		}
		p := templateManifest(name, outerURL, outer, inner)
		if err := manifest.Validate(p); err != nil {
			return err
		}
		if err := os.MkdirAll(wsDir, 0755); err != nil { //nolint:gosec // workspace dir needs to be world-readable
			return fmt.Errorf("creating workspace directory: %w", err)
		}
		if err := os.MkdirAll(filepath.Join(wsDir, addonDir), 0755); err != nil { //nolint:gosec // overlay source
			return fmt.Errorf("creating %s: %w", addonDir, err)
		}
		if err := manifest.Save(manifestPath, p); err != nil {
			return err
		}
	}

	if data != nil {
		if err := os.MkdirAll(wsDir, 0755); err != nil { //nolint:gosec // workspace dir needs to be world-readable
			return fmt.Errorf("creating workspace directory: %w", err)
		}
		if err := os.WriteFile(manifestPath, data, 0644); err != nil { //nolint:gosec // manifest file needs to be readable
			return fmt.Errorf("writing manifest: %w", err)
		}
	}

	gitignorePath := filepath.Join(wsDir, ".gitignore")
	if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(gitignorePath, []byte(generateGitignore(a.settings.WorkDir)), 0644); err != nil { //nolint:gosec // .gitignore needs to be readable
			return fmt.Errorf("writing .gitignore: %w", err)
		}
	}

	a.logger.Info("workspace created", "name", name, "path", wsDir)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Workspace %q created at %s\n", name, wsDir)
	return nil
}

// templateManifest is the starter manifest for the panda test environment.
// The workspace itself is the firmware project and is overlaid as panda/.
func templateManifest(name, outerURL, outer, inner string) *manifest.Provision {
	return &manifest.Provision{
		Version:     1,
		Name:        name,
		Description: "Firmware build and static-analysis root",
		Outer:       manifest.Repo{URL: outerURL, Revision: outer},
		Inner:       manifest.Nested{Path: defaultInnerPath, Revision: inner},
		Submodules:  []string{"cereal", defaultInnerPath, "rednose_repo", "body"},
		AllowList: []string{
			"SConstruct", "site_scons", "tools", "selfdrive", "system", "common",
			"cereal", defaultInnerPath, "rednose_repo", "third_party", "body",
		},
		Overlays: []manifest.Overlay{
			{Source: ".", Dest: "panda", Exclude: []string{addonDir}},
			{Source: addonDir, Dest: "panda/tests/misra/cppcheck/addons"},
		},
		Dependencies: manifest.Dependencies{
			Manifest: defaultInnerPath + "/requirements.txt",
		},
	}
}

// generateGitignore keeps the work directory out of version control. The
// record stays tracked so the resolved commits are reviewable.
func generateGitignore(workDir string) string {
	if workDir == "" || filepath.IsAbs(workDir) {
		workDir = workspace.DefaultWorkDir
	}
	return strings.TrimSuffix(filepath.ToSlash(workDir), "/") + "/\n"
}

// fetchFrom reads manifest content from a local path or repo#path format.
// For repo#path the repository's default branch is cloned into a temporary
// directory and the file read from there.
func fetchFrom(ctx context.Context, cmd *cobra.Command, src string) ([]byte, error) {
	repo, path, ok := strings.Cut(src, "#")
	if !ok {
		return os.ReadFile(src) //nolint:gosec // user-provided --from path
	}

	tmpDir, err := os.MkdirTemp("", "pinroot-from-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	g := &git.Client{Stderr: cmd.ErrOrStderr()}
	dest := filepath.Join(tmpDir, "repo")
	if err := g.Clone(ctx, repo, dest); err != nil {
		return nil, err
	}
	if err := g.CheckoutDetached(ctx, dest, "HEAD"); err != nil {
		return nil, fmt.Errorf("checking out %s: %w", repo, err)
	}
	return os.ReadFile(filepath.Join(dest, filepath.FromSlash(path))) //nolint:gosec // path from user-provided --from flag
}
