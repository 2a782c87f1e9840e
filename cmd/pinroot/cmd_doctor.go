package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/git"
	"github.com/fbkclanna/pinroot/internal/toolchain"
	"github.com/fbkclanna/pinroot/internal/ui"
	"github.com/fbkclanna/pinroot/internal/workspace"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the toolchain and that both pinned repositories are reachable",
		Args:  cobra.NoArgs,
		RunE:  a.runDoctor,
	}
}

func (a *app) runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	s := ui.NewStyles(out)

	// Without a workspace the default toolchain is checked.
	ws, loadErr := a.workspace(cmd)
	var settings toolchain.Settings
	if loadErr == nil {
		settings = ws.Manifest.Toolchain
	}
	tc, err := toolchain.New(settings)
	if err != nil {
		return &failure.ToolchainPreconditionError{Tool: "config", Detail: err.Error()}
	}

	var missing []string
	seen := map[string]bool{}
	for _, name := range append([]string{tc.Interpreter()}, tc.Tools()...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		_, _ = fmt.Fprintf(out, "Checking %s... ", name)
		p, err := tc.LookPath(name)
		if err != nil {
			_, _ = fmt.Fprintln(out, s.Bad("NOT FOUND"))
			missing = append(missing, name)
			continue
		}
		_, _ = fmt.Fprintf(out, "found at %s\n", p)
	}

	g := &git.Client{Env: tc.Env(), Config: tc.GitConfig()}
	if p, err := tc.LookPath("git"); err == nil {
		g.Bin = p
		_, _ = fmt.Fprint(out, "Checking git version... ")
		if ver, err := g.Version(cmd.Context()); err != nil {
			_, _ = fmt.Fprintln(out, s.Bad("ERROR"))
			missing = append(missing, "git")
		} else {
			_, _ = fmt.Fprintln(out, ver)
		}
	}

	reachable := true
	if loadErr != nil {
		_, _ = fmt.Fprintf(out, "No usable provision.yaml (%v); skipping repository checks\n", loadErr)
	} else if g.Bin != "" {
		reachable = checkRepoURLs(cmd, g, ws, s)
	}

	switch {
	case len(missing) > 0:
		_, _ = fmt.Fprintln(out, "\nSome checks failed. See above for details.")
		return &failure.ToolchainPreconditionError{Tool: missing[0], Detail: "not usable on the toolchain PATH"}
	case !reachable:
		_, _ = fmt.Fprintln(out, "\nSome checks failed. See above for details.")
		return errors.New("doctor checks failed")
	}
	_, _ = fmt.Fprintln(out, "\nAll checks passed.")
	return nil
}

// checkRepoURLs runs ls-remote against the outer repository and, when it has
// its own URL, the inner one.
func checkRepoURLs(cmd *cobra.Command, g *git.Client, ws *workspace.Context, s ui.Styles) bool {
	out := cmd.OutOrStdout()
	m := ws.Manifest
	repos := []struct{ label, url string }{{"outer", ws.RepoURL(m.Outer.URL)}}
	if m.Inner.URL != "" {
		repos = append(repos, struct{ label, url string }{"inner", ws.RepoURL(m.Inner.URL)})
	} else {
		_, _ = fmt.Fprintf(out, "  inner (%s) uses the outer repository's submodule URL\n", m.Inner.Path)
	}

	ok := true
	for _, r := range repos {
		_, _ = fmt.Fprintf(out, "  Checking %s (%s)... ", r.label, r.url)
		if g.Reachable(cmd.Context(), r.url) {
			_, _ = fmt.Fprintln(out, s.Good("OK"))
			continue
		}
		_, _ = fmt.Fprintln(out, s.Bad("FAILED (cannot access)"))
		ok = false
	}
	return ok
}
