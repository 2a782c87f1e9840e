package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/fsutil"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- <command...>",
		Short: "Run a command inside the build root with the toolchain environment",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runRun,
	}
	return cmd
}

func (a *app) runRun(cmd *cobra.Command, args []string) error {
	ws, err := a.workspace(cmd)
	if err != nil {
		return err
	}

	dir := ws.BuildRoot()
	ok, err := fsutil.Exists(dir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("build root %s does not exist; run `pinroot provision` first", dir)
	}

	tc, err := ws.Toolchain()
	if err != nil {
		return &failure.ToolchainPreconditionError{Tool: "config", Detail: err.Error()}
	}
	bin, err := tc.LookPath(args[0])
	if err != nil {
		return &failure.ToolchainPreconditionError{Tool: args[0], Detail: err.Error()}
	}

	a.logger.Debug("running", "dir", dir, "argv", args)
	c := exec.CommandContext(cmd.Context(), bin, args[1:]...) //nolint:gosec // user-provided command
	c.Dir = dir
	c.Env = tc.Env()
	c.Stdin = cmd.InOrStdin()
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}
