package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/pinroot/internal/provision"
)

func newCleanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the build root, scratch space and record (requires --force)",
		Args:  cobra.NoArgs,
		RunE:  a.runClean,
	}
	cmd.Flags().Bool("force", false, "Required to confirm destructive operation")
	return cmd
}

func (a *app) runClean(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if !force {
		return fmt.Errorf("clean is destructive; pass --force to confirm")
	}

	ws, err := a.workspace(cmd)
	if err != nil {
		return err
	}

	removed, err := provision.Clean(ws)
	out := cmd.OutOrStdout()
	for _, p := range removed {
		_, _ = fmt.Fprintf(out, "Removed %s\n", p)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		_, _ = fmt.Fprintln(out, "Nothing to clean.")
	}
	return nil
}
