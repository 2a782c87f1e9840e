package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/pinroot/internal/config"
	"github.com/fbkclanna/pinroot/internal/provision"
	"github.com/fbkclanna/pinroot/internal/ui"
)

func newProvisionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Materialize the pinned build root from scratch",
		Args:  cobra.NoArgs,
		RunE:  a.runProvision,
	}
	cmd.Flags().Bool("skip-deps", false, "Skip dependency installation")
	cmd.Flags().Int("jobs", config.Defaults().Jobs, "Parallel copy workers during extraction")
	cmd.Flags().Bool("keep-scratch", false, "Keep the scratch clone after the run")
	return cmd
}

func (a *app) runProvision(cmd *cobra.Command, _ []string) error {
	skipDeps, _ := cmd.Flags().GetBool("skip-deps")

	ws, err := a.workspace(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	res, err := provision.Run(cmd.Context(), ws, provision.Options{
		Jobs:        a.settings.Jobs,
		KeepScratch: a.settings.KeepScratch,
		SkipDeps:    skipDeps,
		ToolVersion: version,
		Logger:      a.logger,
		Progress:    ui.NewProgress(out, provision.Stages),
		Output:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\nBuild root ready: %s\n", res.BuildRoot)
	_, _ = fmt.Fprintf(out, "  outer  %s\n", res.OuterCommit)
	_, _ = fmt.Fprintf(out, "  inner  %s (%s)\n", res.InnerCommit, res.Record.Inner.Path)
	_, _ = fmt.Fprintf(out, "  digest %s\n", res.Digest)
	return nil
}
