package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/pinroot/internal/manifest"
	"github.com/fbkclanna/pinroot/internal/pin"
)

func newPinCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Rewrite the outer and/or inner pin in provision.yaml",
		Args:  cobra.NoArgs,
		RunE:  a.runPin,
	}
	cmd.Flags().String("outer", "", "Outer repository revision (hex object id)")
	cmd.Flags().String("inner", "", "Inner repository revision (hex object id)")
	return cmd
}

func (a *app) runPin(cmd *cobra.Command, _ []string) error {
	outer, _ := cmd.Flags().GetString("outer")
	inner, _ := cmd.Flags().GetString("inner")

	if outer == "" && inner == "" {
		return fmt.Errorf("nothing to pin; pass --outer and/or --inner")
	}
	if outer != "" {
		if err := pin.ValidateRevision(outer); err != nil {
			return fmt.Errorf("--outer: %w", err)
		}
	}
	if inner != "" {
		if err := pin.ValidateRevision(inner); err != nil {
			return fmt.Errorf("--inner: %w", err)
		}
	}

	ws, err := a.workspace(cmd)
	if err != nil {
		return err
	}

	m := ws.Manifest
	out := cmd.OutOrStdout()
	changed := false
	if outer != "" && outer != m.Outer.Revision {
		_, _ = fmt.Fprintf(out, "Pinned outer %s -> %s\n", m.Outer.Revision, outer)
		m.Outer.Revision = outer
		changed = true
	}
	if inner != "" && inner != m.Inner.Revision {
		_, _ = fmt.Fprintf(out, "Pinned inner %s -> %s\n", m.Inner.Revision, inner)
		m.Inner.Revision = inner
		changed = true
	}
	if !changed {
		_, _ = fmt.Fprintln(out, "Pins unchanged.")
		return nil
	}

	if err := manifest.Save(ws.ManifestPath, m); err != nil {
		return err
	}
	a.logger.Info("pins updated", "outer", m.Outer.Revision, "inner", m.Inner.Revision)

	if ws.Lock != nil {
		_, _ = fmt.Fprintln(out, "The build root is now stale; run `pinroot provision` to rebuild it.")
	}
	return nil
}
