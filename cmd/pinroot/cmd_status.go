package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fbkclanna/pinroot/internal/provision"
	"github.com/fbkclanna/pinroot/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the build root and whether it still matches its record",
		Args:  cobra.NoArgs,
		RunE:  a.runStatus,
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func (a *app) runStatus(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	ws, err := a.workspace(cmd)
	if err != nil {
		return err
	}
	st, err := provision.Inspect(ws)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	tbl := ui.NewTable(out, "FIELD", "VALUE")
	s := tbl.Styles()
	m := ws.Manifest
	tbl.Row("name", m.Name)
	tbl.Row("build root", st.BuildRoot)
	tbl.Row("state", stateLabel(st, s))
	tbl.Row("outer", pinLabel(m.Outer.Revision, recorded(st, true), s))
	tbl.Row("inner", pinLabel(m.Inner.Revision, recorded(st, false), s)+" "+s.Dim("at "+m.Inner.Path))
	if st.Record != nil {
		tbl.Row("provisioned", st.Record.GeneratedAt)
		tbl.Row("digest", st.Record.Digest)
		if st.PinsChanged {
			tbl.Row("pins", s.Bad("changed since last provision"))
		} else {
			tbl.Row("pins", s.Good("match record"))
		}
	}
	return tbl.Flush()
}

func stateLabel(st *provision.Status, s ui.Styles) string {
	switch {
	case st.Busy:
		return s.Bad("busy (a run is in progress)")
	case st.Record == nil && !st.Exists:
		return s.Dim("not provisioned")
	case st.Record == nil:
		return s.Bad("unrecorded (no provision.lock.yaml)")
	case !st.Exists:
		return s.Bad("missing")
	case st.Intact:
		return s.Good("intact")
	default:
		return s.Bad("modified since provision")
	}
}

// recorded returns the commit a pin resolved to in the last run.
func recorded(st *provision.Status, outer bool) string {
	if st.Record == nil {
		return ""
	}
	if outer {
		return st.Record.Outer.Commit
	}
	return st.Record.Inner.Commit
}

func pinLabel(rev, commit string, s ui.Styles) string {
	if commit == "" {
		return rev
	}
	return rev + " " + s.Dim("-> "+commit)
}

