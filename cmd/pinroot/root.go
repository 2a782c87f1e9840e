package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fbkclanna/pinroot/internal/config"
	"github.com/fbkclanna/pinroot/internal/logging"
	"github.com/fbkclanna/pinroot/internal/workspace"
)

// app carries what PersistentPreRunE resolved to the subcommands.
type app struct {
	settings *config.Settings
	logger   *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	d := config.Defaults()

	cmd := &cobra.Command{
		Use:               "pinroot",
		Short:             "Provision a pinned, reproducible firmware build root",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := cmd.PersistentFlags()
	pf.String("root", ".", "Workspace directory containing provision.yaml")
	pf.String("config", "", "Tool config file (default: pinroot.yaml in --root, if present)")
	pf.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	pf.String("log-format", d.LogFormat, "Log format: text, json or logfmt")
	pf.String("work-dir", d.WorkDir, "Scratch and build root directory, relative to --root")

	cmd.AddCommand(
		newInitCmd(a),
		newProvisionCmd(a),
		newPinCmd(a),
		newStatusCmd(a),
		newDoctorCmd(a),
		newRunCmd(a),
		newCleanCmd(a),
	)

	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Root().PersistentFlags().GetString("config")
	s, used, err := config.Load(config.LoadOptions{
		ConfigFile: cfgFile,
		Dir:        rootDir(cmd),
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}
	if used != "" {
		logger.Debug("loaded config", "path", used)
	}
	a.settings = s
	a.logger = logger
	return nil
}

// workspace loads the workspace named by --root.
func (a *app) workspace(cmd *cobra.Command) (*workspace.Context, error) {
	return workspace.Load(rootDir(cmd), a.settings.WorkDir)
}

func rootDir(cmd *cobra.Command) string {
	root, _ := cmd.Root().PersistentFlags().GetString("root")
	return root
}
