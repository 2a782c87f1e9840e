// Package config loads tool settings (not the project manifest) from an
// optional config file, PINROOT_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the workspace root when no
// explicit path is given.
const FileName = "pinroot.yaml"

// EnvPrefix prefixes environment overrides, e.g. PINROOT_LOG_LEVEL.
const EnvPrefix = "PINROOT"

// Settings are the tool's own knobs.
type Settings struct {
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	WorkDir     string `mapstructure:"work_dir"`
	Jobs        int    `mapstructure:"jobs"`
	KeepScratch bool   `mapstructure:"keep_scratch"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Settings {
	return Settings{
		LogLevel:  "info",
		LogFormat: "text",
		WorkDir:   ".pinroot",
		Jobs:      4,
	}
}

// LoadOptions selects where settings come from.
type LoadOptions struct {
	// ConfigFile, when set, must exist and is the only file read.
	ConfigFile string
	// Dir is searched for FileName when ConfigFile is empty.
	Dir string
	// Flags are bound by name with dashes, e.g. --log-level for log_level.
	Flags *pflag.FlagSet
}

// Load resolves settings and returns them with the config file used, if any.
func Load(opts LoadOptions) (*Settings, string, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("jobs", d.Jobs)
	v.SetDefault("keep_scratch", d.KeepScratch)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if opts.Flags != nil {
		for _, key := range v.AllKeys() {
			if f := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("binding flag --%s: %w", f.Name, err)
				}
			}
		}
	}

	resolved := ""
	switch {
	case opts.ConfigFile != "":
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
		resolved = opts.ConfigFile
	case opts.Dir != "":
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(opts.Dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("reading config: %w", err)
			}
		} else {
			resolved = v.ConfigFileUsed()
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if s.Jobs < 1 {
		return nil, "", fmt.Errorf("jobs must be at least 1, got %d", s.Jobs)
	}
	if s.WorkDir == "" {
		return nil, "", errors.New("work_dir must not be empty")
	}
	return &s, resolved, nil
}
