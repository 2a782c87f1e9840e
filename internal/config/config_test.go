package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	s, used, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Defaults(), *s)
}

func TestLoad_fileInDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("jobs: 8\nlog_format: json\n"), 0600))

	s, used, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), used)
	assert.Equal(t, 8, s.Jobs)
	assert.Equal(t, "json", s.LogFormat)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoad_precedence(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log_level: warn\njobs: 2\nwork_dir: build\n"), 0600))

	t.Setenv("PINROOT_JOBS", "6")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Int("jobs", 4, "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	s, used, err := Load(LoadOptions{ConfigFile: cfg, Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, cfg, used)
	assert.Equal(t, "debug", s.LogLevel, "a changed flag beats the file")
	assert.Equal(t, 6, s.Jobs, "env beats the file when the flag is unchanged")
	assert.Equal(t, "build", s.WorkDir)
}

func TestLoad_missingExplicitFile(t *testing.T) {
	_, _, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestLoad_invalidJobs(t *testing.T) {
	t.Setenv("PINROOT_JOBS", "0")
	_, _, err := Load(LoadOptions{})
	assert.Error(t, err)
}
