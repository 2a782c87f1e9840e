package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbkclanna/pinroot/internal/failure"
)

func fakeBin(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("#!/bin/sh\n"), 0755)) //nolint:gosec // test executable
	}
	return dir
}

func TestNew_defaults(t *testing.T) {
	c, err := New(Settings{})
	require.NoError(t, err)

	assert.Equal(t, "python3", c.Interpreter())
	assert.Equal(t, DefaultTools, c.Tools())
	assert.Equal(t, []string{"python3", "-m", "pip", "install", "--no-cache-dir"}, c.InstallCommand())
	assert.Contains(t, c.Env(), "LANG=en_US.UTF-8")
	assert.Contains(t, c.Env(), "LC_ALL=en_US.UTF-8")
}

func TestNew_explicitEnvIsSortedAndIsolated(t *testing.T) {
	bin := fakeBin(t)
	c, err := New(Settings{
		Path:   []string{bin},
		Locale: "C.UTF-8",
		Env:    map[string]string{"PYTHONPATH": "/opt/root", "SCONS_CACHE": "/tmp/cache"},
	})
	require.NoError(t, err)

	env := c.Env()
	assert.IsNonDecreasing(t, env)
	assert.Contains(t, env, "PATH="+bin)
	assert.Contains(t, env, "LC_ALL=C.UTF-8")
	assert.Contains(t, env, "PYTHONPATH=/opt/root")

	env[0] = "MUTATED=1"
	assert.NotContains(t, c.Env(), "MUTATED=1")
}

func TestNew_installCommandExpandsToolchainEnv(t *testing.T) {
	c, err := New(Settings{
		Env:            map[string]string{"PIP": "/opt/venv/bin/pip"},
		InstallCommand: `$PIP install --no-cache-dir "--prefix=/opt/deps"`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/venv/bin/pip", "install", "--no-cache-dir", "--prefix=/opt/deps"}, c.InstallCommand())
}

func TestNew_invalid(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
	}{
		{"bad env name", Settings{Env: map[string]string{"A=B": "x"}}},
		{"bad git config", Settings{GitConfig: []string{"protocol.file.allow"}}},
		{"unterminated quote", Settings{InstallCommand: `pip install "oops`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.s)
			assert.Error(t, err)
		})
	}
}

func TestCheck(t *testing.T) {
	bin := fakeBin(t, "python3", "git", "cppcheck")

	c, err := New(Settings{Path: []string{bin}, Tools: []string{"git", "cppcheck"}})
	require.NoError(t, err)
	assert.NoError(t, Check(c))

	c, err = New(Settings{Path: []string{bin}, Tools: []string{"git", "arm-none-eabi-gcc"}})
	require.NoError(t, err)
	err = Check(c)
	var tc *failure.ToolchainPreconditionError
	require.ErrorAs(t, err, &tc)
	assert.Equal(t, "arm-none-eabi-gcc", tc.Tool)
}

func TestLookPath_ignoresProcessPath(t *testing.T) {
	c, err := New(Settings{Path: []string{t.TempDir()}})
	require.NoError(t, err)
	_, err = c.LookPath("sh")
	assert.Error(t, err, "sh must not resolve through the process PATH")
}
