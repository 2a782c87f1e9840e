package provision

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrBusy is returned when another run holds the build root.
var ErrBusy = errors.New("build root is in use by another run")

// acquire creates the guard file at path exclusively. The returned function
// removes it.
func acquire(path, runID string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil { //nolint:gosec // work dir is world-readable
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644) //nolint:gosec // guard file holds no secrets
	if errors.Is(err, fs.ErrExist) {
		holder, _ := os.ReadFile(path) //nolint:gosec // path is derived from the workspace
		return nil, fmt.Errorf("%w: %s held by %s (remove it if no run is active)", ErrBusy, path, strings.TrimSpace(string(holder)))
	}
	if err != nil {
		return nil, fmt.Errorf("creating guard %s: %w", path, err)
	}
	_, werr := fmt.Fprintf(f, "run %s pid %d\n", runID, os.Getpid())
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing guard %s: %w", path, werr)
	}
	return func() { _ = os.Remove(path) }, nil
}
