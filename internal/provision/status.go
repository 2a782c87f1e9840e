package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbkclanna/pinroot/internal/fsutil"
	"github.com/fbkclanna/pinroot/internal/lock"
	"github.com/fbkclanna/pinroot/internal/workspace"
)

// Status compares the build root on disk with its record and the manifest.
type Status struct {
	BuildRoot string     `json:"build_root"`
	Exists    bool       `json:"exists"`
	Record    *lock.File `json:"record,omitempty"`
	Digest    string     `json:"digest,omitempty"`
	// Intact is true when the build root's digest matches the record.
	Intact bool `json:"intact"`
	// PinsChanged is true when the manifest pins differ from the recorded ones.
	PinsChanged bool `json:"pins_changed"`
	// Busy is true while a run holds the build root.
	Busy bool `json:"busy"`
}

// Inspect reports the state of the workspace's build root.
func Inspect(ws *workspace.Context) (*Status, error) {
	st := &Status{BuildRoot: ws.BuildRoot(), Record: ws.Lock}
	if _, err := os.Stat(ws.GuardPath()); err == nil {
		st.Busy = true
	}

	ok, err := fsutil.Exists(st.BuildRoot)
	if err != nil {
		return nil, err
	}
	st.Exists = ok
	if ok {
		if st.Digest, err = fsutil.Digest(st.BuildRoot); err != nil {
			return nil, fmt.Errorf("computing digest: %w", err)
		}
	}

	if rec := ws.Lock; rec != nil {
		st.Intact = ok && rec.Digest == st.Digest
		m := ws.Manifest
		st.PinsChanged = !strings.EqualFold(rec.Outer.Revision, m.Outer.Revision) ||
			!strings.EqualFold(rec.Inner.Revision, m.Inner.Revision) ||
			filepath.ToSlash(filepath.Clean(m.Inner.Path)) != rec.Inner.Path
	}
	return st, nil
}

// Clean removes the build root, any leftover staging directories, scratch
// space and the record. It refuses while a run holds the build root.
func Clean(ws *workspace.Context) ([]string, error) {
	release, err := acquire(ws.GuardPath(), "clean")
	if err != nil {
		return nil, err
	}
	defer release()

	if err := ws.CheckBuildRoot(); err != nil {
		return nil, err
	}

	targets := []string{ws.BuildRoot(), filepath.Join(ws.WorkDir, "scratch")}
	partials, err := filepath.Glob(ws.BuildRoot() + ".partial-*")
	if err != nil {
		return nil, err
	}
	targets = append(targets, partials...)

	var removed []string
	for _, t := range targets {
		ok, err := fsutil.Exists(t)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		if err := fsutil.RemoveAll(t); err != nil {
			return removed, fmt.Errorf("removing %s: %w", t, err)
		}
		removed = append(removed, t)
	}
	if ws.Lock != nil {
		if err := lock.Remove(ws.LockPath); err != nil {
			return removed, err
		}
		removed = append(removed, ws.LockPath)
	}
	return removed, nil
}
