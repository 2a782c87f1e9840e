package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/fsutil"
	"github.com/fbkclanna/pinroot/internal/logging"
)

// DefaultJobs is the copy concurrency used when Options.Jobs is unset.
const DefaultJobs = 4

// Options tunes Extract.
type Options struct {
	// Jobs bounds the number of entries copied at once.
	Jobs   int
	Logger *log.Logger
}

// Normalize validates allow-list entries and returns them cleaned, sorted and
// deduplicated, with entries that lie under another entry dropped.
func Normalize(allowList []string) ([]string, error) {
	if len(allowList) == 0 {
		return nil, errors.New("allow-list is empty")
	}
	cleaned := make([]string, 0, len(allowList))
	for _, e := range allowList {
		if e == "" {
			return nil, errors.New("allow-list entry is empty")
		}
		if filepath.IsAbs(e) {
			return nil, fmt.Errorf("allow-list entry %q must be relative", e)
		}
		c := filepath.Clean(e)
		if c == "." || c == ".." || strings.HasPrefix(c, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("allow-list entry %q escapes the tree", e)
		}
		cleaned = append(cleaned, c)
	}
	sort.Strings(cleaned)

	out := make([]string, 0, len(cleaned))
	for _, c := range cleaned {
		if !covered(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func covered(parents []string, p string) bool {
	for _, parent := range parents {
		if p == parent || strings.HasPrefix(p, parent+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Extract copies every allow-listed path of src into dest, recreating dest
// empty first. All entries are checked before anything is written, so a
// missing entry leaves dest untouched.
func Extract(ctx context.Context, src string, allowList []string, dest string, opts Options) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	entries, err := Normalize(allowList)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		ok, err := fsutil.Exists(filepath.Join(src, e))
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", e, err)
		}
		if !ok {
			return nil, &failure.MissingPathError{Kind: "allow-list", Path: filepath.ToSlash(e), Root: src}
		}
	}

	if err := fsutil.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", dest, err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil { //nolint:gosec // build root is world-readable
		return nil, fmt.Errorf("creating %s: %w", dest, err)
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, e := range entries {
		g.Go(func() error {
			logger.Debug("extracting", "path", e)
			if err := fsutil.CopyTree(gctx, filepath.Join(src, e), filepath.Join(dest, e), nil); err != nil {
				return fmt.Errorf("extracting %s: %w", e, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("extracted subset", "entries", len(entries), "dest", dest)
	return entries, nil
}
