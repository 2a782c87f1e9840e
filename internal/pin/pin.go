package pin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/git"
)

var revisionPattern = regexp.MustCompile(`^[0-9a-f]{4,64}$`)

// Pin identifies one commit of one repository. Values are immutable; use New.
type Pin struct {
	repo     string
	revision string
}

// New validates and returns a pin. Revisions must be explicit hexadecimal
// object ids; branch names, tags and HEAD are rejected.
func New(repo, revision string) (Pin, error) {
	if err := ValidateRevision(revision); err != nil {
		return Pin{}, fmt.Errorf("pin for %s: %w", repo, err)
	}
	if repo == "" {
		return Pin{}, fmt.Errorf("pin %s: repository is required", revision)
	}
	return Pin{repo: repo, revision: strings.ToLower(revision)}, nil
}

// ValidateRevision checks that rev is an explicit object id.
func ValidateRevision(rev string) error {
	if rev == "" {
		return errors.New("revision is required (pins are never defaulted)")
	}
	if !revisionPattern.MatchString(strings.ToLower(rev)) {
		return fmt.Errorf("revision %q is not a commit hash (branches, tags and HEAD are not allowed)", rev)
	}
	return nil
}

// Repo returns the repository URL.
func (p Pin) Repo() string { return p.repo }

// Revision returns the pinned revision as configured (lowercased).
func (p Pin) Revision() string { return p.revision }

// IsFull reports whether the revision is a full SHA-1 or SHA-256 object id.
func (p Pin) IsFull() bool { return len(p.revision) == 40 || len(p.revision) == 64 }

// IsZero reports whether p is the zero value.
func (p Pin) IsZero() bool { return p.repo == "" && p.revision == "" }

func (p Pin) String() string { return p.repo + "@" + p.revision }

// Set is the single source of truth for the two pins of a provisioning run.
type Set struct {
	Outer Pin
	Inner Pin
	// InnerPath is the inner repository's path inside the outer tree.
	InnerPath string
}

// Resolver resolves pins to commits inside existing clones.
type Resolver struct {
	Git *git.Client
}

// Resolve returns the full commit id p names inside repoDir.
//
// The repository is fetched first. A full revision that is still unknown is
// fetched directly once. The resolved id must start with the pinned
// revision; anything else means the pin does not belong to this repository.
func (r *Resolver) Resolve(ctx context.Context, repoDir string, p Pin) (string, error) {
	if p.IsZero() {
		return "", &failure.PinResolutionError{Reason: "empty pin"}
	}
	if err := r.Git.Fetch(ctx, repoDir); err != nil {
		return "", &failure.PinResolutionError{Repo: p.repo, Revision: p.revision, Reason: "fetch failed", Err: err}
	}

	commit, err := r.Git.ResolveCommit(ctx, repoDir, p.revision)
	if errors.Is(err, git.ErrUnknownRevision) && p.IsFull() {
		if ferr := r.Git.Fetch(ctx, repoDir, p.revision); ferr == nil {
			commit, err = r.Git.ResolveCommit(ctx, repoDir, p.revision)
		}
	}
	if err != nil {
		return "", &failure.PinResolutionError{Repo: p.repo, Revision: p.revision, Reason: "unknown or ambiguous revision", Err: err}
	}
	if !strings.HasPrefix(strings.ToLower(commit), p.revision) {
		return "", &failure.PinResolutionError{
			Repo:     p.repo,
			Revision: p.revision,
			Reason:   fmt.Sprintf("resolved to unrelated commit %s", commit),
		}
	}
	return commit, nil
}
