package failure

import (
	"errors"
	"fmt"
)

// PinResolutionError reports that a pinned revision could not be resolved to
// exactly one commit in its repository.
type PinResolutionError struct {
	Repo     string
	Revision string
	Reason   string
	Err      error
}

func (e *PinResolutionError) Error() string {
	msg := fmt.Sprintf("resolving pin %s@%s", e.Repo, e.Revision)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PinResolutionError) Unwrap() error { return e.Err }

// MissingPathError reports an allow-listed, overlay, submodule or manifest
// path that does not exist where it was expected.
type MissingPathError struct {
	Kind string // "allow-list", "overlay", "submodule", "dependency manifest"
	Path string
	Root string
}

func (e *MissingPathError) Error() string {
	if e.Root == "" {
		return fmt.Sprintf("%s path %q does not exist", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s path %q does not exist in %s", e.Kind, e.Path, e.Root)
}

// DependencyInstallError reports a dependency manifest entry that could not
// be parsed or installed.
type DependencyInstallError struct {
	Manifest     string
	Requirements []string
	Err          error
}

func (e *DependencyInstallError) Error() string {
	src := e.Manifest
	if src == "" {
		src = "extras"
	}
	return fmt.Sprintf("installing dependencies from %s (%d requirements): %v", src, len(e.Requirements), e.Err)
}

func (e *DependencyInstallError) Unwrap() error { return e.Err }

// ToolchainPreconditionError reports a base toolchain component that is
// missing or misconfigured. The provisioner never remediates these.
type ToolchainPreconditionError struct {
	Tool   string
	Detail string
}

func (e *ToolchainPreconditionError) Error() string {
	return fmt.Sprintf("toolchain precondition failed: %s: %s", e.Tool, e.Detail)
}

// Stage names a pipeline stage for error reporting and exit codes.
type Stage string

const (
	StageToolchain   Stage = "toolchain"
	StagePins        Stage = "pins"
	StageMaterialize Stage = "materialize"
	StageExtract     Stage = "extract"
	StageOverlay     Stage = "overlay"
	StageDeps        Stage = "deps"
	StagePublish     Stage = "publish"
)

// StageError attributes an error to the pipeline stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// InStage wraps err with its stage. A nil err stays nil.
func InStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage err is attributed to, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
