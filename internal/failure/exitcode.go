package failure

import "errors"

// Exit codes. Each pipeline stage fails with its own code so callers can tell
// which stage broke without parsing output.
const (
	ExitOK          = 0
	ExitGeneric     = 1
	ExitToolchain   = 10
	ExitPins        = 11
	ExitMaterialize = 12
	ExitExtract     = 13
	ExitOverlay     = 14
	ExitDeps        = 15
	ExitPublish     = 16
)

var stageExitCodes = map[Stage]int{
	StageToolchain:   ExitToolchain,
	StagePins:        ExitPins,
	StageMaterialize: ExitMaterialize,
	StageExtract:     ExitExtract,
	StageOverlay:     ExitOverlay,
	StageDeps:        ExitDeps,
	StagePublish:     ExitPublish,
}

// ExitCode maps err to the process exit code.
//
// Errors attributed to a stage use that stage's code. Unattributed taxonomy
// errors fall back to the stage that normally produces them.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if stage, ok := StageOf(err); ok {
		if code, ok := stageExitCodes[stage]; ok {
			return code
		}
	}

	var (
		tc *ToolchainPreconditionError
		pr *PinResolutionError
		di *DependencyInstallError
		mp *MissingPathError
	)
	switch {
	case errors.As(err, &tc):
		return ExitToolchain
	case errors.As(err, &pr):
		return ExitPins
	case errors.As(err, &di):
		return ExitDeps
	case errors.As(err, &mp):
		return ExitExtract
	}
	return ExitGeneric
}
