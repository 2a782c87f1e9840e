package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/fbkclanna/pinroot/internal/deps"
	"github.com/fbkclanna/pinroot/internal/extract"
	"github.com/fbkclanna/pinroot/internal/failure"
	"github.com/fbkclanna/pinroot/internal/fsutil"
	"github.com/fbkclanna/pinroot/internal/git"
	"github.com/fbkclanna/pinroot/internal/lock"
	"github.com/fbkclanna/pinroot/internal/logging"
	"github.com/fbkclanna/pinroot/internal/materialize"
	"github.com/fbkclanna/pinroot/internal/overlay"
	"github.com/fbkclanna/pinroot/internal/pin"
	"github.com/fbkclanna/pinroot/internal/toolchain"
	"github.com/fbkclanna/pinroot/internal/ui"
	"github.com/fbkclanna/pinroot/internal/workspace"
)

// Stages is the number of progress steps a run reports.
const Stages = 6

// Options tunes a run. The zero value is usable.
type Options struct {
	Jobs        int
	KeepScratch bool
	SkipDeps    bool
	ToolVersion string

	// Runner executes the dependency installer; defaults to deps.ExecRunner.
	Runner deps.Runner
	Logger *log.Logger
	// Progress, when set, receives one line per completed stage.
	Progress *ui.Progress
	// Output receives child process output (git, installer).
	Output io.Writer
	Now    func() time.Time
}

// Result describes a run. After a failure only RunID and Trail are set.
type Result struct {
	RunID       string
	BuildRoot   string
	Digest      string
	Record      *lock.File
	Trail       []State
	OuterCommit string
	InnerCommit string
}

type run struct {
	ws      *workspace.Context
	opts    Options
	logger  *log.Logger
	machine *Machine
	id      string
	scratch string
	staging string

	tc    toolchain.Config
	pins  pin.Set
	mat   *materialize.Materializer
	tree  *materialize.WorkingTree
	allow []string
	deps  []string
}

// Run provisions the workspace's build root. Errors are attributed to the
// stage that failed (see failure.ExitCode). The Result is returned on failure
// too, carrying the state trail that ends in StateFailed.
func Run(ctx context.Context, ws *workspace.Context, opts Options) (*Result, error) {
	r := &run{
		ws:      ws,
		opts:    opts,
		machine: NewMachine(),
		id:      uuid.NewString(),
	}
	if r.opts.Output == nil {
		r.opts.Output = io.Discard
	}
	if r.opts.Now == nil {
		r.opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	r.logger = logger.With("run_id", r.id)
	r.scratch = ws.ScratchDir(r.id)
	r.staging = ws.StagingDir(r.id)

	release, err := acquire(ws.GuardPath(), r.id)
	if err != nil {
		return nil, err
	}
	defer release()

	// Nothing may be discarded when the destination is not ours to replace.
	if err := ws.CheckBuildRoot(); err != nil {
		return nil, err
	}

	res, err := r.execute(ctx)
	if err != nil {
		r.machine.Fail()
		r.logger.Error("provisioning failed", "err", err)
		r.discard()
		return &Result{RunID: r.id, Trail: r.machine.Trail()}, err
	}
	r.cleanScratch()
	return res, nil
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	if err := r.stage(failure.StageToolchain, "toolchain checked", r.checkToolchain); err != nil {
		return nil, err
	}
	steps := []struct {
		stage failure.Stage
		from  State
		to    State
		fn    func(context.Context) error
	}{
		{failure.StagePins, StateStart, StatePinsResolved, r.resolvePins},
		{failure.StageMaterialize, StatePinsResolved, StateMaterialized, r.materialize},
		{failure.StageExtract, StateMaterialized, StateExtracted, r.extract},
		{failure.StageOverlay, StateExtracted, StateOverlaid, r.overlay},
		{failure.StageDeps, StateOverlaid, StateDepsInstalled, r.installDeps},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, failure.InStage(s.stage, err)
		}
		fn := s.fn
		if err := r.stage(s.stage, s.to.String(), func() error { return fn(ctx) }); err != nil {
			return nil, err
		}
		if err := r.machine.Transition(s.from, s.to); err != nil {
			return nil, failure.InStage(s.stage, err)
		}
	}

	var res *Result
	err := r.stage(failure.StagePublish, StateDone.String(), func() error {
		var err error
		res, err = r.publish()
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.machine.Transition(StateDepsInstalled, StateDone); err != nil {
		return nil, failure.InStage(failure.StagePublish, err)
	}
	res.Trail = r.machine.Trail()
	return res, nil
}

// stage runs fn with logging and progress, attributing its error to stage.
// Pin resolution failures are attributed to the pins stage wherever they
// surface, since the inner pin can only be resolved after materialization.
func (r *run) stage(stage failure.Stage, label string, fn func() error) error {
	start := time.Now()
	r.logger.Info("stage started", "stage", stage)
	err := fn()
	if err != nil {
		var pe *failure.PinResolutionError
		if errors.As(err, &pe) {
			stage = failure.StagePins
		}
		if r.opts.Progress != nil {
			r.opts.Progress.Fail(string(stage), err)
		}
		return failure.InStage(stage, err)
	}
	r.logger.Info("stage finished", "stage", stage, "elapsed", time.Since(start).Round(time.Millisecond))
	if r.opts.Progress != nil && stage != failure.StageToolchain {
		r.opts.Progress.Done(label)
	}
	return nil
}

func (r *run) checkToolchain() error {
	tc, err := r.ws.Toolchain()
	if err != nil {
		return &failure.ToolchainPreconditionError{Tool: "config", Detail: err.Error()}
	}
	if err := toolchain.Check(tc); err != nil {
		return err
	}
	r.tc = tc
	g := &git.Client{Env: tc.Env(), Config: tc.GitConfig(), Stderr: r.opts.Output}
	r.mat = materialize.New(g, r.logger)
	return nil
}

func (r *run) resolvePins(ctx context.Context) error {
	set, err := r.ws.Pins()
	if err != nil {
		return err
	}
	r.pins = set
	r.logger.Info("pins", "outer", set.Outer, "inner", set.Inner)

	tree, err := r.mat.FetchAndCheckout(ctx, r.scratch, set.Outer)
	if err != nil {
		return err
	}
	r.tree = tree
	return nil
}

func (r *run) materialize(ctx context.Context) error {
	m := r.ws.Manifest
	url := r.ws.RepoURL(m.Inner.URL)
	if err := r.mat.InitNestedPin(ctx, r.tree, m.Submodules, r.pins.InnerPath, url, r.pins.Inner); err != nil {
		return err
	}
	return r.mat.DiscardMetadata(r.tree)
}

func (r *run) extract(ctx context.Context) error {
	allow, err := extract.Extract(ctx, r.tree.Dir, r.ws.Manifest.AllowList, r.staging, extract.Options{
		Jobs:   r.opts.Jobs,
		Logger: r.logger,
	})
	if err != nil {
		return err
	}
	r.allow = allow
	return nil
}

func (r *run) overlay(ctx context.Context) error {
	ovs := make([]overlay.Overlay, 0, len(r.ws.Manifest.Overlays))
	for _, o := range r.ws.Manifest.Overlays {
		ovs = append(ovs, overlay.Overlay{Source: o.Source, Dest: o.Dest, Exclude: o.Exclude})
	}
	return overlay.Install(ctx, r.ws.Root, r.staging, ovs, overlay.Options{
		Ignore: []string{r.ws.WorkDir, r.ws.BuildRoot(), r.staging, r.ws.GuardPath(), r.ws.LockPath},
		Logger: r.logger,
	})
}

func (r *run) installDeps(ctx context.Context) error {
	d := r.ws.Manifest.Dependencies
	if r.opts.SkipDeps || d.IsEmpty() {
		r.logger.Info("dependency installation skipped")
		return nil
	}
	runner := r.opts.Runner
	if runner == nil {
		runner = deps.ExecRunner{Stdout: r.opts.Output, Stderr: r.opts.Output}
	}
	in := &deps.Installer{
		Runner:  runner,
		Command: r.tc.InstallCommand(),
		Env:     r.tc.Env(),
		Logger:  r.logger,
	}
	installed, err := in.Install(ctx, r.staging, d.Manifest, d.Extras)
	if err != nil {
		return err
	}
	r.deps = installed
	return nil
}

func (r *run) publish() (*Result, error) {
	digest, err := fsutil.Digest(r.staging)
	if err != nil {
		return nil, fmt.Errorf("computing digest: %w", err)
	}

	buildRoot := r.ws.BuildRoot()
	if err := fsutil.RemoveAll(buildRoot); err != nil {
		return nil, fmt.Errorf("removing previous build root: %w", err)
	}
	if err := os.Rename(r.staging, buildRoot); err != nil {
		return nil, fmt.Errorf("publishing build root: %w", err)
	}

	rec := r.record(buildRoot, digest)
	if err := lock.Save(r.ws.LockPath, rec); err != nil {
		return nil, err
	}
	r.logger.Info("build root published", "path", buildRoot, "digest", digest)
	return &Result{
		RunID:       r.id,
		BuildRoot:   buildRoot,
		Digest:      digest,
		Record:      rec,
		OuterCommit: r.tree.OuterCommit,
		InnerCommit: r.tree.InnerCommit,
	}, nil
}

func (r *run) record(buildRoot, digest string) *lock.File {
	m := r.ws.Manifest
	rec := &lock.File{
		Version:     1,
		Name:        m.Name,
		GeneratedAt: r.opts.Now().UTC().Format(time.RFC3339),
		ToolVersion: r.opts.ToolVersion,
		RunID:       r.id,
		Outer: lock.Repo{
			URL:      m.Outer.URL,
			Revision: r.pins.Outer.Revision(),
			Commit:   r.tree.OuterCommit,
		},
		Inner: lock.Repo{
			Path:     filepath.ToSlash(r.pins.InnerPath),
			URL:      m.Inner.URL,
			Revision: r.pins.Inner.Revision(),
			Commit:   r.tree.InnerCommit,
		},
		BuildRoot:    relativeTo(r.ws.Root, buildRoot),
		Digest:       digest,
		Dependencies: r.deps,
	}
	for _, a := range r.allow {
		rec.AllowList = append(rec.AllowList, filepath.ToSlash(a))
	}
	for _, o := range m.Overlays {
		rec.Overlays = append(rec.Overlays, lock.Overlay{Source: o.Source, Dest: o.Dest})
	}
	return rec
}

// discard removes everything a failed run could leave behind, including the
// previous build root and its record: a root that does not match the
// current inputs must not be reused.
func (r *run) discard() {
	for _, p := range []string{r.staging, r.ws.BuildRoot()} {
		if err := fsutil.RemoveAll(p); err != nil {
			r.logger.Warn("cleanup failed", "path", p, "err", err)
		}
	}
	if err := lock.Remove(r.ws.LockPath); err != nil {
		r.logger.Warn("cleanup failed", "path", r.ws.LockPath, "err", err)
	}
	r.cleanScratch()
}

func (r *run) cleanScratch() {
	if r.opts.KeepScratch {
		r.logger.Info("keeping scratch space", "path", r.scratch)
		return
	}
	if err := fsutil.RemoveAll(r.scratch); err != nil {
		r.logger.Warn("cleanup failed", "path", r.scratch, "err", err)
	}
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}
