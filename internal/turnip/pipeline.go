package turnip

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Artifact describes one produced zip.
type Artifact struct {
	Path   string
	Size   int64
	Blake3 string
}

// Result is the outcome of a pipeline run.
type Result struct {
	State    State
	History  []State
	Module   Artifact
	Emulator Artifact
	Elapsed  time.Duration
}

// Pipeline runs the Turnip build stages in order against one work directory.
type Pipeline struct {
	Config    BuildConfig
	Gate      *DependencyGate // nil skips the dependency check
	Fetcher   *Fetcher
	Extractor *Extractor
	Builder   *Builder
	Packager  *ModulePackager

	state   State
	history []State
}

type stage struct {
	name string
	to   State
	run  func(ctx context.Context, p Paths) error
}

func (pl *Pipeline) stages() []stage {
	bc := pl.Config
	return []stage{
		{"dependency check", StateDepsChecked, func(context.Context, Paths) error {
			if bc.SkipDeps || pl.Gate == nil {
				step("Skipping dependency check")
				return nil
			}
			return pl.Gate.Check()
		}},
		{"workspace reset", StateWorkdirReady, func(_ context.Context, p Paths) error {
			step("Preparing work directory %s", p.WorkDir)
			return resetWorkspace(p.WorkDir)
		}},
		{"source fetch", StateSourcesFetched, pl.fetchSources},
		{"configure", StateConfigured, func(_ context.Context, p Paths) error {
			step("Writing cross file %s", p.CrossFile)
			if err := writeCrossFile(p.CrossFile, p.ToolchainBin, bc.SDKVersion); err != nil {
				return err
			}
			step("Configuring Mesa with meson")
			return pl.Builder.Configure(bc, p)
		}},
		{"build", StateBuilt, func(_ context.Context, p Paths) error {
			step("Compiling Turnip with ninja")
			return pl.Builder.Compile(bc, p)
		}},
		{"library check", StateLibVerified, func(_ context.Context, p Paths) error {
			return materializeLibrary(p)
		}},
		{"module packaging", StateModulePackaged, func(_ context.Context, p Paths) error {
			step("Packaging flashable module")
			return pl.Packager.Package(bc, p)
		}},
		{"emulator packaging", StateEmulatorPackaged, func(_ context.Context, p Paths) error {
			step("Packaging emulator driver")
			return packageEmulator(bc, p)
		}},
	}
}

type source struct {
	label   string
	url     string
	archive string
	root    string
	b3sum   string
}

func (pl *Pipeline) fetchSources(ctx context.Context, p Paths) error {
	bc := pl.Config
	sources := []source{
		{"Android NDK", bc.NDKURL, p.NDKArchive, p.NDKRoot, bc.NDKB3Sum},
		{"Mesa", bc.MesaURL, p.MesaArchive, p.MesaSrc, bc.MesaB3Sum},
	}
	for _, s := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		step("Downloading %s from %s", s.label, s.url)
		if err := pl.Fetcher.Download(ctx, s.url, s.archive); err != nil {
			return err
		}
		if err := verifyChecksum(s.archive, s.b3sum); err != nil {
			return err
		}
		step("Extracting %s", filepath.Base(s.archive))
		if err := pl.Extractor.Extract(s.archive, p.WorkDir); err != nil {
			return fmt.Errorf("failed to extract %s: %w", s.archive, err)
		}
		if info, err := os.Stat(s.root); err != nil || !info.IsDir() {
			return fmt.Errorf("%s did not unpack to %s", filepath.Base(s.archive), s.root)
		}
	}
	return nil
}

func (pl *Pipeline) advance(to State) error {
	if err := transition(&pl.state, pl.state, to); err != nil {
		return err
	}
	pl.history = append(pl.history, to)
	return nil
}

func (pl *Pipeline) abort(name string, err error) error {
	pl.state = StateAborted
	pl.history = append(pl.history, StateAborted)
	return &StageError{Stage: name, Err: err}
}

func (pl *Pipeline) result(start time.Time) *Result {
	return &Result{
		State:   pl.state,
		History: append([]State(nil), pl.history...),
		Elapsed: time.Since(start),
	}
}

// Run executes every stage under the work directory lock. The returned
// Result is non-nil even on failure and records the state history.
func (pl *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	pl.state = StateInit
	pl.history = []State{StateInit}
	p := pl.Config.Paths()
	fail := func(name string, err error) (*Result, error) {
		serr := pl.abort(name, err)
		return pl.result(start), serr
	}

	lock, err := lockWorkspace(p.LockFile)
	if err != nil {
		return fail("workspace lock", err)
	}
	defer lock.Release()

	for _, s := range pl.stages() {
		if err := ctx.Err(); err != nil {
			return fail(s.name, err)
		}
		debugf("stage %s (%s -> %s)\n", s.name, pl.state, s.to)
		if err := s.run(ctx, p); err != nil {
			return fail(s.name, err)
		}
		if err := pl.advance(s.to); err != nil {
			return fail(s.name, err)
		}
	}

	res := pl.result(start)
	for _, a := range []struct {
		dst  *Artifact
		path string
	}{{&res.Module, p.ModuleZip}, {&res.Emulator, p.EmulatorZip}} {
		art, err := describeArtifact(a.path)
		if err != nil {
			return fail("summary", err)
		}
		*a.dst = art
	}
	if err := pl.advance(StateDone); err != nil {
		return fail("summary", err)
	}
	res.State = pl.state
	res.History = append([]State(nil), pl.history...)
	return res, nil
}

func describeArtifact(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	sum, err := fileBlake3(path)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: path, Size: info.Size(), Blake3: sum}, nil
}

// printSummary lists the produced artifacts.
func printSummary(w io.Writer, res *Result) {
	fstepf(w, colSuccess, "Build finished in %s\n", res.Elapsed.Truncate(time.Second))
	for _, a := range []struct {
		label string
		art   Artifact
	}{{"Magisk/KSU module", res.Module}, {"Emulator driver", res.Emulator}} {
		fstepf(w, colSuccess, "%s: %s\n", a.label, a.art.Path)
		fmt.Fprintf(w, "   size   %s\n", humanSize(a.art.Size))
		fmt.Fprintf(w, "   blake3 %s\n", a.art.Blake3)
	}
}
