package turnip

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePath map[string]bool

func (f fakePath) lookPath(name string) (string, error) {
	if f[name] {
		return "/usr/bin/" + name, nil
	}
	return "", exec.ErrNotFound
}

// fakeInstaller marks the tools shipped by the installed packages as present.
type fakeInstaller struct {
	path     fakePath
	provides map[string][]string
	calls    [][]string
	err      error
}

func (f *fakeInstaller) Install(packages []string) error {
	f.calls = append(f.calls, packages)
	for _, pkg := range packages {
		for _, tool := range f.provides[pkg] {
			f.path[tool] = true
		}
	}
	return f.err
}

func TestGateAllPresent(t *testing.T) {
	path := fakePath{"meson": true, "ninja": true}
	inst := &fakeInstaller{path: path}
	g := &DependencyGate{Tools: []string{"meson", "ninja"}, LookPath: path.lookPath, Installer: inst}

	require.NoError(t, g.Check())
	assert.Empty(t, inst.calls)
}

func TestGateInstallsOnceAndReverifies(t *testing.T) {
	path := fakePath{"meson": true}
	inst := &fakeInstaller{
		path:     path,
		provides: map[string][]string{"ninja-build": {"ninja"}, "glslang-tools": {"glslangValidator"}},
	}
	g := &DependencyGate{Tools: []string{"meson", "ninja", "glslangValidator"}, LookPath: path.lookPath, Installer: inst}

	assert.Equal(t, []string{"ninja", "glslangValidator"}, g.Missing())
	require.NoError(t, g.Check())
	require.Len(t, inst.calls, 1)
	assert.Equal(t, []string{"ninja-build", "glslang-tools"}, inst.calls[0])
	assert.Empty(t, g.Missing())
}

func TestGateStillMissingAfterInstall(t *testing.T) {
	path := fakePath{}
	inst := &fakeInstaller{path: path, provides: map[string][]string{"flex": {"flex"}}}
	g := &DependencyGate{Tools: []string{"flex", "bison"}, LookPath: path.lookPath, Installer: inst}

	err := g.Check()
	require.ErrorIs(t, err, ErrMissingDependencies)
	assert.Contains(t, err.Error(), "bison")
	assert.NotContains(t, err.Error(), "flex")
	assert.Len(t, inst.calls, 1)
}

func TestGateInstallFailureStillReverifies(t *testing.T) {
	path := fakePath{}
	inst := &fakeInstaller{path: path, err: errors.New("apt locked")}
	g := &DependencyGate{Tools: []string{"patchelf"}, LookPath: path.lookPath, Installer: inst}

	require.ErrorIs(t, g.Check(), ErrMissingDependencies)
}

func TestGateWithoutInstaller(t *testing.T) {
	path := fakePath{}
	g := &DependencyGate{Tools: []string{"meson"}, LookPath: path.lookPath}
	require.ErrorIs(t, g.Check(), ErrMissingDependencies)
}

func TestPackagesForDedupes(t *testing.T) {
	pkgs := packagesFor([]string{"ninja", "python3", "pip", "ninja", "somethingelse"})
	assert.Equal(t, []string{"ninja-build", "python3", "python3-pip", "somethingelse"}, pkgs)
}

func TestAptInstallerCommands(t *testing.T) {
	runner := &fakeRunner{}
	authed := false
	a := aptInstaller{Exec: runner, Authenticate: func() error { authed = true; return nil }}

	require.NoError(t, a.Install([]string{"ninja-build", "patchelf"}))
	assert.True(t, authed)
	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{"apt-get", "update"}, runner.calls[0])
	assert.Equal(t, []string{"apt-get", "install", "-y", "ninja-build", "patchelf"}, runner.calls[1])
}

func TestAptInstallerStopsOnAuthFailure(t *testing.T) {
	runner := &fakeRunner{}
	a := aptInstaller{Exec: runner, Authenticate: func() error { return errors.New("no tty") }}

	require.Error(t, a.Install([]string{"meson"}))
	assert.Empty(t, runner.calls)
}
