package turnip

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageLibrary(t *testing.T, p Paths) {
	t.Helper()
	writeFile(t, p.BuiltLib, "\x7fELF turnip")
	require.NoError(t, materializeLibrary(p))
}

func TestMaterializeLibrary(t *testing.T) {
	p := testBuildConfig(t).Paths()
	stageLibrary(t, p)

	data, err := os.ReadFile(p.StagedLib)
	require.NoError(t, err)
	assert.Equal(t, "\x7fELF turnip", string(data))
}

func TestMaterializeLibraryMissing(t *testing.T) {
	p := testBuildConfig(t).Paths()
	require.NoError(t, os.MkdirAll(p.WorkDir, 0o755))

	require.ErrorIs(t, materializeLibrary(p), ErrLibraryNotFound)
	assert.NoFileExists(t, p.StagedLib)
}

func TestModulePackageLayout(t *testing.T) {
	bc := testBuildConfig(t)
	p := bc.Paths()
	stageLibrary(t, p)

	m := &ModulePackager{}
	require.NoError(t, m.Package(bc, p))

	names, err := listZip(p.ModuleZip)
	require.NoError(t, err)
	want := moduleEntries(bc.ModuleLibName)
	slices.Sort(want)
	assert.Equal(t, want, names)

	assert.Equal(t, "\x7fELF turnip", readZipEntry(t, p.ModuleZip, "system/vendor/lib64/hw/vulkan.adreno.so"))
	assert.Equal(t, "#MAGISK\n", readZipEntry(t, p.ModuleZip, "META-INF/com/google/android/updater-script"))

	prop := readZipEntry(t, p.ModuleZip, "module.prop")
	assert.Contains(t, prop, "id=turnip\n")
	assert.Contains(t, prop, "versionCode=1\n")
	assert.Contains(t, prop, "mesa main")

	info, err := os.Stat(filepath.Join(p.ModuleDir, "customize.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.FileExists(t, p.ModuleLib)
}

func TestModulePackagePatchesSoname(t *testing.T) {
	bc := testBuildConfig(t)
	bc.PatchSoname = true
	p := bc.Paths()
	stageLibrary(t, p)

	runner := &fakeRunner{}
	require.NoError(t, (&ModulePackager{Exec: runner}).Package(bc, p))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"patchelf", "--set-soname", "vulkan.adreno.so", p.ModuleLib}, runner.calls[0])
}

func TestModulePackageWithoutStagedLibrary(t *testing.T) {
	bc := testBuildConfig(t)
	p := bc.Paths()
	require.NoError(t, os.MkdirAll(p.WorkDir, 0o755))

	require.Error(t, (&ModulePackager{}).Package(bc, p))
	assert.NoFileExists(t, p.ModuleZip)
}
