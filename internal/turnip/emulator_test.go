package turnip

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageEmulator(t *testing.T) {
	bc := testBuildConfig(t)
	bc.MinAPI = 28
	p := bc.Paths()
	stageLibrary(t, p)
	writeFile(t, p.ModuleLib, "intermediate")

	require.NoError(t, packageEmulator(bc, p))

	names, err := listZip(p.EmulatorZip)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"meta.json", "vulkan.ad07XX.so"}, names)
	assert.Equal(t, "\x7fELF turnip", readZipEntry(t, p.EmulatorZip, "vulkan.ad07XX.so"))

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(readZipEntry(t, p.EmulatorZip, "meta.json")), &meta))
	assert.Len(t, meta, 8)
	for _, key := range []string{"schemaVersion", "name", "description", "author", "packageVersion", "driverVersion", "minApi", "libraryName"} {
		assert.Contains(t, meta, key)
	}
	assert.Equal(t, "vulkan.ad07XX.so", meta["libraryName"])
	assert.EqualValues(t, 28, meta["minApi"])

	assert.NoFileExists(t, p.StagedLib)
	assert.NoFileExists(t, p.EmulatorLib)
	assert.NoFileExists(t, p.MetaJSON)
	assert.NoFileExists(t, p.ModuleLib)
}

func TestPackageEmulatorCustomLibraryName(t *testing.T) {
	bc := testBuildConfig(t)
	bc.EmulatorLibName = "vulkan.turnip.so"
	p := bc.Paths()
	stageLibrary(t, p)

	require.NoError(t, packageEmulator(bc, p))
	names, err := listZip(p.EmulatorZip)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"meta.json", "vulkan.turnip.so"}, names)
}

func TestPackageEmulatorMissingLibrary(t *testing.T) {
	bc := testBuildConfig(t)
	p := bc.Paths()
	writeFile(t, p.MesonLog, "")

	require.Error(t, packageEmulator(bc, p))
	assert.NoFileExists(t, p.EmulatorZip)
}
