package turnip

import (
	"encoding/json"
	"fmt"
	"os"
)

const metaSchemaVersion = 1

// EmulatorMeta is the AdrenoTools driver descriptor stored as meta.json.
type EmulatorMeta struct {
	SchemaVersion  int    `json:"schemaVersion"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Author         string `json:"author"`
	PackageVersion string `json:"packageVersion"`
	DriverVersion  string `json:"driverVersion"`
	MinAPI         int    `json:"minApi"`
	LibraryName    string `json:"libraryName"`
}

func newEmulatorMeta(bc BuildConfig) EmulatorMeta {
	return EmulatorMeta{
		SchemaVersion:  metaSchemaVersion,
		Name:           bc.ModuleName,
		Description:    moduleDescription(bc),
		Author:         bc.Author,
		PackageVersion: bc.ModuleVersion,
		DriverVersion:  "Vulkan (mesa " + bc.MesaTag + ")",
		MinAPI:         bc.MinAPI,
		LibraryName:    bc.EmulatorLibName,
	}
}

// packageEmulator renames the staged library, zips it with meta.json and
// removes the loose files so only the archives remain.
func packageEmulator(bc BuildConfig, p Paths) error {
	if err := os.Rename(p.StagedLib, p.EmulatorLib); err != nil {
		return fmt.Errorf("failed to rename %s: %w", p.StagedLib, err)
	}

	data, err := json.MarshalIndent(newEmulatorMeta(bc), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode meta.json: %w", err)
	}
	if err := os.WriteFile(p.MetaJSON, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.MetaJSON, err)
	}

	entries := []zipEntry{
		{Name: "meta.json", Path: p.MetaJSON},
		{Name: bc.EmulatorLibName, Path: p.EmulatorLib},
	}
	if err := writeZip(p.EmulatorZip, entries); err != nil {
		return err
	}
	if err := verifyZip(p.EmulatorZip, []string{"meta.json", bc.EmulatorLibName}); err != nil {
		return err
	}

	for _, loose := range []string{p.EmulatorLib, p.MetaJSON, p.ModuleLib} {
		if err := removeIfExists(loose); err != nil {
			return err
		}
	}
	return nil
}
