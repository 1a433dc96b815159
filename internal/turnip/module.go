package turnip

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const vendorHWDir = "system/vendor/lib64/hw"

// moduleScriptDir is where recovery and Magisk look for the installer.
const moduleScriptDir = "META-INF/com/google/android"

type moduleProp struct {
	ID          string
	Name        string
	Version     string
	Code        int
	Author      string
	Description string
}

type customizeData struct {
	Name            string
	Version         string
	TemplateVersion string
	LibName         string
	CacheSweeps     []string
}

// moduleEntries lists the archive paths a flashable zip must carry.
func moduleEntries(libName string) []string {
	return []string{
		moduleScriptDir + "/update-binary",
		moduleScriptDir + "/updater-script",
		vendorHWDir + "/" + libName,
		"module.prop",
		"customize.sh",
	}
}

func moduleDescription(bc BuildConfig) string {
	return fmt.Sprintf("Mesa Turnip Vulkan driver for Adreno GPUs (mesa %s)", bc.MesaTag)
}

// ModulePackager assembles the Magisk/KSU flashable zip.
type ModulePackager struct {
	Exec Runner // runs patchelf when PatchSoname is set
}

// Package builds <work>/turnip_module and zips it into p.ModuleZip.
func (m *ModulePackager) Package(bc BuildConfig, p Paths) error {
	scriptDir := filepath.Join(p.ModuleDir, filepath.FromSlash(moduleScriptDir))
	hwDir := filepath.Join(p.ModuleDir, filepath.FromSlash(vendorHWDir))
	for _, dir := range []string{scriptDir, hwDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := copyFile(p.StagedLib, p.ModuleLib); err != nil {
		return fmt.Errorf("failed to stage %s: %w", p.ModuleLib, err)
	}
	if bc.PatchSoname {
		if m.Exec == nil {
			return fmt.Errorf("patchelf requested but no command runner configured")
		}
		cmd := exec.Command("patchelf", "--set-soname", bc.ModuleLibName, p.ModuleLib)
		if err := m.Exec.Run(cmd); err != nil {
			return fmt.Errorf("failed to set soname on %s: %w", p.ModuleLib, err)
		}
	}
	if err := copyFile(p.ModuleLib, filepath.Join(hwDir, bc.ModuleLibName)); err != nil {
		return fmt.Errorf("failed to copy library into module: %w", err)
	}

	prop := moduleProp{
		ID:          bc.ModuleID,
		Name:        bc.ModuleName,
		Version:     bc.ModuleVersion,
		Code:        bc.ModuleCode,
		Author:      bc.Author,
		Description: moduleDescription(bc),
	}
	custom := customizeData{
		Name:            bc.ModuleName,
		Version:         bc.ModuleVersion,
		TemplateVersion: templateVersion,
		LibName:         bc.ModuleLibName,
		CacheSweeps:     cacheSweepRoots,
	}

	files := []struct {
		path string
		name string
		text string
		data any
		perm os.FileMode
	}{
		{filepath.Join(scriptDir, "update-binary"), "update-binary", updateBinaryTemplate, nil, 0o755},
		{filepath.Join(scriptDir, "updater-script"), "updater-script", updaterScriptTemplate, nil, 0o644},
		{filepath.Join(p.ModuleDir, "module.prop"), "module.prop", modulePropTemplate, prop, 0o644},
		{filepath.Join(p.ModuleDir, "customize.sh"), "customize.sh", customizeTemplate, custom, 0o755},
	}
	for _, f := range files {
		if err := writeTemplate(f.path, f.name, f.text, f.data, f.perm); err != nil {
			return err
		}
	}

	if err := zipTree(p.ModuleZip, p.ModuleDir); err != nil {
		return err
	}
	return verifyZip(p.ModuleZip, moduleEntries(bc.ModuleLibName))
}
