package turnip

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// Templates are rendered with text/template. Shell-facing values are quoted by
// the caller where needed; the cross file quotes with {{q}}.
const templateVersion = "2"

const crossFileTemplate = `# cross file v{{.Version}} for {{.Triple}}{{.SDK}}
[binaries]
ar = {{q .Bin "llvm-ar"}}
c = [{{q .Bin .CC}}{{range .CFlags}}, '{{.}}'{{end}}]
cpp = [{{q .Bin .CXX}}{{range .CXXFlags}}, '{{.}}'{{end}}]
c_ld = 'lld'
cpp_ld = 'lld'
strip = {{q .Bin "llvm-strip"}}
pkg-config = ['env', 'PKG_CONFIG_LIBDIR={{.Bin}}/pkgconfig', '/usr/bin/pkg-config']

[host_machine]
system = 'android'
cpu_family = 'aarch64'
cpu = 'armv8'
endian = 'little'
`

const updateBinaryTemplate = `#!/sbin/sh
#################
# Initialization
#################
umask 022

ui_print() { echo "$1"; }

OUTFD=$2
ZIPFILE=$3

mount /data 2>/dev/null
[ -f /data/adb/magisk/util_functions.sh ] || { ui_print "! Please install Magisk v20.4+"; exit 1; }
. /data/adb/magisk/util_functions.sh
[ $MAGISK_VER_CODE -lt 20400 ] && { ui_print "! Please install Magisk v20.4+"; exit 1; }

install_module
exit 0
`

const updaterScriptTemplate = "#MAGISK\n"

const modulePropTemplate = `id={{.ID}}
name={{.Name}}
version={{.Version}}
versionCode={{.Code}}
author={{.Author}}
description={{.Description}}
`

const customizeTemplate = `#!/system/bin/sh
# {{.Name}} {{.Version}} installer (template v{{.TemplateVersion}})
# Sourced by install_module, which exports MODPATH.

ui_print "- Installing {{.Name}} {{.Version}}"

set_perm_recursive "$MODPATH/system" 0 0 0755 0644
set_perm "$MODPATH/system/vendor/lib64/hw/{{.LibName}}" 0 0 0644 u:object_r:same_process_hal_file:s0

ui_print "- Clearing GPU shader caches"
{{range .CacheSweeps}}find {{.}} -type f \( -name '*shader_cache*' -o -name '*graphics_cache*' -o -name '*gpu_cache*' \) -delete 2>/dev/null
{{end}}
ui_print "- Reboot to activate the driver"
`

// Cache locations swept on install so apps rebuild pipelines for the new driver.
var cacheSweepRoots = []string{"/data/user_de", "/data/data", "/data/misc/gpu"}

var templateFuncs = template.FuncMap{
	// q renders a single-quoted Meson string for dir/name.
	"q": func(dir, name string) string {
		return "'" + strings.ReplaceAll(dir+"/"+name, "'", `\'`) + "'"
	},
}

func renderTemplate(name, text string, data any) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.Bytes(), nil
}

// writeTemplate renders text into path with the given permissions.
func writeTemplate(path, name, text string, data any, perm os.FileMode) error {
	out, err := renderTemplate(name, text, data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file; installers must be executable.
	return os.Chmod(path, perm)
}
