package turnip

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the raw KEY=VALUE settings from the config file and environment.
type Config struct {
	Values map[string]string
}

// Load the config file and apply TURNIP_*/R2_* env overrides
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file; a missing file just means defaults
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to open config %s: %w", path, err)
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge TURNIP_* and R2_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "TURNIP_") || strings.HasPrefix(env, "R2_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

// resolveConfigPath picks the config file: $TURNIP_CONFIG, then ./turnip.conf, then /etc/turnip.conf.
func resolveConfigPath() string {
	if p := os.Getenv("TURNIP_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("turnip.conf"); err == nil {
		return "turnip.conf"
	}
	return ConfigFile
}

// minAndroidAPI is the first API level with an aarch64 NDK target.
const minAndroidAPI = 21

// BuildConfig is the immutable description of one pipeline run.
type BuildConfig struct {
	WorkDir string

	NDKVersion string
	NDKURL     string
	NDKB3Sum   string
	HostTag    string

	MesaURL   string
	MesaTag   string
	MesaDir   string
	MesaB3Sum string

	SDKVersion int
	MinAPI     int
	Jobs       int
	MesonExtra []string

	Downloader  string
	NativeUnzip bool
	PatchSoname bool
	SkipDeps    bool
	Tools       []string

	ModuleID      string
	ModuleName    string
	ModuleVersion string
	ModuleCode    int
	Author        string

	ModuleLibName   string
	EmulatorLibName string
	Verbose         bool
}

// DefaultBuildConfig returns the stock Turnip build for arm64 Android.
func DefaultBuildConfig() BuildConfig {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return BuildConfig{
		WorkDir:         filepath.Join(cwd, "turnip_workdir"),
		NDKVersion:      "android-ndk-r28",
		NDKURL:          "https://dl.google.com/android/repository/android-ndk-r28-linux.zip",
		HostTag:         "linux-x86_64",
		MesaURL:         "https://gitlab.freedesktop.org/mesa/mesa/-/archive/main/mesa-main.zip",
		MesaTag:         "main",
		MesaDir:         "mesa-main",
		SDKVersion:      34,
		MinAPI:          27,
		Downloader:      "auto",
		Tools:           defaultTools(),
		ModuleID:        "turnip",
		ModuleName:      "Turnip Vulkan Driver",
		ModuleVersion:   "1.0",
		ModuleCode:      1,
		Author:          "turnip-builder",
		ModuleLibName:   "vulkan.adreno.so",
		EmulatorLibName: "vulkan.ad07XX.so",
	}
}

// newBuildConfig overlays cfg on top of the defaults.
func newBuildConfig(cfg *Config) (BuildConfig, error) {
	bc := DefaultBuildConfig()
	v := cfg.Values

	setString := func(key string, dst *string) {
		if val := strings.TrimSpace(v[key]); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int, floor int) error {
		val := strings.TrimSpace(v[key])
		if val == "" {
			return nil
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < floor {
			return fmt.Errorf("invalid %s=%q: expected an integer >= %d", key, val, floor)
		}
		*dst = n
		return nil
	}
	flag := func(key string) bool { return v[key] == "1" || strings.EqualFold(v[key], "true") }

	setString("TURNIP_WORKDIR", &bc.WorkDir)
	setString("TURNIP_NDK_VERSION", &bc.NDKVersion)
	if v["TURNIP_NDK_VERSION"] != "" && v["TURNIP_NDK_URL"] == "" {
		bc.NDKURL = fmt.Sprintf("https://dl.google.com/android/repository/%s-linux.zip", bc.NDKVersion)
	}
	setString("TURNIP_NDK_URL", &bc.NDKURL)
	setString("TURNIP_NDK_B3SUM", &bc.NDKB3Sum)
	setString("TURNIP_HOST_TAG", &bc.HostTag)
	setString("TURNIP_MESA_TAG", &bc.MesaTag)
	if v["TURNIP_MESA_TAG"] != "" {
		bc.MesaURL = fmt.Sprintf("https://gitlab.freedesktop.org/mesa/mesa/-/archive/%[1]s/mesa-%[1]s.zip", bc.MesaTag)
		bc.MesaDir = "mesa-" + bc.MesaTag
	}
	setString("TURNIP_MESA_URL", &bc.MesaURL)
	setString("TURNIP_MESA_DIR", &bc.MesaDir)
	setString("TURNIP_MESA_B3SUM", &bc.MesaB3Sum)
	setString("TURNIP_DOWNLOADER", &bc.Downloader)
	setString("TURNIP_MODULE_VERSION", &bc.ModuleVersion)
	setString("TURNIP_AUTHOR", &bc.Author)

	for key, opt := range map[string]struct {
		dst   *int
		floor int
	}{
		"TURNIP_SDK_VERSION": {&bc.SDKVersion, minAndroidAPI},
		"TURNIP_MIN_API":     {&bc.MinAPI, minAndroidAPI},
		"TURNIP_JOBS":        {&bc.Jobs, 0},
		"TURNIP_MODULE_CODE": {&bc.ModuleCode, 0},
	} {
		if err := setInt(key, opt.dst, opt.floor); err != nil {
			return bc, err
		}
	}

	if extra := strings.TrimSpace(v["TURNIP_MESON_EXTRA"]); extra != "" {
		bc.MesonExtra = strings.Fields(extra)
	}
	if tools := strings.TrimSpace(v["TURNIP_DEPS"]); tools != "" {
		bc.Tools = strings.Fields(tools)
	}

	switch bc.Downloader {
	case "auto", "curl", "wget", "native":
	default:
		return bc, fmt.Errorf("invalid TURNIP_DOWNLOADER=%q: expected auto, curl, wget or native", bc.Downloader)
	}

	bc.NativeUnzip = flag("TURNIP_NATIVE_UNZIP")
	bc.PatchSoname = flag("TURNIP_PATCH_SONAME")
	bc.SkipDeps = flag("TURNIP_SKIP_DEPS")
	bc.Verbose = flag("TURNIP_VERBOSE")

	abs, err := filepath.Abs(bc.WorkDir)
	if err != nil {
		return bc, fmt.Errorf("failed to resolve work directory %s: %w", bc.WorkDir, err)
	}
	bc.WorkDir = abs
	return bc, nil
}

// Paths lists every filesystem location a run touches, all absolute.
type Paths struct {
	WorkDir      string
	LockFile     string
	NDKArchive   string
	MesaArchive  string
	NDKRoot      string
	ToolchainBin string
	MesaSrc      string
	CrossFile    string
	BuildDir     string
	MesonLog     string
	NinjaLog     string
	BuiltLib     string
	StagedLib    string
	ModuleLib    string
	ModuleDir    string
	ModuleZip    string
	EmulatorLib  string
	MetaJSON     string
	EmulatorZip  string
}

const builtLibName = "libvulkan_freedreno.so"

// Paths derives the run's filesystem layout from the configuration.
func (bc BuildConfig) Paths() Paths {
	w := bc.WorkDir
	ndkRoot := filepath.Join(w, bc.NDKVersion)
	buildDir := filepath.Join(w, bc.MesaDir, "build-android-aarch64")
	return Paths{
		WorkDir:      w,
		LockFile:     w + ".lock",
		NDKArchive:   filepath.Join(w, bc.NDKVersion+".zip"),
		MesaArchive:  filepath.Join(w, bc.MesaDir+".zip"),
		NDKRoot:      ndkRoot,
		ToolchainBin: filepath.Join(ndkRoot, "toolchains", "llvm", "prebuilt", bc.HostTag, "bin"),
		MesaSrc:      filepath.Join(w, bc.MesaDir),
		CrossFile:    filepath.Join(w, bc.MesaDir, "android-aarch64"),
		BuildDir:     buildDir,
		MesonLog:     filepath.Join(w, "meson_log"),
		NinjaLog:     filepath.Join(w, "ninja_log"),
		BuiltLib:     filepath.Join(buildDir, "src", "freedreno", "vulkan", builtLibName),
		StagedLib:    filepath.Join(w, builtLibName),
		ModuleLib:    filepath.Join(w, bc.ModuleLibName),
		ModuleDir:    filepath.Join(w, "turnip_module"),
		ModuleZip:    filepath.Join(w, fmt.Sprintf("turnip_%s_magisk.zip", bc.MesaTag)),
		EmulatorLib:  filepath.Join(w, bc.EmulatorLibName),
		MetaJSON:     filepath.Join(w, "meta.json"),
		EmulatorZip:  filepath.Join(w, fmt.Sprintf("turnip_%s_emulator.zip", bc.MesaTag)),
	}
}
