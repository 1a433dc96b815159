package turnip

import (
	"fmt"
	"path/filepath"
)

const targetTriple = "aarch64-linux-android"

var (
	crossCFlags   = []string{"-fno-semantic-interposition", "-O2", "-flto"}
	crossCXXExtra = []string{"-fno-exceptions", "-fno-unwind-tables", "-fno-asynchronous-unwind-tables", "-static-libstdc++"}
)

type crossFileData struct {
	Version  string
	Bin      string
	Triple   string
	SDK      int
	CC       string
	CXX      string
	CFlags   []string
	CXXFlags []string
}

func newCrossFileData(toolchainBin string, sdk int) crossFileData {
	cxxFlags := append(append([]string{}, crossCFlags...), crossCXXExtra...)
	return crossFileData{
		Version:  templateVersion,
		Bin:      filepath.ToSlash(toolchainBin),
		Triple:   targetTriple,
		SDK:      sdk,
		CC:       fmt.Sprintf("%s%d-clang", targetTriple, sdk),
		CXX:      fmt.Sprintf("%s%d-clang++", targetTriple, sdk),
		CFlags:   crossCFlags,
		CXXFlags: cxxFlags,
	}
}

// writeCrossFile emits the Meson cross file describing the NDK toolchain.
// Tool paths are not checked; meson reports them when it runs.
func writeCrossFile(path, toolchainBin string, sdk int) error {
	return writeTemplate(path, "cross-file", crossFileTemplate, newCrossFileData(toolchainBin, sdk), 0o644)
}
