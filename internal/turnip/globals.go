package turnip

import (
	"errors"
	"runtime"

	"github.com/gookit/color"
)

// Global variables
var (
	Debug      bool
	ConfigFile = "/etc/turnip.conf"
	version    = "dev" //default version; overridden at build time
	arch       = runtime.GOARCH
	buildDate  = "unknown" // overridden at build time
	// Global executors (declared, to be assigned in Main)
	UserExec *Executor
	RootExec *Executor
)

// Sentinel errors surfaced by the pipeline stages.
var (
	ErrMissingDependencies = errors.New("missing required tools")
	ErrWorkdirBusy         = errors.New("work directory is in use by another run")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrLibraryNotFound     = errors.New("built library not found")
	ErrArtifactMissing     = errors.New("artifact was not created")
	ErrInvalidTransition   = errors.New("invalid pipeline transition")
)

// color helpers
var (
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#43A047")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
