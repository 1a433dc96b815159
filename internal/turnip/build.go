package turnip

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/gookit/color"
)

// mesonArgs returns the `meson setup` invocation for the Turnip-only Android build.
func mesonArgs(bc BuildConfig, p Paths) []string {
	args := []string{
		"setup", p.BuildDir,
		"--cross-file=" + p.CrossFile,
		"-Dbuildtype=release",
		"-Dplatforms=android",
		"-Dplatform-sdk-version=" + strconv.Itoa(bc.SDKVersion),
		"-Dandroid-stub=true",
		"-Dgallium-drivers=",
		"-Dvulkan-drivers=freedreno",
		"-Dvulkan-beta=true",
		"-Dfreedreno-kmds=kgsl",
		"-Db_lto=true",
		"-Dstrip=true",
		"-Degl=disabled",
	}
	return append(args, bc.MesonExtra...)
}

func ninjaArgs(bc BuildConfig, p Paths) []string {
	args := []string{"-C", p.BuildDir}
	if bc.Jobs > 0 {
		args = append(args, "-j", strconv.Itoa(bc.Jobs))
	}
	return args
}

// Builder runs meson and ninja with their output captured in log files.
type Builder struct {
	Exec    Runner
	Verbose bool // Verbose tees tool output to Stdout
	Quiet   bool // Quiet suppresses the elapsed-time ticker
	Stdout  io.Writer
}

// Configure runs `meson setup` inside the Mesa source tree.
func (b *Builder) Configure(bc BuildConfig, p Paths) error {
	cmd := exec.Command("meson", mesonArgs(bc, p)...)
	cmd.Dir = p.MesaSrc
	return b.runLogged("meson", cmd, p.MesonLog)
}

// Compile runs ninja against the configured build directory.
func (b *Builder) Compile(bc BuildConfig, p Paths) error {
	cmd := exec.Command("ninja", ninjaArgs(bc, p)...)
	cmd.Dir = p.MesaSrc
	return b.runLogged("ninja", cmd, p.NinjaLog)
}

func (b *Builder) runLogged(tool string, cmd *exec.Cmd, logPath string) error {
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	stdout := b.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var w io.Writer = logFile
	if b.Verbose || Debug {
		w = io.MultiWriter(stdout, logFile)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.Env = append(os.Environ(), "CLICOLOR_FORCE=1", "TERM=xterm-256color")

	startTime := time.Now()
	doneCh := make(chan struct{})
	var tickWg sync.WaitGroup
	if !b.Verbose && !b.Quiet {
		tickWg.Add(1)
		go func() {
			defer tickWg.Done()
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					elapsed := time.Since(startTime).Truncate(time.Second)
					fstepf(stdout, colSuccess, "Running %s elapsed: %s\r", tool, elapsed)
				case <-doneCh:
					fmt.Fprint(stdout, "\n")
					return
				}
			}
		}()
	}

	runErr := b.Exec.Run(cmd)
	close(doneCh)
	tickWg.Wait()

	if runErr != nil {
		fstepf(stdout, color.Danger, "%s failed: %v (log: %s)\n", tool, runErr, logPath)
		logFile.Sync()
		printTail(stdout, logPath, 50)
		return fmt.Errorf("%s failed, see %s: %w", tool, logPath, runErr)
	}
	debugf("%s finished in %s\n", tool, time.Since(startTime).Truncate(time.Second))
	return nil
}
