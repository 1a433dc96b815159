package turnip

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: turnip <command> [arguments]")
	colSuccess.Println("Running turnip without a command performs a build")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"build, b", "[-v]", "Download sources, cross-compile Turnip and package both zips"},
		{"deps", "", "Check (and install) the required build tools"},
		{"log", "[meson|ninja]", "View a build log (default: ninja)"},
		{"upload", "[-y]", "Upload the built zips to R2"},
		{"clean", "[-y]", "Remove the work directory"},
		{"version, --version", "", "Version information"},
		{"help", "", "Show this help"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++ // Account for the space
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ") // Indent
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

// Main is the CLI entrypoint for cmd/turnip.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			color.Danger.Printf("Received %v. Cancelling build gracefully\n", sig)
			cancel()

			// A second signal, or a child that refuses to die, forces the exit.
			select {
			case <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Println("Second interrupt received. Forcing immediate exit.")
				os.Exit(130)
			case <-time.After(10 * time.Second):
				colArrow.Print("\n-> ")
				color.Danger.Println("Graceful shutdown timeout. Exiting.")
				os.Exit(130)
			}
		case <-ctx.Done():
		}
	}()

	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

// run dispatches a sub-command and returns the process exit code.
func run(ctx context.Context, args []string) int {
	if os.Getenv("TURNIP_DEBUG") == "1" {
		Debug = true
	}

	cfg, err := loadConfig(resolveConfigPath())
	if err != nil {
		log.Printf("warning: %v", err)
	}
	if cfg.Values["TURNIP_DEBUG"] == "1" {
		Debug = true
	}

	UserExec = NewExecutor(ctx)
	RootExec = NewRootExecutor(ctx)

	cmd := "build"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var cmdErr error
	switch cmd {
	case "build", "b":
		return runBuild(ctx, cfg, args)

	case "deps":
		bc, err := newBuildConfig(cfg)
		if err != nil {
			cmdErr = err
			break
		}
		cmdErr = newDependencyGate(bc, RootExec).Check()

	case "log":
		bc, err := newBuildConfig(cfg)
		if err != nil {
			cmdErr = err
			break
		}
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		cmdErr = showLog(os.Stdout, bc.Paths(), name)

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ContinueOnError)
		yes := fs.Bool("y", false, "Upload without asking for confirmation")
		if err := fs.Parse(args); err != nil {
			return 1
		}
		bc, err := newBuildConfig(cfg)
		if err != nil {
			cmdErr = err
			break
		}
		cmdErr = handleUploadCommand(ctx, cfg, bc, *yes)

	case "clean":
		fs := flag.NewFlagSet("clean", flag.ContinueOnError)
		yes := fs.Bool("y", false, "Remove without asking for confirmation")
		if err := fs.Parse(args); err != nil {
			return 1
		}
		bc, err := newBuildConfig(cfg)
		if err != nil {
			cmdErr = err
			break
		}
		cmdErr = handleCleanCommand(bc.Paths(), *yes)

	case "version", "--version":
		colNote.Printf("turnip %s (%s) built %s\n", version, arch, buildDate)

	case "help", "-h", "--help":
		printHelp()

	default:
		colArrow.Print("-> ")
		colError.Printf("Unknown command: %s\n", cmd)
		printHelp()
		return 1
	}

	if cmdErr != nil {
		colArrow.Print("-> ")
		colError.Printf("%s failed: %v\n", cmd, cmdErr)
		return 1
	}
	return 0
}

func runBuild(ctx context.Context, cfg *Config, args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Stream meson and ninja output to the terminal")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	bc, err := newBuildConfig(cfg)
	if err != nil {
		colArrow.Print("-> ")
		colError.Printf("Invalid configuration: %v\n", err)
		return 1
	}
	bc.Verbose = bc.Verbose || *verbose

	res, err := newPipeline(ctx, bc).Run(ctx)
	if err != nil {
		reportBuildFailure(os.Stdout, err)
		return 1
	}
	printSummary(os.Stdout, res)
	return 0
}

func reportBuildFailure(w io.Writer, err error) {
	var serr *StageError
	if errors.As(err, &serr) {
		fstepf(w, colError, "Build failed at %s: %v\n", serr.Stage, serr.Err)
	} else {
		fstepf(w, colError, "Build failed: %v\n", err)
	}
	if errors.Is(err, ErrWorkdirBusy) {
		fstepf(w, colWarn, "Another turnip run holds the work directory lock\n")
	}
}

func newDependencyGate(bc BuildConfig, root Runner) *DependencyGate {
	return &DependencyGate{
		Tools:     bc.Tools,
		Installer: aptInstaller{Exec: root, Authenticate: authenticateOnce},
	}
}

// newPipeline wires the production collaborators for bc.
func newPipeline(ctx context.Context, bc BuildConfig) *Pipeline {
	if UserExec == nil {
		UserExec = NewExecutor(ctx)
	}
	if RootExec == nil {
		RootExec = NewRootExecutor(ctx)
	}
	return &Pipeline{
		Config:    bc,
		Gate:      newDependencyGate(bc, RootExec),
		Fetcher:   &Fetcher{Mode: bc.Downloader, Exec: UserExec, Client: newHttpClient()},
		Extractor: &Extractor{Exec: UserExec, Native: bc.NativeUnzip},
		Builder:   &Builder{Exec: UserExec, Verbose: bc.Verbose, Stdout: os.Stdout},
		Packager:  &ModulePackager{Exec: UserExec},
	}
}

func handleCleanCommand(p Paths, assumeYes bool) error {
	if _, err := os.Stat(p.WorkDir); os.IsNotExist(err) {
		step("Nothing to clean at %s", p.WorkDir)
		return nil
	}
	if !assumeYes {
		colArrow.Print("-> ")
		if !askForConfirmation(colWarn, "Remove %s and everything in it?", p.WorkDir) {
			return nil
		}
	}
	if err := removeWorkspace(p); err != nil {
		return err
	}
	step("Removed %s", p.WorkDir)
	return nil
}
