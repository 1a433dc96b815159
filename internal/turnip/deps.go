package turnip

import (
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// toolPackages maps a required executable to the apt package that ships it.
var toolPackages = map[string]string{
	"curl":             "curl",
	"wget":             "wget",
	"unzip":            "unzip",
	"zip":              "zip",
	"meson":            "meson",
	"ninja":            "ninja-build",
	"patchelf":         "patchelf",
	"flex":             "flex",
	"bison":            "bison",
	"glslangValidator": "glslang-tools",
	"python3":          "python3",
	"pip":              "python3-pip",
	"pkg-config":       "pkg-config",
}

func defaultTools() []string {
	return []string{"curl", "unzip", "meson", "ninja", "patchelf", "flex", "bison", "glslangValidator", "python3", "pkg-config"}
}

// Installer installs distribution packages.
type Installer interface {
	Install(packages []string) error
}

// aptInstaller installs packages with apt-get through a privileged runner.
type aptInstaller struct {
	Exec         Runner
	Authenticate func() error
}

func (a aptInstaller) Install(packages []string) error {
	if a.Authenticate != nil {
		if err := a.Authenticate(); err != nil {
			return err
		}
	}
	if err := a.Exec.Run(exec.Command("apt-get", "update")); err != nil {
		return fmt.Errorf("apt-get update: %w", err)
	}
	args := append([]string{"install", "-y"}, packages...)
	if err := a.Exec.Run(exec.Command("apt-get", args...)); err != nil {
		return fmt.Errorf("apt-get install: %w", err)
	}
	return nil
}

// DependencyGate verifies the external tools the build shells out to.
type DependencyGate struct {
	Tools     []string
	LookPath  func(string) (string, error)
	Installer Installer
}

// Missing returns the tools not found on PATH, in declaration order.
func (g *DependencyGate) Missing() []string {
	lookPath := g.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var missing []string
	for _, tool := range g.Tools {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}

// Check runs one install pass for missing tools and re-verifies afterwards.
func (g *DependencyGate) Check() error {
	missing := g.Missing()
	if len(missing) == 0 {
		step("All dependencies are installed")
		return nil
	}

	colArrow.Print("-> ")
	colWarn.Printf("Missing dependencies: %s\n", strings.Join(missing, ", "))

	if g.Installer == nil {
		return fmt.Errorf("%w: %s", ErrMissingDependencies, strings.Join(missing, ", "))
	}

	packages := packagesFor(missing)
	step("Installing %s", strings.Join(packages, " "))
	if err := g.Installer.Install(packages); err != nil {
		// Fall through to re-verification; it produces the precise error.
		colArrow.Print("-> ")
		colWarn.Printf("Package installation failed: %v\n", err)
	}

	if still := g.Missing(); len(still) > 0 {
		return fmt.Errorf("%w after install: %s", ErrMissingDependencies, strings.Join(still, ", "))
	}
	step("Dependencies installed")
	return nil
}

// packagesFor maps tools to unique package names; unknown tools map to themselves.
func packagesFor(tools []string) []string {
	var pkgs []string
	for _, tool := range tools {
		pkg, ok := toolPackages[tool]
		if !ok {
			pkg = tool
		}
		if !slices.Contains(pkgs, pkg) {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs
}
