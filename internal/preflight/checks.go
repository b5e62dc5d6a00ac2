// Package preflight provides installation checks run before a launch.
//
// Only a missing primary artifact is fatal. Everything else (runtime check,
// JavaFX module directory, build directory, library directory) is advisory:
// a failed advisory check passes with a warning.
package preflight

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Fatal   bool   // A failure blocks launching
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Artifact is one primary runnable file to verify.
type Artifact struct {
	Name string
	Path string
}

// Options selects what RunAll inspects.
type Options struct {
	RuntimePath string
	ModulePath  string
	BuildDir    string
	LibDir      string
	Artifacts   []Artifact

	// SkipRuntime leaves out CheckRuntime, the only check that starts a
	// process.
	SkipRuntime bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Warnings returns the messages of every check that passed with a warning.
func (r *Result) Warnings() []string {
	var out []string
	for _, c := range r.Checks {
		if c.Passed && c.Warning {
			out = append(out, c.Name+": "+c.Message)
		}
	}
	return out
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll executes all preflight checks.
func RunAll(opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4+len(opts.Artifacts)),
		Passed: true,
	}

	if !opts.SkipRuntime {
		result.add(CheckRuntime(opts.RuntimePath))
	}
	result.add(CheckModuleDir(opts.ModulePath))
	result.add(CheckBuildDir(opts.BuildDir))
	for _, a := range opts.Artifacts {
		result.add(CheckArtifact(a.Name, a.Path, opts.BuildDir))
	}
	result.add(CheckLibDir(opts.LibDir))

	return result
}

// CheckRuntime verifies the runtime command answers -version.
// java prints its banner on stderr, so both streams are read.
func CheckRuntime(path string) Check {
	output, err := exec.Command(path, "-version").CombinedOutput()
	if err != nil {
		return Check{
			Name:    "runtime",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("not usable at %s: %v", path, err),
		}
	}

	return Check{
		Name:    "runtime",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, parseVersion(string(output))),
	}
}

// parseVersion extracts the version from the first line of a -version banner,
// e.g. `openjdk version "21.0.2" 2024-01-16`.
func parseVersion(output string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(first)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return strings.Trim(fields[i+1], `"`)
		}
	}
	return "unknown"
}

// CheckModuleDir verifies the JavaFX module directory exists.
func CheckModuleDir(dir string) Check {
	if dir == "" {
		return Check{
			Name:    "module_path",
			Passed:  true,
			Message: "not configured (runtime must provide JavaFX)",
		}
	}
	if !isDir(dir) {
		return Check{
			Name:    "module_path",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("not found: %s", dir),
		}
	}
	return Check{
		Name:    "module_path",
		Passed:  true,
		Message: fmt.Sprintf("found: %s", dir),
	}
}

// CheckBuildDir verifies the build output directory exists.
func CheckBuildDir(dir string) Check {
	if !isDir(dir) {
		return Check{
			Name:    "build_dir",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("not found: %s", dir),
		}
	}
	return Check{
		Name:    "build_dir",
		Passed:  true,
		Message: fmt.Sprintf("found: %s", dir),
	}
}

// CheckArtifact verifies a primary artifact exists. A failure lists what the
// build directory does contain.
func CheckArtifact(name, path, buildDir string) Check {
	info, err := os.Stat(path)
	if err == nil && info.Mode().IsRegular() {
		return Check{
			Name:    name,
			Fatal:   true,
			Passed:  true,
			Message: fmt.Sprintf("found: %s", path),
		}
	}

	msg := fmt.Sprintf("not found: %s", path)
	if entries, err := os.ReadDir(buildDir); err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		msg += fmt.Sprintf(" (build contains: %s)", strings.Join(names, ", "))
	}
	return Check{
		Name:    name,
		Fatal:   true,
		Passed:  false,
		Message: msg,
	}
}

// CheckLibDir reports how many library archives are present. A missing
// directory means direct-artifact mode and is not a problem.
func CheckLibDir(dir string) Check {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Check{
			Name:    "libs",
			Passed:  true,
			Message: "none (direct-artifact mode)",
		}
	}

	count := 0
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".jar") {
			count++
		}
	}
	return Check{
		Name:    "libs",
		Passed:  true,
		Message: fmt.Sprintf("%d archives in %s (classpath mode)", count, filepath.Base(dir)),
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	fixStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// PrintResults prints the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, headerStyle.Render("Preflight checks:"))
	for _, check := range result.Checks {
		style := okStyle
		switch {
		case !check.Passed:
			style = failStyle
		case check.Warning:
			style = warnStyle
		}
		fmt.Fprintln(w, style.Render(check.String()))
		if !check.Passed || check.Warning {
			fmt.Fprintln(w, fixStyle.Render("    Fix: "+suggestFix(check.Name)))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "runtime":
		return "install a JDK 17+ or pass --runtime /path/to/java"
	case "module_path":
		return "download the JavaFX SDK and pass --module-path <sdk>/lib"
	case "build_dir", "scenario_editor", "scenario_player":
		return "build the Java application so build/<name>.jar exists, or pass --install-root"
	default:
		return "see documentation"
	}
}
