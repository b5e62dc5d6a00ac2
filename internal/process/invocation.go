package process

import (
	"errors"
	"runtime"
	"strings"
)

// Mode is how the runtime is told what to run. It is either DirectArtifact
// or Classpath.
type Mode interface {
	// modeArgs returns the entry-point arguments, joining classpath entries
	// with sep.
	modeArgs(sep string) []string

	// Name returns "jar" or "classpath".
	Name() string
}

// DirectArtifact runs a single self-contained archive with -jar.
type DirectArtifact struct {
	Path string
}

// Name returns "jar".
func (DirectArtifact) Name() string { return "jar" }

func (m DirectArtifact) modeArgs(string) []string {
	return []string{"-jar", m.Path}
}

// Classpath lists every archive with -cp and starts a named entry symbol.
type Classpath struct {
	Entries     []string
	EntrySymbol string
}

// Name returns "classpath".
func (Classpath) Name() string { return "classpath" }

func (m Classpath) modeArgs(sep string) []string {
	return []string{"-cp", strings.Join(m.Entries, sep), m.EntrySymbol}
}

// ClasspathSeparator returns the path-list separator for goos.
func ClasspathSeparator(goos string) string {
	if goos == "windows" {
		return ";"
	}
	return ":"
}

// Invocation is the fully materialized command for one launch.
type Invocation struct {
	// Executable is the runtime command, e.g. "java".
	Executable string

	// RuntimeFlags come before the entry point (module path and modules).
	RuntimeFlags []string

	// Mode selects -jar or -cp.
	Mode Mode

	// Arguments are passed to the launched program.
	Arguments []string
}

// Validate checks the structural invariants of an invocation.
func (inv *Invocation) Validate() error {
	var errs []error
	if inv.Executable == "" {
		errs = append(errs, errors.New("invocation: executable is empty"))
	}
	switch m := inv.Mode.(type) {
	case DirectArtifact:
		if m.Path == "" {
			errs = append(errs, errors.New("invocation: artifact path is empty"))
		}
	case Classpath:
		if len(m.Entries) == 0 {
			errs = append(errs, errors.New("invocation: classpath has no entries"))
		}
		if m.EntrySymbol == "" {
			errs = append(errs, errors.New("invocation: entry symbol is empty"))
		}
	case nil:
		errs = append(errs, errors.New("invocation: mode is not set"))
	}
	return errors.Join(errs...)
}

// ArgsFor returns the argument list (without the executable) as it would be
// built on goos.
func (inv *Invocation) ArgsFor(goos string) []string {
	args := make([]string, 0, len(inv.RuntimeFlags)+3+len(inv.Arguments))
	args = append(args, inv.RuntimeFlags...)
	if inv.Mode != nil {
		args = append(args, inv.Mode.modeArgs(ClasspathSeparator(goos))...)
	}
	args = append(args, inv.Arguments...)
	return args
}

// Args returns the argument list for the current platform.
func (inv *Invocation) Args() []string {
	return inv.ArgsFor(runtime.GOOS)
}

// CommandString returns the command that would be executed (for debugging).
func (inv *Invocation) CommandString() string {
	return inv.Executable + " " + strings.Join(inv.Args(), " ")
}
