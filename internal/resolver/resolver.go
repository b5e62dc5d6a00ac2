// Package resolver turns an installation root into concrete, validated
// launch targets.
//
// Expected layout:
//
//	<root>/build/scenario_editor.jar
//	<root>/build/scenario_player.jar
//	<root>/build/libs/*.jar            (optional, enables classpath mode)
//
// Targets are computed fresh on every call; the build directory may change
// between launches.
package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/scenario-launcher/internal/preflight"
	"github.com/randomizedcoder/scenario-launcher/internal/process"
)

// ArchiveSuffix marks library archives in the libs directory.
const ArchiveSuffix = ".jar"

// ErrMissingArtifact is returned when a primary artifact does not exist.
var ErrMissingArtifact = errors.New("missing artifact")

// Kind is the runnable being launched.
type Kind int

const (
	Editor Kind = iota
	Player
)

// String returns "editor" or "player".
func (k Kind) String() string {
	switch k {
	case Editor:
		return "editor"
	case Player:
		return "player"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ArtifactName is the file stem of the kind's primary artifact.
func (k Kind) ArtifactName() string {
	if k == Player {
		return "scenario_player"
	}
	return "scenario_editor"
}

// EntrySymbol is the main class started in classpath mode.
func (k Kind) EntrySymbol() string {
	if k == Player {
		return "ScenarioPlayer"
	}
	return "ScenarioEditor"
}

// Modules returns the JavaFX modules the kind needs.
func (k Kind) Modules() []string {
	if k == Player {
		return process.PlayerModules
	}
	return process.EditorModules
}

// Kinds lists every launchable kind.
var Kinds = []Kind{Editor, Player}

// LaunchTarget is one runnable artifact with its libraries.
type LaunchTarget struct {
	Kind                  Kind
	PrimaryPath           string
	AuxiliaryLibraryPaths []string
}

// Mode returns classpath mode when libraries were found, otherwise
// direct-artifact mode.
func (t *LaunchTarget) Mode() process.Mode {
	if len(t.AuxiliaryLibraryPaths) == 0 {
		return process.DirectArtifact{Path: t.PrimaryPath}
	}
	entries := make([]string, 0, len(t.AuxiliaryLibraryPaths)+1)
	entries = append(entries, t.PrimaryPath)
	entries = append(entries, t.AuxiliaryLibraryPaths...)
	return process.Classpath{
		Entries:     entries,
		EntrySymbol: t.Kind.EntrySymbol(),
	}
}

// Resolver computes launch targets under an injected installation root.
type Resolver struct {
	root   string
	java   *process.JavaConfig
	logger *slog.Logger
}

// New creates a resolver. java supplies the runtime and module path used by
// Diagnose and Invocation.
func New(root string, java *process.JavaConfig, logger *slog.Logger) *Resolver {
	if java == nil {
		java = process.DefaultJavaConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{root: root, java: java, logger: logger}
}

// Root returns the installation root.
func (r *Resolver) Root() string {
	return r.root
}

// BuildDir returns <root>/build.
func (r *Resolver) BuildDir() string {
	return filepath.Join(r.root, "build")
}

// LibDir returns <root>/build/libs.
func (r *Resolver) LibDir() string {
	return filepath.Join(r.BuildDir(), "libs")
}

// ArtifactPath returns the primary artifact path of kind.
func (r *Resolver) ArtifactPath(kind Kind) string {
	return filepath.Join(r.BuildDir(), kind.ArtifactName()+ArchiveSuffix)
}

// Resolve computes the target for kind. It fails with ErrMissingArtifact when
// the primary artifact is absent; a missing libs directory is fine.
func (r *Resolver) Resolve(kind Kind) (*LaunchTarget, error) {
	primary := r.ArtifactPath(kind)
	info, err := os.Stat(primary)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, primary)
	}

	libs, err := r.libraries()
	if err != nil {
		r.logger.Warn("libs_unreadable", "dir", r.LibDir(), "error", err)
	}

	return &LaunchTarget{
		Kind:                  kind,
		PrimaryPath:           primary,
		AuxiliaryLibraryPaths: libs,
	}, nil
}

// libraries lists regular files (or symlinks to them) in the libs directory
// that end in ArchiveSuffix, in directory order. A missing directory yields
// nil.
func (r *Resolver) libraries() ([]string, error) {
	entries, err := os.ReadDir(r.LibDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var libs []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ArchiveSuffix) {
			continue
		}
		path := filepath.Join(r.LibDir(), e.Name())
		if !isRegularFile(e, path) {
			continue
		}
		libs = append(libs, path)
	}
	return libs, nil
}

// isRegularFile reports whether e is a regular file, following a symlink the
// same way the primary artifact check does.
func isRegularFile(e os.DirEntry, path string) bool {
	if e.Type()&os.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Invocation builds the command for target with the given arguments.
func (r *Resolver) Invocation(target *LaunchTarget, args ...string) *process.Invocation {
	return r.java.Build(target.Kind.Modules(), target.Mode(), args...)
}

// Diagnose runs every advisory and fatal check for the installation.
func (r *Resolver) Diagnose() *preflight.Result {
	return r.diagnose(false)
}

// DiagnosePaths runs the checks of Diagnose that only stat the filesystem.
func (r *Resolver) DiagnosePaths() *preflight.Result {
	return r.diagnose(true)
}

func (r *Resolver) diagnose(skipRuntime bool) *preflight.Result {
	artifacts := make([]preflight.Artifact, 0, len(Kinds))
	for _, k := range Kinds {
		artifacts = append(artifacts, preflight.Artifact{
			Name: k.ArtifactName(),
			Path: r.ArtifactPath(k),
		})
	}
	return preflight.RunAll(preflight.Options{
		RuntimePath: r.java.RuntimePath,
		ModulePath:  r.java.ModulePath,
		BuildDir:    r.BuildDir(),
		LibDir:      r.LibDir(),
		Artifacts:   artifacts,
		SkipRuntime: skipRuntime,
	})
}

// LogDiagnostics runs Diagnose and logs every warning and failure.
// It never fails.
func (r *Resolver) LogDiagnostics() *preflight.Result {
	return r.logResult(r.Diagnose())
}

// LogPathDiagnostics is LogDiagnostics without the runtime check.
func (r *Resolver) LogPathDiagnostics() *preflight.Result {
	return r.logResult(r.DiagnosePaths())
}

func (r *Resolver) logResult(result *preflight.Result) *preflight.Result {
	for _, c := range result.Checks {
		switch {
		case !c.Passed:
			r.logger.Error("preflight_failed", "check", c.Name, "message", c.Message)
		case c.Warning:
			r.logger.Warn("preflight_warning", "check", c.Name, "message", c.Message)
		default:
			r.logger.Debug("preflight_ok", "check", c.Name, "message", c.Message)
		}
	}
	return result
}
