package process

import (
	"strings"
)

// Module sets passed with --add-modules.
var (
	// EditorModules is what the scenario editor needs.
	EditorModules = []string{"javafx.controls", "javafx.fxml", "javafx.graphics"}

	// PlayerModules adds media playback for the scenario player.
	PlayerModules = []string{"javafx.controls", "javafx.fxml", "javafx.graphics", "javafx.media"}
)

// JavaConfig holds configuration for building runtime invocations.
type JavaConfig struct {
	// RuntimePath is the java executable.
	RuntimePath string

	// ModulePath is the JavaFX lib directory. Empty means the runtime
	// already provides the modules and no module flags are emitted.
	ModulePath string
}

// DefaultJavaConfig returns a JavaConfig that uses java from PATH.
func DefaultJavaConfig() *JavaConfig {
	return &JavaConfig{
		RuntimePath: "java",
	}
}

// RuntimeFlags returns the module flags for the given module set.
func (c *JavaConfig) RuntimeFlags(modules []string) []string {
	if c.ModulePath == "" || len(modules) == 0 {
		return nil
	}
	return []string{
		"--module-path", c.ModulePath,
		"--add-modules", strings.Join(modules, ","),
	}
}

// Build creates an invocation of mode with the given modules and arguments.
func (c *JavaConfig) Build(modules []string, mode Mode, args ...string) *Invocation {
	return &Invocation{
		Executable:   c.RuntimePath,
		RuntimeFlags: c.RuntimeFlags(modules),
		Mode:         mode,
		Arguments:    append([]string(nil), args...),
	}
}
