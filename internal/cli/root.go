// Package cli provides the scenario-launcher command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/scenario-launcher/internal/config"
	"github.com/randomizedcoder/scenario-launcher/internal/logging"
	"github.com/randomizedcoder/scenario-launcher/internal/orchestrator"
)

// Command group IDs - used by subcommands to organize help output
const (
	GroupLaunch = "launch"
	GroupData   = "data"
	GroupDiag   = "diag"
)

// app carries state shared by every command of one invocation.
type app struct {
	version string
	cfg     *config.Config
	out     io.Writer
	errOut  io.Writer

	logger *slog.Logger
	orch   *orchestrator.Orchestrator
}

// NewRootCommand builds the command tree. out and errOut receive command
// output and errors.
func NewRootCommand(version string, out, errOut io.Writer) *cobra.Command {
	a := &app{
		version: version,
		cfg:     config.DefaultConfig(),
		out:     out,
		errOut:  errOut,
	}

	root := &cobra.Command{
		Use:     "scenario-launcher",
		Short:   "Launch and score the scenario editor and player",
		Version: version,
		Long: `scenario-launcher starts the Java scenario editor and player as detached
processes, collects the answers the player publishes, and keeps the
settings, course list and test history documents.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	config.BindFlags(root.PersistentFlags(), a.cfg)

	root.AddGroup(
		&cobra.Group{ID: GroupLaunch, Title: "Launching:"},
		&cobra.Group{ID: GroupData, Title: "Documents:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	root.SetHelpCommandGroupID(GroupDiag)
	root.SetCompletionCommandGroupID(GroupDiag)

	root.AddCommand(
		a.editorCmd(),
		a.playCmd(),
		a.testCmd(),
		a.resultCmd(),
		a.settingsCmd(),
		a.coursesCmd(),
		a.historyCmd(),
		a.scenariosCmd(),
		a.checkCmd(),
		a.printCmd(),
	)
	return root
}

// Execute runs the command tree and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute(version string) int {
	root := NewRootCommand(version, os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		// Already printed by cobra
		return 1
	}
	return 0
}

// setup layers the configuration, builds the logger and the component
// graph, and starts the metrics server.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	// cmd.Flags() is the set cobra parsed; it includes the persistent flags
	if err := config.Load(cmd.Flags(), a.cfg); err != nil {
		return err
	}
	if err := config.Validate(a.cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// The dashboard owns the terminal; logs would corrupt it
	if a.cfg.TUIEnabled && cmd.Name() == "test" {
		a.logger = logging.NewDiscardLogger()
	} else {
		a.logger = logging.NewLoggerWithWriter(a.errOut, a.cfg.LogFormat, levelFor(a.cfg.Verbose))
	}
	logging.SetDefault(a.logger)

	a.orch = orchestrator.New(a.cfg, a.logger, a.version, a.out)
	return a.orch.Start()
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.orch == nil {
		return nil
	}
	return a.orch.Close()
}

func levelFor(verbose bool) string {
	if verbose {
		return "debug"
	}
	return "info"
}

// buildCommandPath walks the command hierarchy to build the full command path.
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand returns a RunE function for parent commands that require
// a subcommand. Without this, Cobra silently shows help and exits 0 for
// unknown subcommands.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}
	return fmt.Errorf("unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd))
}
