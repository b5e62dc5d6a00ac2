package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/scenario-launcher/internal/launcher"
	"github.com/randomizedcoder/scenario-launcher/internal/orchestrator"
	"github.com/randomizedcoder/scenario-launcher/internal/resolver"
	"github.com/randomizedcoder/scenario-launcher/internal/resultchan"
	"github.com/randomizedcoder/scenario-launcher/internal/session"
)

// errNoResult is returned by "result" when no answer is waiting.
var errNoResult = errors.New("no result available")

func (a *app) editorCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:     "editor [scenario]",
		Short:   "Start the scenario editor",
		Long:    "Start the scenario editor, optionally opening a scenario file. A missing file starts a blank editor.",
		GroupID: GroupLaunch,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scenario string
			if len(args) == 1 {
				scenario = args[0]
			}
			child, err := a.orch.Launcher().Launch(resolver.Editor, launcher.Request{ScenarioPath: scenario})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "editor started (pid %d)\n", child.PID)
			if wait {
				return a.waitForChildren(cmd.Context())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Stay attached until the editor exits, then print a summary")
	return cmd
}

func (a *app) playCmd() *cobra.Command {
	var (
		mode string
		wait bool
	)

	cmd := &cobra.Command{
		Use:     "play <scenario>",
		Short:   "Start the scenario player",
		GroupID: GroupLaunch,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != launcher.ModePractice && mode != launcher.ModeTest {
				return fmt.Errorf("invalid mode %q: must be %q or %q", mode, launcher.ModePractice, launcher.ModeTest)
			}
			child, err := a.orch.Launcher().Launch(resolver.Player, launcher.Request{ScenarioPath: args[0], Mode: mode})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "player started in %s mode (pid %d)\n", mode, child.PID)
			if wait {
				return a.waitForChildren(cmd.Context())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", launcher.ModePractice, `Player mode: "practice" or "test"`)
	cmd.Flags().BoolVar(&wait, "wait", false, "Stay attached until the player exits, then print a summary")
	return cmd
}

// waitForChildren blocks until every launched child has exited or the user
// interrupts. Interrupting leaves the children running.
func (a *app) waitForChildren(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := orchestrator.SignalContext(parent)
	defer stop()

	if err := a.orch.Launcher().Wait(ctx); err != nil {
		a.logger.Info("detached_from_children", "running", a.orch.Launcher().Running())
	}
	a.orch.PrintExitSummary()
	return nil
}

func (a *app) testCmd() *cobra.Command {
	var user session.User

	cmd := &cobra.Command{
		Use:     "test",
		Short:   "Run a scored test over randomly selected scenarios",
		GroupID: GroupLaunch,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := orchestrator.SignalContext(parent)
			defer stop()

			rec, err := a.orch.RunTest(ctx, user)
			if err != nil {
				return fmt.Errorf("test aborted: %w", err)
			}

			fmt.Fprintf(a.out, "Score: %d%% (%d right, %d wrong, %d scenarios) on %s\n",
				rec.Score, rec.Right, rec.Wrong, rec.ScenariosPlayed, rec.Date)
			return nil
		},
	}
	cmd.Flags().StringVar(&user.ID, "user-id", "", "ID of the user taking the test")
	cmd.Flags().StringVar(&user.Name, "name", "", "Display name of the user taking the test")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func (a *app) resultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "result",
		Short:   "Consume the answer published by the player, if any",
		Long:    "Print and delete the pending result record. Exits non-zero when none is waiting.",
		GroupID: GroupLaunch,
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			rec, ok := a.orch.Launcher().TryConsumeResult(a.cfg.ResultPath())
			if !ok {
				return errNoResult
			}
			return writeJSON(a, rec)
		},
	}

	publish := &cobra.Command{
		Use:   "publish <json-object>",
		Short: "Publish a result record the way the player does",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var rec resultchan.Record
			dec := json.NewDecoder(strings.NewReader(args[0]))
			dec.UseNumber()
			if err := dec.Decode(&rec); err != nil {
				return fmt.Errorf("invalid result record: %w", err)
			}
			return resultchan.Publish(a.cfg.ResultPath(), rec)
		},
	}
	cmd.AddCommand(publish)
	return cmd
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
