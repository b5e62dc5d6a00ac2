package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/scenario-launcher/internal/launcher"
	"github.com/randomizedcoder/scenario-launcher/internal/preflight"
	"github.com/randomizedcoder/scenario-launcher/internal/resolver"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Short:   "Check the Java runtime and the scenario archives",
		GroupID: GroupDiag,
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			result := a.orch.Resolver().Diagnose()
			preflight.PrintResults(a.out, result)
			if !result.Passed {
				return errors.New("installation checks failed")
			}
			return nil
		},
	}
}

func (a *app) printCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:       "print-cmd <editor|player> [scenario]",
		Short:     "Print the command that would be launched",
		GroupID:   GroupDiag,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"editor", "player"},
		RunE: func(_ *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			target, err := a.orch.Resolver().Resolve(kind)
			if err != nil {
				return err
			}

			var progArgs []string
			if len(args) == 2 {
				progArgs = append(progArgs, args[1])
			}
			if kind == resolver.Player {
				progArgs = append(progArgs, mode)
			}

			inv := a.orch.Resolver().Invocation(target, progArgs...)
			fmt.Fprintln(a.out, inv.CommandString())
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", launcher.ModePractice, "Player mode to print")
	return cmd
}

func parseKind(s string) (resolver.Kind, error) {
	for _, k := range resolver.Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown target %q: must be \"editor\" or \"player\"", s)
}
