package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/scenario-launcher/internal/stats"
)

var errWrongPassword = errors.New("incorrect admin password")

// =============================================================================
// settings
// =============================================================================

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settings",
		Short:   "Show or change the application settings",
		GroupID: GroupData,
		RunE:    requireSubcommand,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the settings (password masked)",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s, err := a.orch.Store().Settings()
			if err != nil {
				return err
			}
			s.AdminPassword = strings.Repeat("*", len(s.AdminPassword))
			return writeJSON(a, s)
		},
	}

	var current string
	setPassword := &cobra.Command{
		Use:   "set-password <new-password>",
		Short: "Change the admin password",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ok, err := a.orch.Store().CheckPassword(current)
			if err != nil {
				return err
			}
			if !ok {
				return errWrongPassword
			}
			if err := a.orch.Store().SetPassword(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Admin password updated")
			return nil
		},
	}
	setPassword.Flags().StringVar(&current, "current", "", "Current admin password")
	_ = setPassword.MarkFlagRequired("current")

	checkPassword := &cobra.Command{
		Use:   "check-password <password>",
		Short: "Verify the admin password",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ok, err := a.orch.Store().CheckPassword(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errWrongPassword
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}

	language := &cobra.Command{
		Use:   "language <code>",
		Short: "Set the interface language",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.orch.Store().SetLanguage(args[0])
		},
	}

	theme := &cobra.Command{
		Use:       "theme <dark|light>",
		Short:     "Set the interface theme",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"dark", "light"},
		RunE: func(_ *cobra.Command, args []string) error {
			return a.orch.Store().SetTheme(args[0])
		},
	}

	cmd.AddCommand(show, setPassword, checkPassword, language, theme)
	return cmd
}

// =============================================================================
// courses
// =============================================================================

func (a *app) coursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "courses",
		Short:   "Manage the course list",
		GroupID: GroupData,
		RunE:    requireSubcommand,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List courses",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			courses, err := a.orch.Store().Courses()
			if err != nil {
				return err
			}
			if len(courses) == 0 {
				fmt.Fprintln(a.out, "No courses.")
				return nil
			}
			fmt.Fprintf(a.out, "%-16s %-10s %-30s %s\n", "ID", "ADDED", "TITLE", "FILE")
			for _, c := range courses {
				fmt.Fprintf(a.out, "%-16s %-10s %-30s %s\n", c.ID, c.AddedDate, c.Title, c.FilePath)
			}
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <title> <file>",
		Short: "Add a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			c, err := a.orch.Store().AddCourse(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, c.ID)
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.orch.Store().RenameCourse(args[0], args[1])
		},
	}

	setFile := &cobra.Command{
		Use:   "set-file <id> <file>",
		Short: "Point a course at a different file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.orch.Store().SetCourseFile(args[0], args[1])
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.orch.Store().DeleteCourse(args[0])
		},
	}

	cmd.AddCommand(list, add, rename, setFile, del)
	return cmd
}

// =============================================================================
// history
// =============================================================================

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show or clear the test history",
		GroupID: GroupData,
		RunE:    requireSubcommand,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded tests",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			records, err := a.orch.Store().History()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(a.out, "No tests recorded.")
				return nil
			}
			fmt.Fprintf(a.out, "%-10s %-10s %-20s %6s %6s %6s %9s\n", "DATE", "USER", "NAME", "SCORE", "RIGHT", "WRONG", "SCENARIOS")
			for _, r := range records {
				fmt.Fprintf(a.out, "%-10s %-10s %-20s %5d%% %6d %6d %9d\n",
					r.Date, r.UserID, r.Name, r.Score, r.Right, r.Wrong, r.ScenariosPlayed)
			}
			return nil
		},
	}

	var perUser bool
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Summarize scores",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			records, err := a.orch.Store().History()
			if err != nil {
				return err
			}
			if !perUser {
				h := stats.SummarizeHistory(records)
				fmt.Fprint(a.out, stats.FormatHistory(h))
				return nil
			}

			byUser := stats.UserSummaries(records)
			users := make([]string, 0, len(byUser))
			for u := range byUser {
				users = append(users, u)
			}
			sort.Strings(users)
			for _, u := range users {
				fmt.Fprintf(a.out, "%s:\n", u)
				fmt.Fprint(a.out, stats.FormatHistory(byUser[u]))
			}
			return nil
		},
	}
	summary.Flags().BoolVar(&perUser, "per-user", false, "Summarize each user separately")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded test",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.orch.Store().ClearHistory()
		},
	}

	cmd.AddCommand(list, summary, clearCmd)
	return cmd
}

// =============================================================================
// scenarios
// =============================================================================

func (a *app) scenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scenarios",
		Short:   "List or delete scenario documents",
		GroupID: GroupData,
		RunE:    requireSubcommand,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List scenarios with their titles",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			infos, err := a.orch.Store().ListScenarios(a.cfg.ScenariosPath())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(a.out, "No scenarios.")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(a.out, "%-30s %s\n", info.File, info.Title)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <file>",
		Short: "Delete a scenario document",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.orch.Store().DeleteScenario(a.cfg.ScenariosPath(), args[0])
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
