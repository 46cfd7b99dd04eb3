package root

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"questboard/core"
	sdk "questboard/sdk/go"
)

func newTaskCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks", "quest"},
		Short:   "Manage quests",
	}
	cmd.AddCommand(
		newTaskListCmd(opts),
		newTaskAddCmd(opts),
		newTaskShowCmd(opts),
		newTaskStatusCmd(opts, "done", core.StatusDone),
		newTaskStatusCmd(opts, "start", core.StatusInProgress),
		newTaskStatusCmd(opts, "reopen", core.StatusTodo),
		newTaskRmCmd(opts),
	)
	return cmd
}

func newTaskListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your quests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				tasks, err := c.ListTasks(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tLEVEL\tCAMPAIGN\tTITLE")
				for _, t := range tasks {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", t.ID, t.Status, t.Priority, t.TaskLevel, t.CampaignID, t.Title)
				}
				return tw.Flush()
			})
		},
	}
}

func newTaskAddCmd(opts *options) *cobra.Command {
	var in sdk.TaskInput
	var priority, status string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a quest",
		Args:  exactArgs("<title>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			in.Priority = core.Priority(priority)
			in.Status = core.Status(status)
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				res, err := c.CreateTask(ctx, in)
				if err != nil {
					return err
				}
				return printResult(cmd, opts, res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&in.Description, "description", "d", "", "description")
	f.StringVarP(&in.CampaignID, "campaign", "c", "", "campaign id")
	f.StringVar(&priority, "priority", "", "low|medium|high")
	f.StringVar(&status, "status", "", "todo|in_progress|done")
	f.IntVarP(&in.TaskLevel, "level", "l", 0, "task level")
	return cmd
}

func newTaskShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a quest with its side-quests",
		Args:  exactArgs("<id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				t, err := c.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), t)
				}
				printTask(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
}

func newTaskStatusCmd(opts *options, use string, st core.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Set a quest to %s", st),
		Args:  exactArgs("<id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				res, err := c.UpdateTask(ctx, args[0], sdk.TaskPatch{Status: &st})
				if err != nil {
					return err
				}
				return printResult(cmd, opts, res)
			})
		},
	}
}

func newTaskRmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a quest",
		Args:    exactArgs("<id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				if err := c.DeleteTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newSubtaskCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subtask",
		Aliases: []string{"side"},
		Short:   "Manage side-quests",
	}

	var weight float64
	var priority string
	add := &cobra.Command{
		Use:   "add <task-id> <title>",
		Short: "Add a side-quest",
		Args:  exactArgs("<task-id>", "<title>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := sdk.SubtaskInput{Title: args[1], Priority: core.Priority(priority)}
			if cmd.Flags().Changed("weight") {
				in.Weight = &weight
			}
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				res, err := c.AddSubtask(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printResult(cmd, opts, res)
			})
		},
	}
	add.Flags().Float64Var(&weight, "weight", 0, "reward weight")
	add.Flags().StringVar(&priority, "priority", "", "low|medium|high (default: inherit)")

	done := &cobra.Command{
		Use:   "done <task-id> <subtask-id>",
		Short: "Complete a side-quest",
		Args:  exactArgs("<task-id>", "<subtask-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := core.StatusDone
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				res, err := c.UpdateSubtask(ctx, args[0], args[1], sdk.SubtaskPatch{Status: &st})
				if err != nil {
					return err
				}
				return printResult(cmd, opts, res)
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <task-id> <subtask-id>",
		Short: "Delete a side-quest",
		Args:  exactArgs("<task-id>", "<subtask-id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				t, err := c.DeleteSubtask(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), t)
				}
				printTask(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}

	cmd.AddCommand(add, done, rm)
	return cmd
}

func printResult(cmd *cobra.Command, opts *options, res sdk.TaskResult) error {
	if opts.asJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	w := cmd.OutOrStdout()
	printTask(w, res.Task)
	for _, ev := range res.XPEvents {
		printXP(w, ev)
	}
	return nil
}

func printTask(w io.Writer, t core.Task) {
	fmt.Fprintf(w, "%s  [%s] %s (%s, level %d)\n", t.ID, t.Status, t.Title, t.Priority, t.TaskLevel)
	for _, s := range t.Subtasks {
		fmt.Fprintf(w, "  - %s  [%s] %s\n", s.ID, s.Status, s.Title)
	}
}

func printXP(w io.Writer, ev core.PublicXPEvent) {
	fmt.Fprintf(w, "%+d xp (%s) -> %d total\n", ev.Amount, ev.Reason, ev.XPAfter)
	if ev.LeveledUp {
		fmt.Fprintf(w, "level up! %d -> %d\n", ev.LevelBefore, ev.LevelAfter)
	}
}
