package root

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	sdk "questboard/sdk/go"
)

func newDailyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Claim today's reward",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				res, err := c.ClaimDaily(ctx)
				if sdk.IsCode(err, "already_claimed") {
					return errors.New("already claimed today; come back tomorrow")
				}
				if err != nil {
					return err
				}
				return printReward(cmd, opts, res)
			})
		},
	}
}

func newXPCmd(opts *options) *cobra.Command {
	var note string
	var amount float64
	cmd := &cobra.Command{
		Use:   "xp <amount>",
		Short: "Adjust XP through the debug route",
		Args:  exactArgs("<amount>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := fmt.Sscanf(args[0], "%g", &amount); err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				res, err := c.AdjustXP(ctx, amount, note)
				if err != nil {
					return err
				}
				return printReward(cmd, opts, res)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note stored with the adjustment")
	return cmd
}

func printReward(cmd *cobra.Command, opts *options, res sdk.RewardResult) error {
	if opts.asJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	if res.Event != nil {
		printXP(cmd.OutOrStdout(), *res.Event)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "level %d, streak %d\n", res.Player.Level, res.Player.Streak)
	return nil
}

func newBoardCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "board",
		Aliases: []string{"leaderboard"},
		Short:   "Show the leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				lb, err := c.Leaderboard(ctx, limit)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), lb)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tPLAYER\tLEVEL\tXP")
				for _, e := range lb.Entries {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", e.Rank, e.Username, e.Level, e.XP)
				}
				if lb.Me != nil {
					fmt.Fprintf(tw, "you\t%s\t%d\t%d (rank %d)\n", lb.Me.Username, lb.Me.Level, lb.Me.XP, lb.Me.Rank)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "entries to show (1-100)")
	return cmd
}

func newCampaignsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "campaigns",
		Short: "Show progress per campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				camps, err := c.Campaigns(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), camps)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CAMPAIGN\tQUESTS\tSIDE-QUESTS\tXP\tPROGRESS")
				for _, s := range camps {
					fmt.Fprintf(tw, "%s\t%d/%d\t%d/%d\t%d\t%.0f%%\n",
						s.ID, s.TasksDone, s.Tasks, s.SubtasksDone, s.Subtasks, s.XPEarned, s.Progress*100)
				}
				return tw.Flush()
			})
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				hs, err := c.Health(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), hs)
				}
				fmt.Fprintln(cmd.OutOrStdout(), hs.Status)
				if hs.Status != "healthy" {
					return errors.New("server unhealthy")
				}
				return nil
			})
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream your events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return opts.call(cmd, func(_ context.Context, c *sdk.Client) error {
				events, err := c.SubscribeEvents(ctx)
				if err != nil {
					return err
				}
				for ev := range events {
					if opts.asJSON {
						if err := printJSON(cmd.OutOrStdout(), ev); err != nil {
							return err
						}
						continue
					}
					line := fmt.Sprintf("%s %s", ev.Time.Local().Format("15:04:05"), ev.Type)
					switch {
					case ev.XP != nil:
						line += fmt.Sprintf(" %+d xp (%s)", ev.XP.Amount, ev.XP.Reason)
					case ev.Achievement != nil:
						line += " " + ev.Achievement.ID
					case ev.Level > 0:
						line += fmt.Sprintf(" level %d", ev.Level)
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}
