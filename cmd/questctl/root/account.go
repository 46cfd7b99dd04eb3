package root

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	sdk "questboard/sdk/go"
)

func passwordFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVarP(dst, "password", "p", "", "password (or QUESTBOARD_PASSWORD)")
}

func password(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := os.Getenv("QUESTBOARD_PASSWORD"); v != "" {
		return v, nil
	}
	return "", errors.New("password is required")
}

func newRegisterCmd(opts *options) *cobra.Command {
	var pw, display string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account and save the session",
		Args:  exactArgs("<username>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := password(pw)
			if err != nil {
				return err
			}
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				s, err := c.Register(ctx, args[0], p, display)
				if err != nil {
					return err
				}
				return printSession(cmd, opts, s)
			})
		},
	}
	passwordFlag(cmd, &pw)
	cmd.Flags().StringVar(&display, "display-name", "", "display name")
	return cmd
}

func newLoginCmd(opts *options) *cobra.Command {
	var pw string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and save the session",
		Args:  exactArgs("<username>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := password(pw)
			if err != nil {
				return err
			}
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				s, err := c.Login(ctx, args[0], p)
				if err != nil {
					return err
				}
				return printSession(cmd, opts, s)
			})
		},
	}
	passwordFlag(cmd, &pw)
	return cmd
}

func printSession(cmd *cobra.Command, opts *options, s sdk.Session) error {
	if err := opts.saveSession(s.Token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if opts.asJSON {
		return printJSON(cmd.OutOrStdout(), s)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "welcome %s (level %d, %d xp); session valid until %s\n",
		s.User.Username, s.RPG.Level, s.RPG.XP, s.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func newMeCmd(opts *options) *cobra.Command {
	var rename string
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show your profile and progression",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c *sdk.Client) error {
				var (
					p   sdk.Player
					err error
				)
				if cmd.Flags().Changed("display-name") {
					p, err = c.UpdateDisplayName(ctx, rename)
				} else {
					p, err = c.Me(ctx)
				}
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), p)
				}
				r := p.RPG
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s (%s)\n", p.User.DisplayName, p.User.Username)
				fmt.Fprintf(w, "level %d  xp %d  [%s] %d/%d\n", r.Level, r.XP, bar(r.XPProgress, 20), r.XPIntoLevel, r.XPForLevel)
				fmt.Fprintf(w, "streak %d  hp %.0f  mp %.0f  coins %.0f\n", r.Streak, r.Stats.HP, r.Stats.MP, r.Stats.Coins)
				if len(r.Achievements) > 0 {
					names := make([]string, 0, len(r.Achievements))
					for _, a := range r.Achievements {
						name := a.Title
						if name == "" {
							name = a.ID
						}
						names = append(names, name)
					}
					fmt.Fprintf(w, "achievements: %s\n", strings.Join(names, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rename, "display-name", "", "change the display name (empty resets)")
	return cmd
}

func bar(p float64, width int) string {
	n := int(p * float64(width))
	n = max(0, min(width, n))
	return strings.Repeat("#", n) + strings.Repeat(".", width-n)
}
