package root

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	sdk "questboard/sdk/go"
)

const Version = "0.1.0"

// options are the persistent flags shared by every command.
type options struct {
	server   string
	token    string
	session  string
	adminKey string
	asJSON   bool
}

func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
}

// NewRootCmd builds the questctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "questctl",
		Short:         "questctl talks to a questboard server",
		Long:          "questctl manages quests, side-quests and rewards on a questboard server.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	f := cmd.PersistentFlags()
	f.StringVar(&opts.server, "server", envOr("QUESTBOARD_URL", "http://localhost:8080/api"), "API base URL")
	f.StringVar(&opts.token, "token", os.Getenv("QUESTBOARD_TOKEN"), "session token (overrides the saved session)")
	f.StringVar(&opts.session, "session", defaultSessionPath(), "file holding the saved session token")
	f.StringVar(&opts.adminKey, "admin-key", os.Getenv("QUESTBOARD_ADMIN_KEY"), "X-Admin-Key for debug commands")
	f.BoolVar(&opts.asJSON, "json", false, "print raw JSON")

	cmd.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newMeCmd(opts),
		newTaskCmd(opts),
		newSubtaskCmd(opts),
		newDailyCmd(opts),
		newXPCmd(opts),
		newBoardCmd(opts),
		newCampaignsCmd(opts),
		newHealthCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".questctl-session"
	}
	return filepath.Join(dir, "questctl", "session")
}

// client builds an SDK client using the flag token or the saved session.
func (o *options) client() (*sdk.Client, error) {
	tok := o.token
	if tok == "" && o.session != "" {
		if b, err := os.ReadFile(o.session); err == nil {
			tok = strings.TrimSpace(string(b))
		}
	}
	return sdk.NewClient(o.server, sdk.WithAuthToken(tok), sdk.WithAdminKey(o.adminKey))
}

func (o *options) saveSession(tok string) error {
	if o.session == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(o.session), 0o700); err != nil {
		return err
	}
	return os.WriteFile(o.session, []byte(tok+"\n"), 0o600)
}

func (o *options) call(cmd *cobra.Command, fn func(context.Context, *sdk.Client) error) error {
	c, err := o.client()
	if err != nil {
		return err
	}
	return fn(cmd.Context(), c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exactArgs(names ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != len(names) {
			return errors.New("expected " + strings.Join(names, " "))
		}
		return nil
	}
}
