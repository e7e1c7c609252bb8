package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jason-s-yu/loto/internal/invite"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type options struct {
	name     string
	game     string
	relayURL string
	logLevel string
}

func newRootCmd(opts *options) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LOTO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "loto",
		Short:         "Host or join a Lô tô or Bài Cào room from the terminal.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bindEnv(v, cmd.Flags())
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.SetNormalizeFunc(normalize)
	pf.StringVarP(&opts.name, "name", "n", "", "display name (env: LOTO_NAME)")
	pf.StringVar(&opts.relayURL, "relay-url", "", "relay websocket URL (env: LOTO_RELAY_URL)")
	pf.StringVar(&opts.logLevel, "log-level", "", "panic|fatal|error|warn|info|debug|trace (env: LOTO_LOG_LEVEL)")

	cmd.AddCommand(newHostCmd(opts), newJoinCmd(opts), newInviteCmd(opts))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("loto v{{.Version}}\n")

	return cmd
}

func normalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// bindEnv fills flags that were not given on the command line from LOTO_*
// environment variables.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

var errUnknownGame = errors.New("unknown game, want lottery or card")

func parseGame(s string) (invite.Game, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lottery", "loto", "lo-to":
		return invite.GameLottery, nil
	case "card", "cards", "bai-cao", "baicao":
		return invite.GameCards, nil
	}
	return "", fmt.Errorf("%q: %w", s, errUnknownGame)
}

func newHostCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "host lottery|card",
		Short:     "Open a room and run it from this terminal",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"lottery", "card"},
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := parseGame(args[0])
			if err != nil {
				return err
			}
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			scr := newScreen(cmd.OutOrStdout())
			con := newConsole(cmd.InOrStdin(), scr)
			if game == invite.GameCards {
				return runCardHost(cmd.Context(), rt, con, scr, opts.name)
			}
			return runLotteryHost(cmd.Context(), rt, con, scr)
		},
	}
}

func newJoinCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <code-or-invite-url>",
		Short: "Join a room by its 4-digit code or an invite link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := invite.Parse(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(opts.name) == "" {
				return errors.New("--name is required to join")
			}
			game := link.Game
			if game == "" {
				game = invite.GameLottery
				if opts.game != "" {
					if game, err = parseGame(opts.game); err != nil {
						return err
					}
				}
			}

			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			scr := newScreen(cmd.OutOrStdout())
			if saved, err := link.Apply(cmd.Context(), rt.store); err != nil {
				rt.logger.Warnf("saving relay credentials: %v", err)
			} else if saved {
				scr.printf("Đã lưu cấu hình TURN từ link mời.\n")
			}

			con := newConsole(cmd.InOrStdin(), scr)
			if game == invite.GameCards {
				return runCardPlayer(cmd.Context(), rt, con, scr, link.Room, opts.name)
			}
			return runLotteryPlayer(cmd.Context(), rt, con, scr, link.Room, opts.name)
		},
	}
	cmd.Flags().StringVarP(&opts.game, "game", "g", "", "game to play when the code does not say: lottery|card (env: LOTO_GAME)")
	return cmd
}
