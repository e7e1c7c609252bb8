package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jason-s-yu/loto/internal/credstore"
	"github.com/jason-s-yu/loto/internal/invite"
	"github.com/spf13/cobra"
)

func newInviteCmd(opts *options) *cobra.Command {
	var (
		room string
		out  string
		size int
	)
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Print an invite link for a room and optionally write it as a QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if room == "" {
				return errors.New("--room is required")
			}
			game := invite.GameLottery
			if opts.game != "" {
				g, err := parseGame(opts.game)
				if err != nil {
					return err
				}
				game = g
			}
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			store, closeStore, err := credstore.Open(cfg.Store)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					logger.Warnf("closing credential store: %v", err)
				}
			}()

			link, url, err := inviteLink(cmd.Context(), cfg, store, game, room)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link.ShareText())
			fmt.Fprintln(cmd.OutOrStdout(), url)
			if out == "" {
				return nil
			}
			png, err := invite.QR(url, size)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write qr: %w", err)
			}
			logger.Infof("wrote QR code to %s", out)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&room, "room", "r", "", "room code (env: LOTO_ROOM)")
	fs.StringVarP(&opts.game, "game", "g", "", "lottery|card (env: LOTO_GAME)")
	fs.StringVarP(&out, "qr", "o", "", "write a QR code PNG to this path (env: LOTO_QR)")
	fs.IntVar(&size, "qr-size", 256, "QR code size in pixels (env: LOTO_QR_SIZE)")
	return cmd
}
