package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/loto/internal/cards"
	"github.com/jason-s-yu/loto/internal/invite"
	"github.com/jason-s-yu/loto/internal/models"
	"github.com/jason-s-yu/loto/internal/session"
)

func leaderLine(players []models.CardPlayer, leader string) string {
	for _, p := range players {
		if p.ID == leader {
			return fmt.Sprintf("👑 %s dẫn đầu (%s)", p.Name, p.ScoreText)
		}
	}
	return ""
}

func runCardHost(ctx context.Context, rt *runtime, con *console, scr *screen, name string) error {
	if strings.TrimSpace(name) == "" {
		name = "Cái"
	}
	host := cards.NewHost(name, rt.mgr, rt.logger)
	defer host.Stop()
	host.OnChange = func() {
		st := host.State()
		scr.chat(st.Chat)
		scr.changed("leader", leaderLine(st.Players, st.Leader))
	}

	code, err := rt.mgr.StartHosting(ctx, session.HostHandlers{
		OnMessage:    host.HandleMessage,
		OnPeerClosed: host.PeerClosed,
	})
	if err != nil {
		return err
	}
	rt.announceRoom(ctx, scr, invite.GameCards, code)

	table := func([]string) error {
		st := host.State()
		scr.printf("%s", formatTable(st.Players, st.Leader))
		return nil
	}
	con.handle("deal", "shuffle and deal a new round", func(args []string) error {
		if err := host.Deal(); err != nil {
			return err
		}
		return table(args)
	})
	con.handle("flip", "I: turn over your card I", func(args []string) error {
		pos, err := positions(args, 1)
		if err != nil {
			return err
		}
		if err := host.FlipHost(pos[0]); err != nil {
			return err
		}
		return table(nil)
	})
	con.handle("reveal", "open every hand and settle the round", func([]string) error {
		if err := host.RevealAll(); err != nil {
			return err
		}
		return table(nil)
	})
	con.handle("auto", "toggle the dealer bot", func([]string) error {
		on := !host.State().Auto
		if err := host.SetAutoMode(on); err != nil {
			return err
		}
		scr.printf("bot: %v\n", on)
		return nil
	})
	con.handle("table", "show the table", table)
	con.handle("say", "TEXT: send a chat message", func(args []string) error {
		host.SendChat(strings.Join(args, " "))
		return nil
	})
	return con.run(ctx)
}

func runCardPlayer(ctx context.Context, rt *runtime, con *console, scr *screen, code, name string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := cards.NewPlayer(name, rt.mgr, rt.logger)
	p.OnChange = func() {
		st := p.State()
		scr.chat(st.Chat)
		hand := ""
		if len(st.Hand) > 0 {
			hand = "Bài của bạn: " + formatHand(st.Hand)
			if st.Score != nil {
				hand += " = " + st.Score.Label
			}
		}
		scr.changed("hand", hand)
		scr.changed("leader", leaderLine(st.Players, st.Leader))
	}

	err := rt.mgr.JoinRoom(ctx, code, session.PlayerHandlers{
		OnOpen:    p.Joined,
		OnMessage: p.HandleMessage,
		OnError: func(f *session.Failure) {
			scr.printf("⚠️  %s\n", f.Message)
			cancel()
		},
	})
	if err != nil {
		return err
	}
	scr.printf("Đã vào bàn %s.\n", code)

	con.handle("flip", "I: turn over your card I", func(args []string) error {
		pos, err := positions(args, 1)
		if err != nil {
			return err
		}
		return p.Flip(pos[0])
	})
	con.handle("table", "show the table", func([]string) error {
		st := p.State()
		scr.printf("%s", formatTable(st.Players, st.Leader))
		return nil
	})
	con.handle("say", "TEXT: send a chat message", func(args []string) error {
		p.SendChat(strings.Join(args, " "))
		return nil
	})
	return con.run(ctx)
}
