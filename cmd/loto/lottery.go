package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/loto/internal/commentary"
	"github.com/jason-s-yu/loto/internal/invite"
	"github.com/jason-s-yu/loto/internal/lottery"
	"github.com/jason-s-yu/loto/internal/session"
)

func newAnnouncer(rt *runtime) *commentary.Announcer {
	var gen commentary.Generator
	if llm, err := commentary.NewLLM(rt.cfg.Commentary); err == nil {
		gen = llm
	} else {
		rt.logger.Infof("commentary: %v, using the phrase bank", err)
	}
	return commentary.NewAnnouncer(gen, rt.cfg.Commentary.Timeout, rt.logger)
}

func runLotteryHost(ctx context.Context, rt *runtime, con *console, scr *screen) error {
	host := lottery.NewHost(rt.mgr, newAnnouncer(rt), rt.logger)
	defer host.Stop()
	host.OnChange = func() {
		st := host.State()
		scr.chat(st.Chat)
		if st.Pending != nil {
			scr.changed("claim", fmt.Sprintf("%s báo Kinh với vé:\n%s(gõ accept hoặc reject)",
				st.Pending.Claim.PlayerName, formatBoard(0, st.Pending.Claim.Board)))
		} else {
			scr.changed("claim", "")
		}
	}
	host.OnAnnounce = func(a commentary.Announcement) {
		scr.printf("🎤 %s\n", a.Spoken)
	}

	code, err := rt.mgr.StartHosting(ctx, session.HostHandlers{
		OnMessage:    host.HandleMessage,
		OnPeerClosed: host.PeerClosed,
	})
	if err != nil {
		return err
	}
	rt.announceRoom(ctx, scr, invite.GameLottery, code)
	host.DealHostBoards()

	con.handle("start", "start the round", func([]string) error {
		return host.StartGame()
	})
	con.handle("draw", "call the next number", func([]string) error {
		n, err := host.DrawNumber()
		if err != nil {
			return err
		}
		scr.printf("🎱 %d\n", n)
		return nil
	})
	con.handle("auto", "toggle drawing a number every few seconds", func([]string) error {
		on := !host.State().Auto
		if err := host.SetAutoDraw(on); err != nil {
			return err
		}
		scr.printf("auto draw: %v\n", on)
		return nil
	})
	con.handle("accept", "accept the pending claim if its ticket checks out", func([]string) error {
		_, err := host.ResolveClaim(true)
		return err
	})
	con.handle("reject", "reject the pending claim", func([]string) error {
		_, err := host.ResolveClaim(false)
		return err
	})
	con.handle("boards", "show your own tickets", func([]string) error {
		scr.printf("%s", formatBoards(host.State().Boards))
		return nil
	})
	con.handle("mark", "B R C: toggle a cell on your own ticket", func(args []string) error {
		pos, err := positions(args, 3)
		if err != nil {
			return err
		}
		return host.MarkHostCell(pos[0], pos[1], pos[2])
	})
	con.handle("claim", "call Kinh on your own tickets", func([]string) error {
		_, err := host.ClaimHost()
		return err
	})
	con.handle("status", "show the room", func([]string) error {
		st := host.State()
		scr.printf("%s, số vừa gọi: %d\nĐã gọi: %s\n", st.Status, st.Current, formatCalled(st.Called))
		for _, p := range st.Players {
			away := ""
			if !p.Ready {
				away = " (vắng)"
			}
			scr.printf("  %s%s\n", p.Name, away)
		}
		return nil
	})
	con.handle("say", "TEXT: send a chat message", func(args []string) error {
		host.SendChat(strings.Join(args, " "))
		return nil
	})
	con.handle("reset", "start a new round", func([]string) error {
		return host.Reset()
	})
	return con.run(ctx)
}

func runLotteryPlayer(ctx context.Context, rt *runtime, con *console, scr *screen, code, name string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := lottery.NewPlayer(name, rt.mgr, rt.logger)
	p.OnChange = func() {
		st := p.State()
		scr.chat(st.Chat)
		if st.Current > 0 {
			scr.changed("number", fmt.Sprintf("🎱 %d", st.Current))
		} else {
			scr.changed("number", "")
		}
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
	scr.printf("Đã vào phòng %s.\n%s", code, formatBoards(p.State().Boards))

	con.handle("boards", "show your tickets", func([]string) error {
		scr.printf("%s", formatBoards(p.State().Boards))
		return nil
	})
	con.handle("mark", "B R C: toggle a cell", func(args []string) error {
		pos, err := positions(args, 3)
		if err != nil {
			return err
		}
		return p.Mark(pos[0], pos[1], pos[2])
	})
	con.handle("claim", "N: call Kinh with ticket N", func(args []string) error {
		pos, err := positions(args, 1)
		if err != nil {
			return err
		}
		if err := p.Claim(pos[0]); err != nil {
			return err
		}
		scr.printf("Đã gửi yêu cầu 'Kinh'! Chờ Host kiểm tra vé nhé.\n")
		return nil
	})
	con.handle("newboards", "swap your tickets for a fresh set", func([]string) error {
		if err := p.NewBoards(); err != nil {
			return err
		}
		scr.printf("%s", formatBoards(p.State().Boards))
		return nil
	})
	con.handle("status", "show the called numbers", func([]string) error {
		st := p.State()
		scr.printf("%s, số vừa gọi: %d\nĐã gọi: %s\n", st.Status, st.Current, formatCalled(st.Called))
		return nil
	})
	con.handle("say", "TEXT: send a chat message", func(args []string) error {
		p.SendChat(strings.Join(args, " "))
		return nil
	})
	return con.run(ctx)
}
