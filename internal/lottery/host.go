// internal/lottery/host.go
package lottery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jason-s-yu/loto/internal/commentary"
	"github.com/jason-s-yu/loto/internal/models"
	"github.com/jason-s-yu/loto/internal/protocol"
	"github.com/jason-s-yu/loto/internal/room"
	"github.com/sirupsen/logrus"
)

// DefaultAutoInterval is the pause between automatic draws.
const DefaultAutoInterval = 5 * time.Second

// Sender is the host's view of the session.
type Sender interface {
	Broadcast(msg protocol.Message)
	SendToPeer(peer string, msg protocol.Message)
}

// PendingClaim is a claim waiting for the host's verdict.
type PendingClaim struct {
	PeerID string
	Claim  models.Claim
	At     time.Time
}

// HostState is a copy of the host's view for rendering.
type HostState struct {
	Status       models.RoomStatus
	Called       []int
	Current      int
	Winner       string
	Pending      *PendingClaim
	Players      []models.PlayerRecord
	Chat         []models.ChatMessage
	Auto         bool
	Boards       []models.Board
	LastAnnounce *commentary.Announcement
}

// Host is the authoritative lottery reconciler. Inbound messages and local
// actions may arrive on different goroutines; every mutation goes through mu.
type Host struct {
	AutoInterval time.Duration
	OnChange     func()
	OnAnnounce   func(commentary.Announcement)

	mu        sync.Mutex
	send      Sender
	announcer *commentary.Announcer
	logger    *logrus.Logger
	rng       *rand.Rand

	room    *room.Room
	caller  *Caller
	pending *PendingClaim
	winner  string
	boards  []models.Board
	last    *commentary.Announcement

	auto      bool
	autoTimer *time.Timer
	autoSeq   uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHost builds a lobby-state host. announcer may be nil to skip commentary.
func NewHost(send Sender, announcer *commentary.Announcer, logger *logrus.Logger) *Host {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		AutoInterval: DefaultAutoInterval,
		send:         send,
		announcer:    announcer,
		logger:       logger,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		room:         room.New(0),
		caller:       NewCaller(),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (h *Host) emit() {
	if h.OnChange != nil {
		h.OnChange()
	}
}

// HandleMessage applies one inbound player message.
func (h *Host) HandleMessage(from string, msg protocol.Message) {
	log := h.logger.WithFields(logrus.Fields{"peer": from, "type": msg.Type})
	if !protocol.Allowed(msg.Type, models.RolePlayer) {
		log.Warn("lottery: dropping message players may not send")
		return
	}

	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()

	if protocol.HostRelays(msg.Type) {
		h.relayChat(from, msg.Chat)
		return
	}
	switch msg.Type {
	case protocol.TagJoin:
		h.join(from, msg.Name)
	case protocol.TagClaimWin:
		h.claim(from, msg.Claim)
	default:
		log.Debug("lottery: ignoring message")
	}
}

// PeerClosed keeps the player listed but marks them away.
func (h *Host) PeerClosed(from string) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.room.Roster.SetReady(from, false) {
		return
	}
	rec, _ := h.room.Roster.Get(from)
	h.logger.WithField("peer", from).Infof("lottery: %s left", rec.Name)
	h.room.Chat.Append(room.System(fmt.Sprintf("%s đã rời phòng.", rec.Name)))
}

func (h *Host) join(from, name string) {
	added, err := h.room.Roster.Add(models.PlayerRecord{ID: from, Name: name, Ready: true})
	if err != nil {
		h.logger.WithField("peer", from).Warnf("lottery: join refused: %v", err)
		return
	}
	rec, _ := h.room.Roster.Get(from)
	if added {
		h.room.Chat.Append(room.System(fmt.Sprintf("%s đã vào phòng!", rec.Name)))
	} else {
		h.room.Roster.SetReady(from, true)
	}
	h.send.SendToPeer(from, protocol.Welcome(h.room.Status(), h.caller.History()))
}

func (h *Host) relayChat(from string, in *models.ChatMessage) {
	if in == nil {
		return
	}
	var fallback string
	if rec, ok := h.room.Roster.Get(from); ok {
		fallback = rec.Name
	}
	out, ok := room.Relayed(*in, fallback)
	if !ok {
		return
	}
	h.room.Chat.Append(out)
	h.send.Broadcast(protocol.Chat(out))
}

func (h *Host) claim(from string, c *models.Claim) {
	if c == nil {
		return
	}
	if !h.room.Playing() {
		h.logger.WithField("peer", from).Warn("lottery: claim outside a round")
		return
	}
	claim := models.Claim{PlayerName: room.NormalizeName(c.PlayerName), Board: c.Board.Clone()}
	if h.pending != nil {
		h.logger.Infof("lottery: claim by %s replaces pending claim by %s", claim.PlayerName, h.pending.Claim.PlayerName)
	}
	h.pending = &PendingClaim{PeerID: from, Claim: claim, At: time.Now()}

	h.room.Chat.Append(room.System(fmt.Sprintf("🔔 %s ĐANG KINH! CHỜ KIỂM TRA...", claim.PlayerName)))
	h.send.Broadcast(protocol.Chat(room.System(fmt.Sprintf("🔔 %s đang Kinh! Host đang kiểm tra vé...", claim.PlayerName))))
}

// ResolveClaim settles the pending claim. An accepted claim only wins if its
// board verifies against the numbers actually called; otherwise the claimant
// is told privately and play continues.
func (h *Host) ResolveClaim(accept bool) (bool, error) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.pending
	if p == nil {
		return false, ErrNoPendingClaim
	}
	h.pending = nil
	name := p.Claim.PlayerName

	if accept {
		if VerifyClaim(p.Claim.Board, h.caller.Has) >= 0 {
			h.declareWinnerLocked(name)
			return true, nil
		}
		h.logger.WithField("peer", p.PeerID).Warnf("lottery: claim by %s does not verify, rejecting", name)
	}
	h.hostChatLocked(fmt.Sprintf("Vé của %s chưa hợp lệ. Tiếp tục chơi nhé!", name))
	h.send.SendToPeer(p.PeerID, protocol.ClaimRejected())
	return false, nil
}

func (h *Host) declareWinnerLocked(name string) {
	h.winner = name
	h.stopAutoLocked()
	h.room.Chat.Append(room.System(fmt.Sprintf("🏆 CHÚC MỪNG %s ĐÃ CHIẾN THẮNG! 🏆", name)))
	h.send.Broadcast(protocol.Win(name))
}

// StartGame opens the round.
func (h *Host) StartGame() error {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.room.Start(); err != nil {
		return err
	}
	h.room.Chat.Append(room.System("🔔 Host đã bắt đầu ván chơi!"))
	h.send.Broadcast(protocol.StartGame())
	return nil
}

// DrawNumber calls the next number and starts its announcement.
func (h *Host) DrawNumber() (int, error) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.drawLocked()
}

func (h *Host) drawLocked() (int, error) {
	if !h.room.Playing() {
		return 0, ErrNotPlaying
	}
	n, err := h.caller.Draw(h.rng)
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			h.stopAutoLocked()
			h.room.Chat.Append(room.System("Đã gọi hết số!"))
		}
		return 0, err
	}
	h.logger.WithField("number", n).Debug("lottery: drew number")
	h.send.Broadcast(protocol.NumberDrawn(n))
	h.announceLocked(n)
	return n, nil
}

func (h *Host) announceLocked(n int) {
	if h.announcer == nil {
		return
	}
	ctx := h.ctx
	go func() {
		a := h.announcer.Announce(ctx, n)
		if ctx.Err() != nil {
			return
		}
		h.mu.Lock()
		h.last = &a
		cb := h.OnAnnounce
		h.mu.Unlock()
		if cb != nil {
			cb(a)
		}
	}()
}

// Reset starts a new round: history, chat, claim and winner are cleared and
// the room stays Playing.
func (h *Host) Reset() error {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.room.Reset(); err != nil {
		return err
	}
	h.stopAutoLocked()
	h.caller.Reset()
	h.pending = nil
	h.winner = ""
	h.last = nil
	clearMarks(h.boards)
	h.room.Chat.Clear()
	h.room.Chat.Append(room.System("🔔 Ván chơi mới đã bắt đầu!"))
	h.send.Broadcast(protocol.Reset())
	return nil
}

// SendChat posts as the host and broadcasts.
func (h *Host) SendChat(text string) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hostChatLocked(text)
}

func (h *Host) hostChatLocked(text string) {
	msg := room.NewChat(room.HostSender, text, false)
	if msg.Text == "" {
		return
	}
	h.room.Chat.Append(msg)
	h.send.Broadcast(protocol.Chat(msg))
}

// DealHostBoards gives the host a fresh set of tickets to play along.
func (h *Host) DealHostBoards() []models.Board {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.boards = GenerateBoards(h.rng)
	return cloneBoards(h.boards)
}

// MarkHostCell toggles a mark on the host's own ticket.
func (h *Host) MarkHostCell(board, row, col int) error {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	return toggleMark(h.boards, board, row, col)
}

// ClaimHost lets the host call "Kinh" on its own tickets.
func (h *Host) ClaimHost() (bool, error) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.room.Playing() {
		return false, ErrNotPlaying
	}
	for _, b := range h.boards {
		if CheckBoardWin(b) >= 0 {
			h.hostChatLocked("HOST KINH RỒI BÀ CON ƠI!!! 🎉🎉🎉")
			h.declareWinnerLocked(room.HostSender)
			return true, nil
		}
	}
	h.hostChatLocked("Host tính kinh mà dò lại bị hụt... 😅")
	return false, nil
}

// SetAutoDraw toggles unattended drawing every AutoInterval.
func (h *Host) SetAutoDraw(on bool) error {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if !on {
		h.stopAutoLocked()
		return nil
	}
	if h.auto {
		return nil
	}
	if !h.room.Playing() {
		return ErrNotPlaying
	}
	if h.caller.Len() >= TotalNumbers {
		return ErrExhausted
	}
	h.auto = true
	h.scheduleAutoLocked()
	return nil
}

func (h *Host) scheduleAutoLocked() {
	h.autoSeq++
	seq := h.autoSeq
	h.autoTimer = time.AfterFunc(h.AutoInterval, func() { h.autoTick(seq) })
}

func (h *Host) autoTick(seq uint64) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.auto || seq != h.autoSeq {
		h.logger.Debugf("lottery: stale auto-draw %d ignored", seq)
		return
	}
	if _, err := h.drawLocked(); err != nil {
		h.logger.Infof("lottery: auto-draw stopped: %v", err)
		h.stopAutoLocked()
		return
	}
	h.scheduleAutoLocked()
}

func (h *Host) stopAutoLocked() {
	h.auto = false
	h.autoSeq++
	if h.autoTimer != nil {
		h.autoTimer.Stop()
		h.autoTimer = nil
	}
}

// Stop cancels auto-draw and in-flight announcements. Call on room exit.
func (h *Host) Stop() {
	h.mu.Lock()
	h.stopAutoLocked()
	h.mu.Unlock()
	h.cancel()
}

// State returns a snapshot safe to hold after the call.
func (h *Host) State() HostState {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := HostState{
		Status:  h.room.Status(),
		Called:  h.caller.History(),
		Winner:  h.winner,
		Players: h.room.Roster.List(),
		Chat:    h.room.Chat.Messages(),
		Auto:    h.auto,
		Boards:  cloneBoards(h.boards),
	}
	st.Current, _ = h.caller.Current()
	if h.pending != nil {
		p := *h.pending
		p.Claim.Board = p.Claim.Board.Clone()
		st.Pending = &p
	}
	if h.last != nil {
		a := *h.last
		st.LastAnnounce = &a
	}
	return st
}
