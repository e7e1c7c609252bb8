package lottery

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jason-s-yu/loto/internal/models"
	"github.com/jason-s-yu/loto/internal/protocol"
	"github.com/jason-s-yu/loto/internal/room"
	"github.com/sirupsen/logrus"
)

// HostLink is the player's view of the session.
type HostLink interface {
	SendToHost(msg protocol.Message)
}

// PlayerState is a copy of the player's view for rendering. Boards carry
// local marks only; everything else was confirmed by the host.
type PlayerState struct {
	Name       string
	Status     models.RoomStatus
	Called     []int
	Current    int
	Winner     string
	Rejections int
	Claiming   bool
	Chat       []models.ChatMessage
	Boards     []models.Board
}

// Player replays host messages into a local view and owns the player's
// private tickets.
type Player struct {
	OnChange func()

	mu     sync.Mutex
	send   HostLink
	logger *logrus.Logger
	name   string

	// confirmed by the host
	room       *room.Room
	caller     *Caller
	winner     string
	rejections int

	// local only
	rng      *rand.Rand
	boards   []models.Board
	claiming bool
}

// NewPlayer deals the player's tickets. They never leave this process
// except inside a claim.
func NewPlayer(name string, send HostLink, logger *logrus.Logger) *Player {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Player{
		send:   send,
		logger: logger,
		name:   room.NormalizeName(name),
		room:   room.New(0),
		caller: NewCaller(),
		rng:    rng,
		boards: GenerateBoards(rng),
	}
}

func (p *Player) emit() {
	if p.OnChange != nil {
		p.OnChange()
	}
}

func (p *Player) Name() string { return p.name }

// Joined announces the player once the host channel is open.
func (p *Player) Joined() {
	p.send.SendToHost(protocol.Join(p.name))
}

// HandleMessage applies one message from the host.
func (p *Player) HandleMessage(msg protocol.Message) {
	if !protocol.Allowed(msg.Type, models.RoleHost) {
		p.logger.WithField("type", msg.Type).Warn("lottery: dropping message the host may not send")
		return
	}

	defer p.emit()
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Type {
	case protocol.TagWelcome:
		if err := p.room.Restore(msg.GameState); err != nil {
			p.logger.Warnf("lottery: welcome: %v", err)
		}
		p.caller.Restore(msg.CalledNumbers)
	case protocol.TagStartGame:
		_ = p.room.Restore(models.StatusPlaying)
		p.claiming = false
		p.room.Chat.Append(room.System("Ván chơi bắt đầu! Chúc may mắn!"))
	case protocol.TagNumberDrawn:
		if !p.caller.Record(msg.Number) {
			p.logger.Debugf("lottery: duplicate or invalid number %d ignored", msg.Number)
		}
	case protocol.TagChat:
		if msg.Chat != nil && !p.room.Chat.Has(msg.Chat.ID) {
			p.room.Chat.Append(*msg.Chat)
		}
	case protocol.TagWin:
		p.winner = msg.WinnerName
		p.claiming = false
		p.room.Chat.Append(room.System(fmt.Sprintf("🏆 %s ĐÃ CHIẾN THẮNG! 🏆", msg.WinnerName)))
	case protocol.TagClaimRejected:
		p.rejections++
		p.claiming = false
		p.room.Chat.Append(room.System("⚠️ Host xác nhận vé chưa Kinh. Bạn có thể tiếp tục!"))
	case protocol.TagReset:
		_ = p.room.Restore(models.StatusPlaying)
		p.caller.Reset()
		p.winner = ""
		p.claiming = false
		clearMarks(p.boards)
		p.room.Chat.Clear()
		p.room.Chat.Append(room.System("🔔 Ván chơi mới đã bắt đầu!"))
	default:
		p.logger.WithField("type", msg.Type).Debug("lottery: ignoring message")
	}
}

// Mark toggles a local mark. The host never sees marks until a claim.
func (p *Player) Mark(board, row, col int) error {
	defer p.emit()
	p.mu.Lock()
	defer p.mu.Unlock()
	return toggleMark(p.boards, board, row, col)
}

// Claim calls "Kinh" on one board. The room hears about it either way; the
// board only goes to the host when a row is complete locally.
func (p *Player) Claim(board int) error {
	defer p.emit()
	p.mu.Lock()
	if board < 0 || board >= len(p.boards) {
		p.mu.Unlock()
		return fmt.Errorf("board %d: %w", board, ErrNoSuchCell)
	}
	if p.claiming {
		p.mu.Unlock()
		return ErrClaimPending
	}
	b := p.boards[board].Clone()
	won := CheckBoardWin(b) >= 0
	text := "Huhu tính kinh mà dò lại bị hụt... 😭"
	if won {
		text = "KINH RỒI BÀ CON ƠI!!! 🎉🎉🎉"
	}
	shout := room.NewChat(p.name, text, false)
	p.room.Chat.Append(shout)
	p.claiming = won
	p.mu.Unlock()

	p.send.SendToHost(protocol.Chat(shout))
	if !won {
		return ErrNoWinningRow
	}
	p.send.SendToHost(protocol.ClaimWin(models.Claim{PlayerName: p.name, Board: b}))
	return nil
}

// NewBoards swaps every ticket for a fresh set. Refused while a claim is
// with the host, since the host checks the board that was sent.
func (p *Player) NewBoards() error {
	defer p.emit()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.claiming {
		return ErrClaimPending
	}
	p.boards = GenerateBoards(p.rng)
	return nil
}

// SendChat shows the message locally and sends it to the host. The host's
// echo is recognised by ID and not shown twice.
func (p *Player) SendChat(text string) {
	msg := room.NewChat(p.name, text, false)
	if msg.Text == "" {
		return
	}
	p.mu.Lock()
	p.room.Chat.Append(msg)
	p.mu.Unlock()
	p.send.SendToHost(protocol.Chat(msg))
	p.emit()
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PlayerState{
		Name:       p.name,
		Status:     p.room.Status(),
		Called:     p.caller.History(),
		Winner:     p.winner,
		Rejections: p.rejections,
		Claiming:   p.claiming,
		Chat:       p.room.Chat.Messages(),
		Boards:     cloneBoards(p.boards),
	}
	st.Current, _ = p.caller.Current()
	return st
}
