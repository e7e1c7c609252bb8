package cards

import (
	"fmt"
	"sync"

	"github.com/jason-s-yu/loto/internal/models"
	"github.com/jason-s-yu/loto/internal/protocol"
	"github.com/jason-s-yu/loto/internal/room"
	"github.com/sirupsen/logrus"
)

// HostLink is the player's view of the session.
type HostLink interface {
	SendToHost(msg protocol.Message)
	LocalID() string
}

// PlayerState is a copy of the player's view. Hand is the local hand with
// this player's own flips; Players is the last host snapshot with the local
// hand substituted while it is still unrevealed.
type PlayerState struct {
	Name    string
	Self    string
	Status  models.RoomStatus
	Players []models.CardPlayer
	Leader  string
	Hand    []models.Card
	Score   *Score
	Chat    []models.ChatMessage
}

type Player struct {
	OnChange func()

	mu     sync.Mutex
	send   HostLink
	logger *logrus.Logger
	name   string

	// confirmed by the host
	room    *room.Room
	players []models.CardPlayer
	leader  string

	// local only
	hand     []models.Card
	reported bool
}

func NewPlayer(name string, send HostLink, logger *logrus.Logger) *Player {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Player{
		send:   send,
		logger: logger,
		name:   room.NormalizeName(name),
		room:   room.New(0),
	}
}

func (p *Player) emit() {
	if p.OnChange != nil {
		p.OnChange()
	}
}

// Joined announces the player once the host channel is open.
func (p *Player) Joined() {
	p.send.SendToHost(protocol.Join(p.name))
}

// HandleMessage applies one message from the host.
func (p *Player) HandleMessage(msg protocol.Message) {
	if !protocol.Allowed(msg.Type, models.RoleHost) {
		p.logger.WithField("type", msg.Type).Warn("cards: dropping message the host may not send")
		return
	}
	self := p.send.LocalID()

	defer p.emit()
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Type {
	case protocol.TagCardWelcome:
		if err := p.room.Restore(msg.GameState); err != nil {
			p.logger.Warnf("cards: snapshot: %v", err)
		}
		p.players = make([]models.CardPlayer, len(msg.Players))
		for i, cp := range msg.Players {
			p.players[i] = cp.Clone()
			if cp.ID == self && cp.Revealed {
				p.hand = cloneHand(cp.Hand)
				p.reported = true
			}
		}
	case protocol.TagStartGame:
		_ = p.room.Restore(models.StatusPlaying)
		p.leader = ""
		p.hand = nil
		p.reported = false
	case protocol.TagCardDeal:
		hand, ok := msg.Hands[self]
		if !ok {
			p.logger.Warn("cards: deal carried no hand for us")
			return
		}
		p.hand = make([]models.Card, len(hand))
		for i, c := range hand {
			c.Hidden = true
			p.hand[i] = c
		}
		p.reported = false
	case protocol.TagCardReveal:
		for i := range p.players {
			if p.players[i].ID != msg.PeerID {
				continue
			}
			cp := &p.players[i]
			cp.Hand = cloneHand(msg.Hand)
			cp.Revealed = true
			if s, ok := Evaluate(msg.Hand); ok {
				v := s.Value
				cp.Score = &v
				cp.ScoreText = s.Label
			}
		}
	case protocol.TagCardRevealAll:
		for i := range p.hand {
			p.hand[i].Hidden = false
		}
		p.reported = len(p.hand) > 0
	case protocol.TagCardResult:
		p.leader = msg.WinnerID
	case protocol.TagChat:
		if msg.Chat != nil && !p.room.Chat.Has(msg.Chat.ID) {
			p.room.Chat.Append(*msg.Chat)
		}
	case protocol.TagReset:
		_ = p.room.Restore(models.StatusPlaying)
		p.leader = ""
		p.hand = nil
		p.reported = false
	default:
		p.logger.WithField("type", msg.Type).Debug("cards: ignoring message")
	}
}

// Flip opens one card locally. Opening the last card reports the whole hand
// to the host, which does the scoring.
func (p *Player) Flip(i int) error {
	p.mu.Lock()
	if !p.room.Playing() {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	if len(p.hand) == 0 {
		p.mu.Unlock()
		return ErrNoHand
	}
	if i < 0 || i >= len(p.hand) {
		p.mu.Unlock()
		return fmt.Errorf("card %d: %w", i, ErrNoSuchCard)
	}
	if p.reported || !p.hand[i].Hidden {
		p.mu.Unlock()
		return nil
	}
	p.hand[i].Hidden = false
	open := true
	for _, c := range p.hand {
		open = open && !c.Hidden
	}
	var hand []models.Card
	if open {
		p.reported = true
		hand = cloneHand(p.hand)
	}
	p.mu.Unlock()

	if open {
		p.send.SendToHost(protocol.CardReveal(p.send.LocalID(), hand))
	}
	p.emit()
	return nil
}

// SendChat shows the message locally and sends it to the host.
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
	self := p.send.LocalID()
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PlayerState{
		Name:   p.name,
		Self:   self,
		Status: p.room.Status(),
		Leader: p.leader,
		Hand:   cloneHand(p.hand),
		Chat:   p.room.Chat.Messages(),
	}
	for _, cp := range p.players {
		cp = cp.Clone()
		if cp.ID == self && !cp.Revealed && len(p.hand) > 0 {
			cp.Hand = cloneHand(p.hand)
		}
		st.Players = append(st.Players, cp)
	}
	open := len(p.hand) > 0
	for _, c := range p.hand {
		open = open && !c.Hidden
	}
	if open {
		if s, ok := Evaluate(p.hand); ok {
			st.Score = &s
		}
	}
	return st
}
