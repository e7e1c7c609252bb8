// internal/cards/host.go
package cards

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jason-s-yu/loto/internal/models"
	"github.com/jason-s-yu/loto/internal/protocol"
	"github.com/jason-s-yu/loto/internal/room"
	"github.com/sirupsen/logrus"
)

const (
	MaxPlayers = 20
	// HostID is the host's seat. The host never appears under its session identity.
	HostID = "host"

	DefaultRevealDelay = 3 * time.Second
	DefaultDealDelay   = 5 * time.Second

	dealerSender = "Dealer"
)

var (
	ErrNotPlaying = errors.New("no hand in progress")
	ErrNoPlayers  = errors.New("no players to deal to")
	ErrNoHand     = errors.New("no hand dealt")
	ErrNoSuchCard = errors.New("no such card")
)

// Sender is the host's view of the session.
type Sender interface {
	Broadcast(msg protocol.Message)
	SendToPeer(peer string, msg protocol.Message)
}

type seat struct {
	hand     []models.Card
	revealed bool
	score    Score
	seq      int
}

// HostState is a copy of the host's view. Other players' hands are masked
// until revealed; the host's own hand is shown as flipped so far.
type HostState struct {
	Status  models.RoomStatus
	Players []models.CardPlayer
	Leader  string
	Chat    []models.ChatMessage
	Auto    bool
}

type step int

const (
	stepDeal step = iota
	stepReveal
)

func (s step) String() string {
	if s == stepDeal {
		return "deal"
	}
	return "reveal"
}

// Host deals, collects reveals and scores every hand. It is the only place
// scores are computed.
type Host struct {
	RevealDelay time.Duration
	DealDelay   time.Duration
	OnChange    func()

	mu     sync.Mutex
	send   Sender
	logger *logrus.Logger
	rng    *rand.Rand

	room   *room.Room
	seats  map[string]*seat
	leader string
	seq    int

	auto     bool
	timer    *time.Timer
	timerSeq uint64
}

// NewHost seats the host under HostID with the given display name.
func NewHost(name string, send Sender, logger *logrus.Logger) *Host {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := room.New(MaxPlayers)
	_, _ = r.Roster.Add(models.PlayerRecord{ID: HostID, Name: name, Ready: true})
	return &Host{
		RevealDelay: DefaultRevealDelay,
		DealDelay:   DefaultDealDelay,
		send:        send,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		room:        r,
		seats:       make(map[string]*seat),
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
		log.Warn("cards: dropping message players may not send")
		return
	}
	if from == HostID {
		log.Warn("cards: peer is using the host seat id")
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
	case protocol.TagCardReveal:
		h.playerReveal(from, msg.Hand)
	default:
		log.Debug("cards: ignoring message")
	}
}

// relayChat stamps a player's chat with their seat name and shares it.
func (h *Host) relayChat(from string, in *models.ChatMessage) {
	if in == nil {
		return
	}
	var fallback string
	if rec, ok := h.room.Roster.Get(from); ok {
		fallback = rec.Name
	}
	if out, ok := room.Relayed(*in, fallback); ok {
		h.room.Chat.Append(out)
		h.send.Broadcast(protocol.Chat(out))
	}
}

func (h *Host) join(from, name string) {
	added, err := h.room.Roster.Add(models.PlayerRecord{ID: from, Name: name, Ready: true})
	if errors.Is(err, room.ErrRosterFull) {
		h.logger.WithField("peer", from).Info("cards: table full, join refused")
		notice := room.System(fmt.Sprintf("Phòng đã đầy (%d/%d)!", h.room.Roster.Len(), MaxPlayers))
		h.send.SendToPeer(from, protocol.Chat(notice))
		return
	}
	rec, _ := h.room.Roster.Get(from)
	if added {
		h.room.Chat.Append(room.System(fmt.Sprintf("%s đã vào bàn!", rec.Name)))
	} else {
		h.room.Roster.SetReady(from, true)
		if s := h.seats[from]; s != nil && !s.revealed {
			h.send.SendToPeer(from, protocol.CardDeal(from, cloneHand(s.hand)))
		}
	}
	h.broadcastSnapshotLocked()
	if h.leader != "" {
		h.send.SendToPeer(from, protocol.CardResult(h.leader))
	}
}

// PeerClosed keeps the seat but marks the player away.
func (h *Host) PeerClosed(from string) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.room.Roster.SetReady(from, false) {
		return
	}
	rec, _ := h.room.Roster.Get(from)
	h.logger.WithField("peer", from).Infof("cards: %s left the table", rec.Name)
	h.room.Chat.Append(room.System(fmt.Sprintf("%s đã rời bàn.", rec.Name)))
	h.broadcastSnapshotLocked()
}

func (h *Host) playerReveal(from string, reported []models.Card) {
	log := h.logger.WithField("peer", from)
	if !h.room.Playing() {
		log.Warn("cards: reveal outside a hand")
		return
	}
	s := h.seats[from]
	if s == nil {
		log.Warn("cards: reveal from a player who was not dealt in")
		return
	}
	if s.revealed {
		return
	}
	if !sameCards(s.hand, reported) {
		log.Warnf("cards: reported hand %v differs from dealt, scoring dealt hand", reported)
	}
	h.revealLocked(s)
	h.afterRevealLocked(from, s)
}

// Deal starts a new hand for everyone seated, the host included.
func (h *Host) Deal() error {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dealLocked()
}

func (h *Host) dealLocked() error {
	recs := h.room.Roster.List()
	if len(recs) == 0 {
		return ErrNoPlayers
	}
	if err := h.room.Start(); err != nil {
		return err
	}
	h.leader = ""
	h.seq = 0
	h.seats = make(map[string]*seat, len(recs))

	h.send.Broadcast(protocol.StartGame())
	dealer := NewDealer(h.rng)
	for _, rec := range recs {
		hand := dealer.Hand()
		h.seats[rec.ID] = &seat{hand: hand}
		if rec.ID != HostID {
			h.send.SendToPeer(rec.ID, protocol.CardDeal(rec.ID, cloneHand(hand)))
		}
	}
	h.broadcastSnapshotLocked()

	text := "Đã chia bài! Mời nặn bài."
	if h.auto {
		text = "Bot đã chia bài! Đang tự động lật..."
		h.scheduleLocked(h.RevealDelay, stepReveal)
	}
	h.room.Chat.Append(room.NewChat(dealerSender, text, true))
	h.logger.Debugf("cards: dealt %d hands, %d cards left in the shoe", len(recs), dealer.Remaining())
	return nil
}

// FlipHost turns one of the host's own cards face up. The third flip
// reveals and scores the hand.
func (h *Host) FlipHost(i int) error {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.room.Playing() {
		return ErrNotPlaying
	}
	s := h.seats[HostID]
	if s == nil {
		return ErrNoHand
	}
	if i < 0 || i >= len(s.hand) {
		return fmt.Errorf("card %d: %w", i, ErrNoSuchCard)
	}
	if s.revealed || !s.hand[i].Hidden {
		return nil
	}
	s.hand[i].Hidden = false
	for _, c := range s.hand {
		if c.Hidden {
			return nil
		}
	}
	h.revealLocked(s)
	h.afterRevealLocked(HostID, s)
	return nil
}

// RevealAll force-opens every hand and announces the final leader.
func (h *Host) RevealAll() error {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revealAllLocked()
}

func (h *Host) revealAllLocked() error {
	if !h.room.Playing() {
		return ErrNotPlaying
	}
	if len(h.seats) == 0 {
		return ErrNoHand
	}
	if h.allRevealedLocked() {
		// the last reveal already announced the winner
		return nil
	}
	for _, rec := range h.room.Roster.List() {
		if s := h.seats[rec.ID]; s != nil && !s.revealed {
			h.revealLocked(s)
		}
	}
	h.broadcastSnapshotLocked()
	h.send.Broadcast(protocol.CardRevealAll())
	h.finalizeLocked("")

	if h.auto {
		h.scheduleLocked(h.DealDelay, stepDeal)
	}
	return nil
}

func (h *Host) revealLocked(s *seat) {
	for i := range s.hand {
		s.hand[i].Hidden = false
	}
	s.revealed = true
	s.score, _ = Evaluate(s.hand)
	h.seq++
	s.seq = h.seq
}

// afterRevealLocked publishes one reveal and moves the lead if it changed.
func (h *Host) afterRevealLocked(id string, s *seat) {
	h.broadcastSnapshotLocked()
	h.send.Broadcast(protocol.CardReveal(id, cloneHand(s.hand)))

	if h.allRevealedLocked() {
		h.finalizeLocked(id)
		if h.auto {
			h.scheduleLocked(h.DealDelay, stepDeal)
		}
		return
	}
	leader, ok := Leader(h.standingsLocked(), id)
	if !ok || leader == h.leader {
		return
	}
	h.leader = leader
	if leader == id {
		rec, _ := h.room.Roster.Get(id)
		h.room.Chat.Append(room.System(fmt.Sprintf("🔥 %s vừa lật bài: %s! (Dẫn đầu)", rec.Name, s.score.Label)))
	}
	h.send.Broadcast(protocol.CardResult(leader))
}

// finalizeLocked always announces, even when the leader is unchanged.
func (h *Host) finalizeLocked(justRevealed string) {
	leader, ok := Leader(h.standingsLocked(), justRevealed)
	if !ok {
		return
	}
	h.leader = leader
	rec, _ := h.room.Roster.Get(leader)
	h.room.Chat.Append(room.System(fmt.Sprintf("🏆 %s thắng với %s!", rec.Name, h.seats[leader].score.Label)))
	h.send.Broadcast(protocol.CardResult(leader))
}

func (h *Host) allRevealedLocked() bool {
	for _, s := range h.seats {
		if !s.revealed {
			return false
		}
	}
	return true
}

func (h *Host) standingsLocked() []Standing {
	out := make([]Standing, 0, len(h.seats))
	for id, s := range h.seats {
		if s.revealed {
			out = append(out, Standing{ID: id, Score: s.score.Value, Seq: s.seq})
		}
	}
	return out
}

// SetAutoMode toggles the bot dealer. Turning it on deals right away unless a
// hand is still face down, in which case the reveal is scheduled instead.
func (h *Host) SetAutoMode(on bool) error {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if !on {
		h.auto = false
		h.cancelStepLocked()
		return nil
	}
	if h.auto {
		return nil
	}
	h.auto = true
	if h.room.Playing() && len(h.seats) > 0 && !h.allRevealedLocked() {
		h.scheduleLocked(h.RevealDelay, stepReveal)
		return nil
	}
	return h.dealLocked()
}

func (h *Host) scheduleLocked(d time.Duration, st step) {
	h.cancelStepLocked()
	seq := h.timerSeq
	h.timer = time.AfterFunc(d, func() { h.runStep(seq, st) })
}

func (h *Host) cancelStepLocked() {
	h.timerSeq++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *Host) runStep(seq uint64, st step) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.auto || seq != h.timerSeq {
		h.logger.Debugf("cards: stale %s step ignored", st)
		return
	}
	h.timer = nil
	var err error
	switch st {
	case stepDeal:
		err = h.dealLocked()
	case stepReveal:
		err = h.revealAllLocked()
	}
	if err != nil {
		h.logger.Warnf("cards: bot %s failed, stopping: %v", st, err)
		h.auto = false
	}
}

// Stop cancels any scheduled bot step. Call on room exit.
func (h *Host) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.auto = false
	h.cancelStepLocked()
}

// SendChat posts under the host's display name.
func (h *Host) SendChat(text string) {
	defer h.emit()
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, _ := h.room.Roster.Get(HostID)
	msg := room.NewChat(rec.Name, text, false)
	if msg.Text == "" {
		return
	}
	h.room.Chat.Append(msg)
	h.send.Broadcast(protocol.Chat(msg))
}

func (h *Host) broadcastSnapshotLocked() {
	h.send.Broadcast(protocol.CardWelcome(h.playersLocked(""), h.room.Status()))
}

// playersLocked renders the roster. Unrevealed hands are fully masked except
// for self, whose cards are returned as they lie.
func (h *Host) playersLocked(self string) []models.CardPlayer {
	recs := h.room.Roster.List()
	out := make([]models.CardPlayer, 0, len(recs))
	for _, rec := range recs {
		p := models.CardPlayer{PlayerRecord: rec, Hand: []models.Card{}}
		if s := h.seats[rec.ID]; s != nil {
			p.Revealed = s.revealed
			for _, c := range s.hand {
				if !s.revealed && rec.ID != self {
					c = models.Card{Hidden: true}
				}
				p.Hand = append(p.Hand, c)
			}
			if s.revealed {
				v := s.score.Value
				p.Score = &v
				p.ScoreText = s.score.Label
			}
		}
		out = append(out, p)
	}
	return out
}

func (h *Host) State() HostState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HostState{
		Status:  h.room.Status(),
		Players: h.playersLocked(HostID),
		Leader:  h.leader,
		Chat:    h.room.Chat.Messages(),
		Auto:    h.auto,
	}
}

func cloneHand(hand []models.Card) []models.Card {
	return append([]models.Card(nil), hand...)
}

func sameCards(a, b []models.Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Suit != b[i].Suit || a[i].Rank != b[i].Rank {
			return false
		}
	}
	return true
}
