// internal/cards/host_test.go
package cards

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/loto/internal/models"
	"github.com/jason-s-yu/loto/internal/protocol"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects outbound messages instead of sending them.
type mockBroadcaster struct {
	mu     sync.Mutex
	all    []protocol.Message
	peer   map[string][]protocol.Message
	toHost []protocol.Message
	self   string
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{peer: make(map[string][]protocol.Message), self: "me"}
}

func (m *mockBroadcaster) Broadcast(msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = append(m.all, msg)
}

func (m *mockBroadcaster) SendToPeer(peer string, msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peer[peer] = append(m.peer[peer], msg)
}

func (m *mockBroadcaster) SendToHost(msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toHost = append(m.toHost, msg)
}

func (m *mockBroadcaster) LocalID() string { return m.self }

func (m *mockBroadcaster) of(tag protocol.Tag) []protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []protocol.Message
	for _, msg := range m.all {
		if msg.Type == tag {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mockBroadcaster) last(tag protocol.Tag) *protocol.Message {
	msgs := m.of(tag)
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[len(msgs)-1]
}

func (m *mockBroadcaster) lastTo(peer string) *protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.peer[peer]
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[len(msgs)-1]
}

func (m *mockBroadcaster) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = nil
	m.peer = make(map[string][]protocol.Message)
	m.toHost = nil
}

func setupHost(t *testing.T, players ...string) (*Host, *mockBroadcaster) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	mb := newMockBroadcaster()
	h := NewHost("Cái", mb, logger)
	h.rng = rand.New(rand.NewSource(42))
	h.RevealDelay = 10 * time.Millisecond
	h.DealDelay = 10 * time.Millisecond
	t.Cleanup(h.Stop)
	for _, id := range players {
		h.HandleMessage(id, protocol.Join("Player "+id))
	}
	mb.clear()
	return h, mb
}

// rig replaces a dealt hand so tests can control scores.
func rig(h *Host, id string, cards []models.Card) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range cards {
		cards[i].Hidden = true
	}
	h.seats[id].hand = cards
}

func TestJoinBroadcastsSnapshot(t *testing.T) {
	h, mb := setupHost(t)
	h.HandleMessage("p1", protocol.Join("An"))

	snap := mb.last(protocol.TagCardWelcome)
	require.NotNil(t, snap)
	require.Len(t, snap.Players, 2)
	assert.Equal(t, HostID, snap.Players[0].ID)
	assert.Equal(t, "Cái", snap.Players[0].Name)
	assert.Equal(t, "An", snap.Players[1].Name)
	assert.Equal(t, models.StatusLobby, snap.GameState)
}

func TestRosterCap(t *testing.T) {
	ids := make([]string, MaxPlayers-1)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
	}
	h, mb := setupHost(t, ids...)
	require.Len(t, h.State().Players, MaxPlayers)

	h.HandleMessage("late", protocol.Join("Muộn"))
	assert.Len(t, h.State().Players, MaxPlayers)
	notice := mb.lastTo("late")
	require.NotNil(t, notice)
	require.Equal(t, protocol.TagChat, notice.Type)
	assert.Equal(t, "Phòng đã đầy (20/20)!", notice.Chat.Text)
	assert.True(t, notice.Chat.IsSystem)
	assert.Nil(t, mb.last(protocol.TagCardWelcome))

	// Already seated players can still rejoin.
	h.HandleMessage("p3", protocol.Join("Player p3"))
	assert.NotNil(t, mb.last(protocol.TagCardWelcome))
}

func TestDealIsPrivate(t *testing.T) {
	h, mb := setupHost(t, "p1", "p2")
	require.NoError(t, h.Deal())

	assert.Len(t, mb.of(protocol.TagStartGame), 1)
	for _, id := range []string{"p1", "p2"} {
		deal := mb.lastTo(id)
		require.NotNil(t, deal)
		require.Equal(t, protocol.TagCardDeal, deal.Type)
		require.Len(t, deal.Hands, 1, "each player only sees their own hand")
		hand := deal.Hands[id]
		require.Len(t, hand, HandSize)
		for _, c := range hand {
			assert.NotEmpty(t, c.Rank)
			assert.True(t, c.Hidden)
		}
	}
	assert.Nil(t, mb.lastTo(HostID))

	snap := mb.last(protocol.TagCardWelcome)
	require.NotNil(t, snap)
	assert.Equal(t, models.StatusPlaying, snap.GameState)
	for _, p := range snap.Players {
		require.Len(t, p.Hand, HandSize)
		for _, c := range p.Hand {
			assert.Equal(t, models.Card{Hidden: true}, c, "snapshot leaks %s's hand", p.ID)
		}
	}
}

func TestDealWithFullTableNeverShort(t *testing.T) {
	ids := make([]string, MaxPlayers-1)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
	}
	h, mb := setupHost(t, ids...)
	for round := 0; round < 5; round++ {
		require.NoError(t, h.Deal())
	}
	for _, id := range ids {
		assert.Len(t, mb.lastTo(id).Hands[id], HandSize)
	}
	assert.Len(t, h.State().Players[0].Hand, HandSize)
}

func TestHostFlipsStayPrivateUntilRevealed(t *testing.T) {
	h, mb := setupHost(t, "p1")
	require.NoError(t, h.Deal())
	rig(h, HostID, hand("A", "2", "3"))
	mb.clear()

	require.NoError(t, h.FlipHost(0))
	require.NoError(t, h.FlipHost(1))
	require.NoError(t, h.FlipHost(1))
	assert.Empty(t, mb.of(protocol.TagCardReveal))
	own := h.State().Players[0]
	assert.False(t, own.Hand[0].Hidden)
	assert.True(t, own.Hand[2].Hidden)

	require.NoError(t, h.FlipHost(2))
	rev := mb.last(protocol.TagCardReveal)
	require.NotNil(t, rev)
	assert.Equal(t, HostID, rev.PeerID)
	assert.Equal(t, HostID, h.State().Leader)
	res := mb.last(protocol.TagCardResult)
	require.NotNil(t, res)
	assert.Equal(t, HostID, res.WinnerID)

	assert.ErrorIs(t, h.FlipHost(5), ErrNoSuchCard)
}

func TestFlipBeforeDeal(t *testing.T) {
	h, _ := setupHost(t)
	assert.ErrorIs(t, h.FlipHost(0), ErrNotPlaying)
	assert.ErrorIs(t, h.RevealAll(), ErrNotPlaying)
}

func reveal(h *Host, id string) {
	h.mu.Lock()
	cards := cloneHand(h.seats[id].hand)
	h.mu.Unlock()
	for i := range cards {
		cards[i].Hidden = false
	}
	h.HandleMessage(id, protocol.CardReveal(id, cards))
}

func TestLeaderOnlyRebroadcastOnChange(t *testing.T) {
	h, mb := setupHost(t, "p1", "p2", "p3")
	require.NoError(t, h.Deal())
	rig(h, "p1", hand("2", "3", "K"))  // 5
	rig(h, "p2", hand("A", "K", "Q"))  // 1
	rig(h, "p3", hand("4", "5", "10")) // 9
	mb.clear()

	reveal(h, "p1")
	require.Len(t, mb.of(protocol.TagCardResult), 1)
	assert.Equal(t, "p1", h.State().Leader)

	reveal(h, "p2")
	assert.Len(t, mb.of(protocol.TagCardResult), 1, "lead unchanged, nothing new announced")

	reveal(h, "p3")
	results := mb.of(protocol.TagCardResult)
	require.Len(t, results, 2)
	assert.Equal(t, "p3", results[1].WinnerID)

	reveal(h, "p3")
	assert.Len(t, mb.of(protocol.TagCardResult), 2, "duplicate reveal ignored")
}

func TestJustRevealedTakesTie(t *testing.T) {
	h, mb := setupHost(t, "p1", "p2")
	require.NoError(t, h.Deal())
	rig(h, "p1", hand("3", "4", "K")) // 7
	rig(h, "p2", hand("2", "5", "Q")) // 7
	mb.clear()

	reveal(h, "p1")
	reveal(h, "p2")
	assert.Equal(t, "p2", h.State().Leader)
	assert.Equal(t, "p2", mb.last(protocol.TagCardResult).WinnerID)
}

func TestLastRevealAlwaysFinalizes(t *testing.T) {
	h, mb := setupHost(t, "p1")
	require.NoError(t, h.Deal())
	rig(h, HostID, hand("2", "2", "2"))
	rig(h, "p1", hand("A", "2", "K"))
	mb.clear()

	require.NoError(t, h.FlipHost(0))
	require.NoError(t, h.FlipHost(1))
	require.NoError(t, h.FlipHost(2))
	require.Len(t, mb.of(protocol.TagCardResult), 1)

	reveal(h, "p1")
	results := mb.of(protocol.TagCardResult)
	require.Len(t, results, 2, "all hands open, leader announced again")
	assert.Equal(t, HostID, results[1].WinnerID)
	chat := h.State().Chat
	assert.Equal(t, "🏆 Cái thắng với Sáp 2!", chat[len(chat)-1].Text)
}

func TestRevealScoresDealtHand(t *testing.T) {
	h, _ := setupHost(t, "p1")
	require.NoError(t, h.Deal())
	rig(h, "p1", hand("A", "2", "3"))

	h.HandleMessage("p1", protocol.CardReveal("p1", hand("K", "K", "K")))
	p := h.State().Players[1]
	require.True(t, p.Revealed)
	require.NotNil(t, p.Score)
	assert.Equal(t, 6, *p.Score)
	assert.Equal(t, "6 Nút", p.ScoreText)
}

func TestRevealFromUndealtPeerIgnored(t *testing.T) {
	h, mb := setupHost(t, "p1")
	require.NoError(t, h.Deal())
	mb.clear()
	h.HandleMessage("stranger", protocol.CardReveal("stranger", hand("A", "A", "A")))
	assert.Empty(t, mb.of(protocol.TagCardResult))
}

func TestRevealAllFinalizes(t *testing.T) {
	h, mb := setupHost(t, "p1", "p2")
	require.NoError(t, h.Deal())
	rig(h, HostID, hand("A", "K", "Q"))
	rig(h, "p1", hand("J", "Q", "K"))
	rig(h, "p2", hand("9", "9", "K"))
	mb.clear()

	require.NoError(t, h.RevealAll())
	assert.Len(t, mb.of(protocol.TagCardRevealAll), 1)
	assert.Equal(t, "p1", mb.last(protocol.TagCardResult).WinnerID)

	snap := mb.last(protocol.TagCardWelcome)
	require.NotNil(t, snap)
	for _, p := range snap.Players {
		assert.True(t, p.Revealed)
		require.NotNil(t, p.Score)
		for _, c := range p.Hand {
			assert.False(t, c.Hidden)
			assert.NotEmpty(t, c.Rank)
		}
	}
	assert.Equal(t, ScoreBaTay, *snap.Players[1].Score)
}

func TestBotModeCycles(t *testing.T) {
	h, mb := setupHost(t, "p1")
	require.NoError(t, h.SetAutoMode(true))
	require.Eventually(t, func() bool {
		return len(mb.of(protocol.TagStartGame)) >= 2 && len(mb.of(protocol.TagCardRevealAll)) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.SetAutoMode(false))
	assert.False(t, h.State().Auto)
	deals := len(mb.of(protocol.TagStartGame))
	reveals := len(mb.of(protocol.TagCardRevealAll))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, deals, len(mb.of(protocol.TagStartGame)))
	assert.Equal(t, reveals, len(mb.of(protocol.TagCardRevealAll)))
}

func TestBotModeResumesPendingHand(t *testing.T) {
	h, mb := setupHost(t, "p1")
	require.NoError(t, h.Deal())
	mb.clear()
	require.NoError(t, h.SetAutoMode(true))
	assert.Empty(t, mb.of(protocol.TagStartGame), "face-down hand is revealed before a new deal")
	require.Eventually(t, func() bool { return len(mb.of(protocol.TagCardRevealAll)) >= 1 }, time.Second, 5*time.Millisecond)
}

func TestBotModeAfterManualRevealsFinalizesOnce(t *testing.T) {
	h, mb := setupHost(t, "p1")
	h.RevealDelay = 200 * time.Millisecond
	h.DealDelay = 100 * time.Millisecond
	require.NoError(t, h.SetAutoMode(true))
	for i := 0; i < HandSize; i++ {
		require.NoError(t, h.FlipHost(i))
	}
	reveal(h, "p1")
	require.Len(t, mb.of(protocol.TagCardResult), 2, "lead change then the final announcement")
	mb.clear()

	require.Eventually(t, func() bool { return len(mb.of(protocol.TagStartGame)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, mb.of(protocol.TagCardRevealAll), "nothing left to force open")
	assert.Empty(t, mb.of(protocol.TagCardResult))

	wins := 0
	for _, c := range h.State().Chat {
		if strings.HasPrefix(c.Text, "🏆") {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestRevealAllAfterEveryHandOpen(t *testing.T) {
	h, mb := setupHost(t, "p1")
	require.NoError(t, h.Deal())
	for i := 0; i < HandSize; i++ {
		require.NoError(t, h.FlipHost(i))
	}
	reveal(h, "p1")
	mb.clear()

	require.NoError(t, h.RevealAll())
	assert.Empty(t, mb.of(protocol.TagCardRevealAll))
	assert.Empty(t, mb.of(protocol.TagCardResult))
}

func TestStopCancelsBotStep(t *testing.T) {
	h, mb := setupHost(t, "p1")
	require.NoError(t, h.SetAutoMode(true))
	h.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, mb.of(protocol.TagCardRevealAll))
}

func TestRejoinResendsHand(t *testing.T) {
	h, mb := setupHost(t, "p1")
	require.NoError(t, h.Deal())
	dealt := mb.lastTo("p1").Hands["p1"]
	h.PeerClosed("p1")
	assert.False(t, h.State().Players[1].Ready)

	mb.clear()
	h.HandleMessage("p1", protocol.Join("Player p1"))
	deal := mb.lastTo("p1")
	require.NotNil(t, deal)
	assert.Equal(t, protocol.TagCardDeal, deal.Type)
	assert.Equal(t, dealt, deal.Hands["p1"])
	assert.True(t, h.State().Players[1].Ready)
}

func TestHostRelaysPlayerChat(t *testing.T) {
	h, mb := setupHost(t, "p1")
	h.HandleMessage("p1", protocol.Chat(models.ChatMessage{ID: "c1", Text: " lật đi ", IsSystem: true}))

	msgs := mb.of(protocol.TagChat)
	require.Len(t, msgs, 1)
	out := msgs[0].Chat
	assert.Equal(t, "c1", out.ID)
	assert.Equal(t, "lật đi", out.Text)
	assert.Equal(t, "Player p1", out.Sender, "unsigned chat takes the seat name")
	assert.False(t, out.IsSystem)

	h.HandleMessage("p1", protocol.Chat(models.ChatMessage{ID: "c2", Text: "  "}))
	assert.Len(t, mb.of(protocol.TagChat), 1)
}

func TestHostSeatIDReserved(t *testing.T) {
	h, mb := setupHost(t)
	h.HandleMessage(HostID, protocol.Join("Impostor"))
	assert.Len(t, h.State().Players, 1)
	assert.Empty(t, mb.of(protocol.TagCardWelcome))
}
