// internal/lottery/host_test.go
package lottery

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/loto/internal/commentary"
	"github.com/jason-s-yu/loto/internal/models"
	"github.com/jason-s-yu/loto/internal/protocol"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSender collects outbound messages instead of sending them.
type mockSender struct {
	mu     sync.Mutex
	all    []protocol.Message
	peer   map[string][]protocol.Message
	toHost []protocol.Message
}

func newMockSender() *mockSender {
	return &mockSender{peer: make(map[string][]protocol.Message)}
}

func (m *mockSender) Broadcast(msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = append(m.all, msg)
}

func (m *mockSender) SendToPeer(peer string, msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peer[peer] = append(m.peer[peer], msg)
}

func (m *mockSender) SendToHost(msg protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toHost = append(m.toHost, msg)
}

func (m *mockSender) broadcasts() []protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.Message(nil), m.all...)
}

func (m *mockSender) lastBroadcast() *protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.all) == 0 {
		return nil
	}
	return &m.all[len(m.all)-1]
}

func (m *mockSender) lastTo(peer string) *protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.peer[peer]
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[len(msgs)-1]
}

func (m *mockSender) count(tag protocol.Tag) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.all {
		if msg.Type == tag {
			n++
		}
	}
	return n
}

func (m *mockSender) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = nil
	m.peer = make(map[string][]protocol.Message)
	m.toHost = nil
}

func setupHost(t *testing.T) (*Host, *mockSender) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	ms := newMockSender()
	h := NewHost(ms, nil, logger)
	h.rng = rand.New(rand.NewSource(3))
	h.AutoInterval = 10 * time.Millisecond
	t.Cleanup(h.Stop)
	return h, ms
}

func playingHost(t *testing.T) (*Host, *mockSender) {
	t.Helper()
	h, ms := setupHost(t)
	h.HandleMessage("p1", protocol.Join("An"))
	h.HandleMessage("p2", protocol.Join("Bình"))
	require.NoError(t, h.StartGame())
	ms.clear()
	return h, ms
}

func TestHostJoinWelcomes(t *testing.T) {
	h, ms := setupHost(t)
	h.HandleMessage("p1", protocol.Join("  An  "))

	st := h.State()
	require.Len(t, st.Players, 1)
	assert.Equal(t, models.PlayerRecord{ID: "p1", Name: "An", Ready: true}, st.Players[0])
	assert.Equal(t, "An đã vào phòng!", st.Chat[len(st.Chat)-1].Text)

	welcome := ms.lastTo("p1")
	require.NotNil(t, welcome)
	assert.Equal(t, protocol.TagWelcome, welcome.Type)
	assert.Equal(t, models.StatusLobby, welcome.GameState)
	assert.Empty(t, welcome.CalledNumbers)
}

func TestHostJoinIsIdempotent(t *testing.T) {
	h, ms := setupHost(t)
	h.HandleMessage("p1", protocol.Join("An"))
	h.HandleMessage("p1", protocol.Join("An again"))

	st := h.State()
	require.Len(t, st.Players, 1)
	assert.Equal(t, "An", st.Players[0].Name)
	assert.Len(t, ms.peer["p1"], 2, "every join gets a snapshot")
}

func TestHostWelcomeMidRound(t *testing.T) {
	h, ms := playingHost(t)
	for i := 0; i < 4; i++ {
		_, err := h.DrawNumber()
		require.NoError(t, err)
	}
	h.HandleMessage("late", protocol.Join("Cường"))

	welcome := ms.lastTo("late")
	require.NotNil(t, welcome)
	assert.Equal(t, models.StatusPlaying, welcome.GameState)
	assert.Equal(t, h.State().Called, welcome.CalledNumbers)
}

func TestHostDropsPlayerOnlyViolations(t *testing.T) {
	h, ms := playingHost(t)
	h.HandleMessage("p1", protocol.NumberDrawn(5))
	h.HandleMessage("p1", protocol.Win("An"))
	assert.Empty(t, h.State().Called)
	assert.Empty(t, h.State().Winner)
	assert.Empty(t, ms.broadcasts())
}

func TestHostRelaysChat(t *testing.T) {
	h, ms := playingHost(t)
	in := models.ChatMessage{ID: "m1", Sender: "An", Text: " xin chào ", Timestamp: 42}
	h.HandleMessage("p1", protocol.Chat(in))

	last := ms.lastBroadcast()
	require.NotNil(t, last)
	require.Equal(t, protocol.TagChat, last.Type)
	assert.Equal(t, "m1", last.Chat.ID)
	assert.Equal(t, "xin chào", last.Chat.Text)
	assert.Equal(t, int64(42), last.Chat.Timestamp)

	h.HandleMessage("p1", protocol.Chat(models.ChatMessage{ID: "m2", Text: "   "}))
	assert.Equal(t, 1, ms.count(protocol.TagChat), "blank chat is dropped")
}

func TestHostChatCannotForgeSystemMessages(t *testing.T) {
	h, ms := playingHost(t)
	h.HandleMessage("p1", protocol.Chat(models.ChatMessage{ID: "x", Sender: "Hệ thống", Text: "An thắng", IsSystem: true}))
	last := ms.lastBroadcast()
	require.NotNil(t, last)
	assert.False(t, last.Chat.IsSystem)
}

func TestDrawRequiresPlaying(t *testing.T) {
	h, _ := setupHost(t)
	_, err := h.DrawNumber()
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestDrawBroadcastsAndExhausts(t *testing.T) {
	h, ms := playingHost(t)
	for i := 0; i < TotalNumbers; i++ {
		_, err := h.DrawNumber()
		require.NoError(t, err)
	}
	assert.Equal(t, TotalNumbers, ms.count(protocol.TagNumberDrawn))

	_, err := h.DrawNumber()
	assert.ErrorIs(t, err, ErrExhausted)
	st := h.State()
	assert.Equal(t, "Đã gọi hết số!", st.Chat[len(st.Chat)-1].Text)
}

func winningClaim(h *Host, name string, nums ...int) models.Claim {
	for _, n := range nums {
		h.mu.Lock()
		h.caller.Record(n)
		h.mu.Unlock()
	}
	return models.Claim{PlayerName: name, Board: board([]int{-nums[0], -nums[1], -nums[2], -nums[3], 0, 0})}
}

func TestValidClaimWins(t *testing.T) {
	h, ms := playingHost(t)
	claim := winningClaim(h, "An", 3, 14, 25, 36)
	h.HandleMessage("p1", protocol.ClaimWin(claim))

	st := h.State()
	require.NotNil(t, st.Pending)
	assert.Equal(t, "p1", st.Pending.PeerID)
	require.NotNil(t, ms.lastBroadcast())
	assert.Equal(t, "🔔 An đang Kinh! Host đang kiểm tra vé...", ms.lastBroadcast().Chat.Text)

	won, err := h.ResolveClaim(true)
	require.NoError(t, err)
	assert.True(t, won)
	last := ms.lastBroadcast()
	require.NotNil(t, last)
	assert.Equal(t, protocol.TagWin, last.Type)
	assert.Equal(t, "An", last.WinnerName)
	assert.Equal(t, "An", h.State().Winner)
	assert.Nil(t, h.State().Pending)
}

func TestInvalidClaimNeverWins(t *testing.T) {
	h, ms := playingHost(t)
	// Marked numbers that were never called.
	claim := models.Claim{PlayerName: "An", Board: board([]int{-3, -14, -25, -36, 0, 0})}
	h.HandleMessage("p1", protocol.ClaimWin(claim))

	won, err := h.ResolveClaim(true)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Zero(t, ms.count(protocol.TagWin))

	rej := ms.lastTo("p1")
	require.NotNil(t, rej)
	assert.Equal(t, protocol.TagClaimRejected, rej.Type)
	assert.Equal(t, "Vé của An chưa hợp lệ. Tiếp tục chơi nhé!", ms.lastBroadcast().Chat.Text)
	assert.Empty(t, h.State().Winner)
}

func TestHostRejectsValidClaimOnRequest(t *testing.T) {
	h, ms := playingHost(t)
	h.HandleMessage("p2", protocol.ClaimWin(winningClaim(h, "Bình", 1, 10, 20, 30)))
	won, err := h.ResolveClaim(false)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Zero(t, ms.count(protocol.TagWin))
	assert.Equal(t, protocol.TagClaimRejected, ms.lastTo("p2").Type)
}

func TestLatestClaimReplacesPending(t *testing.T) {
	h, ms := playingHost(t)
	h.HandleMessage("p1", protocol.ClaimWin(models.Claim{PlayerName: "An", Board: board([]int{-1})}))
	h.HandleMessage("p2", protocol.ClaimWin(winningClaim(h, "Bình", 2, 11, 21, 31)))
	assert.Equal(t, "p2", h.State().Pending.PeerID)

	won, err := h.ResolveClaim(true)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Nil(t, ms.lastTo("p1"), "superseded claimant hears nothing")

	_, err = h.ResolveClaim(true)
	assert.ErrorIs(t, err, ErrNoPendingClaim)
}

func TestClaimOutsideRoundIgnored(t *testing.T) {
	h, _ := setupHost(t)
	h.HandleMessage("p1", protocol.Join("An"))
	h.HandleMessage("p1", protocol.ClaimWin(models.Claim{PlayerName: "An"}))
	assert.Nil(t, h.State().Pending)
}

func TestResetClearsRound(t *testing.T) {
	h, ms := setupHost(t)
	assert.Error(t, h.Reset(), "reset needs a round in progress")

	require.NoError(t, h.StartGame())
	_, err := h.DrawNumber()
	require.NoError(t, err)
	h.HandleMessage("p1", protocol.ClaimWin(models.Claim{PlayerName: "An", Board: board([]int{-1})}))
	h.SendChat("hello")

	require.NoError(t, h.Reset())
	st := h.State()
	assert.Equal(t, models.StatusPlaying, st.Status)
	assert.Empty(t, st.Called)
	assert.Zero(t, st.Current)
	assert.Nil(t, st.Pending)
	require.Len(t, st.Chat, 1)
	assert.Equal(t, "🔔 Ván chơi mới đã bắt đầu!", st.Chat[0].Text)
	assert.Equal(t, protocol.TagReset, ms.lastBroadcast().Type)
}

func TestPeerClosedKeepsPlayerAway(t *testing.T) {
	h, _ := playingHost(t)
	h.PeerClosed("p1")
	h.PeerClosed("ghost")

	st := h.State()
	require.Len(t, st.Players, 2)
	assert.False(t, st.Players[0].Ready)
	assert.True(t, st.Players[1].Ready)

	h.HandleMessage("p1", protocol.Join("An"))
	assert.True(t, h.State().Players[0].Ready)
}

func TestHostPlaysOwnBoards(t *testing.T) {
	h, ms := playingHost(t)
	boards := h.DealHostBoards()
	require.Len(t, boards, BoardsPerPlayer)

	won, err := h.ClaimHost()
	require.NoError(t, err)
	assert.False(t, won)
	assert.Zero(t, ms.count(protocol.TagWin))

	for col, c := range boards[0].Rows[0] {
		if !c.Empty() {
			require.NoError(t, h.MarkHostCell(0, 0, col))
		}
	}
	won, err = h.ClaimHost()
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, "Host (Cái)", ms.lastBroadcast().WinnerName)
}

func TestAutoDrawRunsUntilToggledOff(t *testing.T) {
	h, ms := playingHost(t)
	require.NoError(t, h.SetAutoDraw(true))
	require.Eventually(t, func() bool { return ms.count(protocol.TagNumberDrawn) >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.SetAutoDraw(false))
	assert.False(t, h.State().Auto)
	n := ms.count(protocol.TagNumberDrawn)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, ms.count(protocol.TagNumberDrawn), "no draw after toggle-off")
}

func TestAutoDrawStopsWhenExhausted(t *testing.T) {
	h, ms := playingHost(t)
	h.mu.Lock()
	for n := 1; n < TotalNumbers; n++ {
		h.caller.Record(n)
	}
	h.mu.Unlock()

	require.NoError(t, h.SetAutoDraw(true))
	require.Eventually(t, func() bool { return !h.State().Auto }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, ms.count(protocol.TagNumberDrawn))
	assert.Len(t, h.State().Called, TotalNumbers)

	assert.ErrorIs(t, h.SetAutoDraw(true), ErrExhausted)
}

func TestAutoDrawNeedsRound(t *testing.T) {
	h, _ := setupHost(t)
	assert.ErrorIs(t, h.SetAutoDraw(true), ErrNotPlaying)
}

func TestStopCancelsAutoDraw(t *testing.T) {
	h, ms := playingHost(t)
	require.NoError(t, h.SetAutoDraw(true))
	h.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ms.count(protocol.TagNumberDrawn))
}

func TestDrawAnnounces(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ms := newMockSender()
	h := NewHost(ms, commentary.NewAnnouncer(nil, 0, logger), logger)
	t.Cleanup(h.Stop)

	got := make(chan commentary.Announcement, 1)
	h.OnAnnounce = func(a commentary.Announcement) { got <- a }
	require.NoError(t, h.StartGame())
	n, err := h.DrawNumber()
	require.NoError(t, err)

	select {
	case a := <-got:
		assert.Equal(t, n, a.Number)
		assert.Contains(t, a.Spoken, "Con số "+commentary.ReadVietnamese(n))
	case <-time.After(2 * time.Second):
		t.Fatal("no announcement")
	}
	require.Eventually(t, func() bool { return h.State().LastAnnounce != nil }, time.Second, 5*time.Millisecond)
}
