package protocol

import (
	"testing"

	"github.com/jason-s-yu/loto/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWireFormat(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"WELCOME","gameState":"PLAYING","calledNumbers":[23,7]}`))
	require.NoError(t, err)
	assert.Equal(t, TagWelcome, msg.Type)
	assert.Equal(t, models.StatusPlaying, msg.GameState)
	assert.Equal(t, []int{23, 7}, msg.CalledNumbers)

	msg, err = Decode([]byte(`{"type":"CARD_DEAL","hands":{"p1":[{"suit":"hearts","rank":"K","isHidden":true}]}}`))
	require.NoError(t, err)
	require.Len(t, msg.Hands["p1"], 1)
	assert.Equal(t, models.Rank("K"), msg.Hands["p1"][0].Rank)
}

func TestDecodeRejectsUnknownAndMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":"PLAYER_KICKED"}`))
	assert.ErrorIs(t, err, ErrUnknownTag)

	_, err = Decode([]byte(`{"name":"x"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeOmitsUnusedFields(t *testing.T) {
	data, err := Encode(NumberDrawn(42))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"NUMBER_DRAWN","number":42}`, string(data))

	_, err = Encode(Message{Type: "BOGUS"})
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestSenderLegality(t *testing.T) {
	hostOnly := []Tag{TagWelcome, TagStartGame, TagReset, TagNumberDrawn, TagClaimRejected, TagWin,
		TagCardWelcome, TagCardDeal, TagCardRevealAll, TagCardResult}
	for _, tag := range hostOnly {
		assert.True(t, Allowed(tag, models.RoleHost), tag)
		assert.False(t, Allowed(tag, models.RolePlayer), tag)
	}

	playerOnly := []Tag{TagJoin, TagClaimWin}
	for _, tag := range playerOnly {
		assert.True(t, Allowed(tag, models.RolePlayer), tag)
		assert.False(t, Allowed(tag, models.RoleHost), tag)
	}

	for _, tag := range []Tag{TagChat, TagCardReveal, TagPing} {
		assert.True(t, Allowed(tag, models.RolePlayer), tag)
		assert.True(t, Allowed(tag, models.RoleHost), tag)
	}

	assert.False(t, Allowed(TagChat, models.RoleNone))
	assert.True(t, HostRelays(TagChat))
	assert.False(t, HostRelays(TagClaimWin))
}

func TestWelcomeCopiesHistory(t *testing.T) {
	called := []int{5, 4}
	msg := Welcome(models.StatusPlaying, called)
	called[0] = 99
	assert.Equal(t, []int{5, 4}, msg.CalledNumbers)
}
