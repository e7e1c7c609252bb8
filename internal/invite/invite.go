// Package invite builds and reads shareable room links. A link carries the
// room code, the game, and optionally the host's relay credentials so a
// friend behind the same kind of NAT can connect without extra setup.
package invite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jason-s-yu/loto/internal/credstore"
	"github.com/skip2/go-qrcode"
)

// Game identifies which mini-game the room runs.
type Game string

const (
	GameLottery Game = "loto"
	GameCards   Game = "card"
)

const (
	paramGame = "game"
	paramRoom = "room"
	paramURL  = "t_url"
	paramUser = "t_u"
	paramPass = "t_p"
)

var ErrNoRoom = errors.New("invite has no room code")

// Link is a decoded invite.
type Link struct {
	Game  Game
	Room  string
	Creds credstore.Credentials
}

// URL renders the link against base. Credential fields are included one by
// one when present.
func (l Link) URL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid invite base %q: %w", base, err)
	}
	q := url.Values{}
	if l.Game != "" {
		q.Set(paramGame, string(l.Game))
	}
	q.Set(paramRoom, l.Room)
	if l.Creds.Endpoint != "" {
		q.Set(paramURL, l.Creds.Endpoint)
	}
	if l.Creds.User != "" {
		q.Set(paramUser, l.Creds.User)
	}
	if l.Creds.Credential != "" {
		q.Set(paramPass, l.Creds.Credential)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ShareText is the message that accompanies a shared link.
func (l Link) ShareText() string {
	if l.Game == GameCards {
		return fmt.Sprintf("Vào phòng %s chơi Bài Cào nhé!", l.Room)
	}
	return fmt.Sprintf("Vào phòng %s chơi Lô tô với tớ nhé!", l.Room)
}

// Parse accepts either a bare room code or a full invite URL.
func Parse(input string) (Link, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Link{}, ErrNoRoom
	}
	if !strings.Contains(input, "http") {
		return Link{Room: input}, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return Link{}, fmt.Errorf("parse invite: %w", err)
	}
	q := u.Query()
	room := q.Get(paramRoom)
	if room == "" {
		return Link{}, ErrNoRoom
	}
	link := Link{Game: Game(q.Get(paramGame)), Room: room}
	creds := credstore.Credentials{
		Endpoint:   q.Get(paramURL),
		User:       q.Get(paramUser),
		Credential: q.Get(paramPass),
	}
	if creds.Complete() {
		link.Creds = creds
	}
	return link, nil
}

// Apply saves the link's credentials when all three are present.
func (l Link) Apply(ctx context.Context, store credstore.Store) (bool, error) {
	if !l.Creds.Complete() {
		return false, nil
	}
	if err := store.Save(ctx, l.Creds); err != nil {
		return false, err
	}
	return true, nil
}

// QR renders url as a PNG of the given pixel size.
func QR(url string, size int) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return png, nil
}
