package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	srv := NewServer(logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, id string) (*websocket.Conn, Frame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })

	require.NoError(t, wsjson.Write(ctx, c, Frame{Op: OpRegister, ID: id}))
	var reply Frame
	require.NoError(t, wsjson.Read(ctx, c, &reply))
	return c, reply
}

func read(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f Frame
	require.NoError(t, wsjson.Read(ctx, c, &f))
	return f
}

func write(t *testing.T, c *websocket.Conn, f Frame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, f))
}

func TestRegisterAndTaken(t *testing.T) {
	srv, ts := newTestServer(t)

	_, reply := dial(t, ts, "loto-1234")
	assert.Equal(t, OpRegistered, reply.Op)
	assert.Equal(t, "loto-1234", reply.ID)

	_, reply = dial(t, ts, "loto-1234")
	assert.Equal(t, OpError, reply.Op)
	assert.Equal(t, CodeTaken, reply.Code)

	_, anon := dial(t, ts, "")
	assert.Equal(t, OpRegistered, anon.Op)
	assert.NotEmpty(t, anon.ID)

	assert.ElementsMatch(t, []string{"loto-1234", anon.ID}, srv.Identities())
}

func TestLinkForwarding(t *testing.T) {
	_, ts := newTestServer(t)
	host, _ := dial(t, ts, "loto-4321")
	player, reg := dial(t, ts, "")

	write(t, player, Frame{Op: OpConnect, Link: "l1", Peer: "loto-4321"})

	accept := read(t, host)
	assert.Equal(t, OpAccept, accept.Op)
	assert.Equal(t, reg.ID, accept.Peer)
	assert.Equal(t, OpOpen, read(t, host).Op)
	assert.Equal(t, OpOpen, read(t, player).Op)

	write(t, player, Frame{Op: OpData, Link: "l1", Data: []byte(`{"type":"JOIN","name":"Lan"}`)})
	got := read(t, host)
	assert.Equal(t, OpData, got.Op)
	assert.JSONEq(t, `{"type":"JOIN","name":"Lan"}`, string(got.Data))

	write(t, host, Frame{Op: OpClose, Link: "l1"})
	closed := read(t, player)
	assert.Equal(t, OpClose, closed.Op)
	assert.Equal(t, "l1", closed.Link)
}

func TestConnectUnknownPeer(t *testing.T) {
	_, ts := newTestServer(t)
	player, _ := dial(t, ts, "")

	write(t, player, Frame{Op: OpConnect, Link: "l1", Peer: "loto-0000"})
	f := read(t, player)
	assert.Equal(t, OpError, f.Op)
	assert.Equal(t, CodePeerUnavailable, f.Code)
	assert.Equal(t, "l1", f.Link)
}

func TestDropClosesLinks(t *testing.T) {
	srv, ts := newTestServer(t)
	host, _ := dial(t, ts, "loto-7777")
	player, _ := dial(t, ts, "")

	write(t, player, Frame{Op: OpConnect, Link: "l9", Peer: "loto-7777"})
	read(t, host)
	read(t, host)
	read(t, player)

	host.Close(websocket.StatusNormalClosure, "bye")
	f := read(t, player)
	assert.Equal(t, OpClose, f.Op)
	assert.Equal(t, "l9", f.Link)
	require.Eventually(t, func() bool { return len(srv.Identities()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSlowClientIsDisconnected(t *testing.T) {
	logger, _ := test.NewNullLogger()
	kicks := 0
	cl := &client{id: "loto-5555", out: make(chan Frame, 2), logger: logger, kick: func() { kicks++ }}

	cl.write(Frame{Op: OpData, Link: "l1"})
	cl.write(Frame{Op: OpData, Link: "l1"})
	assert.Zero(t, kicks)

	cl.write(Frame{Op: OpData, Link: "l1"})
	assert.Equal(t, 1, kicks, "overflow disconnects instead of dropping")
	cl.write(Frame{Op: OpData, Link: "l1"})
	assert.Equal(t, 1, kicks)
	assert.Len(t, cl.out, 2)
}

func TestKickedClientClosesLinks(t *testing.T) {
	srv, ts := newTestServer(t)
	host, _ := dial(t, ts, "loto-6666")
	player, _ := dial(t, ts, "")

	write(t, player, Frame{Op: OpConnect, Link: "l3", Peer: "loto-6666"})
	read(t, host)
	read(t, host)
	read(t, player)

	srv.mu.Lock()
	slow := srv.clients["loto-6666"]
	srv.mu.Unlock()
	require.NotNil(t, slow)
	slow.kick()

	f := read(t, player)
	assert.Equal(t, OpClose, f.Op)
	assert.Equal(t, "l3", f.Link)
	require.Eventually(t, func() bool { return len(srv.Identities()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestHealthAndQR(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", string(body))

	resp, err = http.Get(ts.URL + "/invite/qr?u=https%3A%2F%2Floto.example%2F%3Froom%3D1234")
	require.NoError(t, err)
	png, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))

	resp, err = http.Get(ts.URL + "/invite/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
