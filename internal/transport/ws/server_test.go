package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ianatiant/ianclaims/internal/protocol"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialTestServer(t *testing.T, s *Server, playerID, playerName string) *testClient {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	c := &testClient{t: t, conn: conn}
	c.send(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerID:        playerID,
		PlayerName:      playerName,
	})
	return c
}

func (c *testClient) send(v any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("send: %v", err)
	}
}

func (c *testClient) read(v any) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(msg, v); err != nil {
		c.t.Fatalf("decode %q: %v", msg, err)
	}
}

func TestServerHandshakeAndCreate(t *testing.T) {
	s, _, _ := newDispatchServer(t, nil)
	c := dialTestServer(t, s, "u1", "Alice")

	var welcome protocol.WelcomeMsg
	c.read(&welcome)
	if welcome.Type != protocol.TypeWelcome || welcome.PlayerID != "u1" {
		t.Fatalf("welcome = %+v", welcome)
	}
	if welcome.TickRateHz != 20 || len(welcome.AllowedSizes) == 0 {
		t.Fatalf("welcome config = %+v", welcome)
	}

	c.send(protocol.MoveMsg{Type: protocol.TypeMove, X: 0, Z: 0})
	c.send(protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		ID:              "c1",
		Op:              protocol.OpCreate,
		Name:            "home",
		Size:            16,
	})

	var res protocol.ResultMsg
	c.read(&res)
	if !res.OK || res.ID != "c1" {
		t.Fatalf("result = %+v", res)
	}
	if res.Claim == nil || res.Claim.LandName != "home" {
		t.Fatalf("claim = %+v", res.Claim)
	}
}

func TestServerRejectsBadHello(t *testing.T) {
	s, hub, _ := newDispatchServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wrong protocol version: the server drops the connection silently.
	_ = conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: "0.9",
		PlayerID:        "u1",
		PlayerName:      "Alice",
	})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected connection close after bad hello")
	}
	if hub.IsOnline("u1") {
		t.Fatalf("rejected hello joined the hub")
	}
}

func TestServerDuplicateSessionRefused(t *testing.T) {
	s, _, _ := newDispatchServer(t, nil)
	c := dialTestServer(t, s, "u1", "Alice")
	var welcome protocol.WelcomeMsg
	c.read(&welcome)

	second := dialTestServer(t, s, "u1", "Alice")
	_ = second.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := second.conn.ReadMessage(); err == nil {
		t.Fatalf("second session for the same player should be refused")
	}
}

func TestServerNoticeDelivery(t *testing.T) {
	s, hub, _ := newDispatchServer(t, nil)
	c := dialTestServer(t, s, "u1", "Alice")
	var welcome protocol.WelcomeMsg
	c.read(&welcome)

	hub.Notify("u1", "[IanClaims] hello there")

	var notice protocol.NoticeMsg
	c.read(&notice)
	if notice.Type != protocol.TypeNotice || notice.Text != "[IanClaims] hello there" {
		t.Fatalf("notice = %+v", notice)
	}
}
