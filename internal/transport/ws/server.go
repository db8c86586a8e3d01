package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ianatiant/ianclaims/internal/protocol"
	"github.com/Ianatiant/ianclaims/internal/sim/land"
)

const outboxSize = 64

type Server struct {
	reg      *land.Registry
	hub      *Hub
	presence *land.PresenceTracker
	log      *log.Logger

	tickRateHz int

	upgrader websocket.Upgrader
}

func NewServer(reg *land.Registry, hub *Hub, presence *land.PresenceTracker, tickRateHz int, logger *log.Logger) *Server {
	return &Server{
		reg:        reg,
		hub:        hub,
		presence:   presence,
		log:        logger,
		tickRateHz: tickRateHz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(conn)
		if playerID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeMove:
				var mv protocol.MoveMsg
				if err := json.Unmarshal(msg, &mv); err != nil {
					continue
				}
				s.hub.SetPosition(playerID, mv.X, mv.Z)
			case protocol.TypeCmd:
				var cmd protocol.CmdMsg
				if err := json.Unmarshal(msg, &cmd); err != nil {
					continue
				}
				if cmd.ProtocolVersion != protocol.Version {
					continue
				}
				res := s.dispatch(playerID, cmd)
				if b, err := json.Marshal(res); err == nil {
					select {
					case out <- b:
					default:
					}
				}
			}
		}

		// Cleanup.
		s.hub.Leave(playerID)
		if s.presence != nil {
			s.presence.Forget(playerID)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		return "", nil
	}
	id := strings.TrimSpace(hello.PlayerID)
	name := strings.TrimSpace(hello.PlayerName)
	if id == "" || name == "" {
		return "", nil
	}

	out := make(chan []byte, outboxSize)
	if err := s.hub.Join(id, name, out); err != nil {
		s.log.Printf("join %s: %v", id, err)
		return "", nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        id,
		TickRateHz:      s.tickRateHz,
		AllowedSizes:    s.reg.AllowedSizes(),
	}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.hub.Leave(id)
		return "", nil
	}
	return id, out
}
