package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ianatiant/ianclaims/internal/observerproto"
	"github.com/Ianatiant/ianclaims/internal/sim/land"
)

// Server streams a read-only view of the claim map to loopback observers,
// e.g. a local map renderer or an ops dashboard. Observers never join the
// hub and cannot issue commands.
type Server struct {
	reg *land.Registry
	dir land.Directory
	log *log.Logger

	tickRateHz int

	upgrader websocket.Upgrader
}

func NewServer(reg *land.Registry, dir land.Directory, tickRateHz int, logger *log.Logger) *Server {
	return &Server{
		reg:        reg,
		dir:        dir,
		log:        logger,
		tickRateHz: tickRateHz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only anyway
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		st := s.reg.ExportState()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Tick:            s.reg.Tick(),
			TickRateHz:      s.tickRateHz,
			AllowedSizes:    s.reg.AllowedSizes(),
			Claims:          len(st.Claims),
			Sales:           len(st.Sales),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil ||
			sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"),
				time.Now().Add(time.Second))
			return
		}

		interval := make(chan int, 1)
		interval <- normalizeInterval(sub.IntervalTicks, s.tickRateHz)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: pushes STATE at the subscribed cadence.
		go func() {
			period := tickPeriod(<-interval, s.tickRateHz)
			ticker := time.NewTicker(period)
			defer ticker.Stop()

			send := func() bool {
				b, err := json.Marshal(s.buildState())
				if err != nil {
					return false
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				return conn.WriteMessage(websocket.TextMessage, b) == nil
			}
			if !send() {
				cancel()
				return
			}
			for {
				select {
				case <-ctx.Done():
					return
				case ticks := <-interval:
					ticker.Reset(tickPeriod(ticks, s.tickRateHz))
				case <-ticker.C:
					if !send() {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			select {
			case interval <- normalizeInterval(sub.IntervalTicks, s.tickRateHz):
			default:
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
	}
}

func (s *Server) buildState() observerproto.StateMsg {
	st := observerproto.StateMsg{
		Type:            "STATE",
		ProtocolVersion: observerproto.Version,
		Tick:            s.reg.Tick(),
	}

	doc := s.reg.ExportState()
	st.Claims = make([]observerproto.ClaimState, 0, len(doc.Claims))
	for _, c := range doc.Claims {
		st.Claims = append(st.Claims, observerproto.ClaimState{
			LandName:  c.LandName,
			OwnerName: c.OwnerName,
			X1:        c.X1, Z1: c.Z1, X2: c.X2, Z2: c.Z2,
			Size:    c.Size,
			Trusted: len(c.TrustedPlayers),
		})
	}
	for _, sv := range doc.Sales {
		st.Sales = append(st.Sales, observerproto.SaleState{
			LandName:   sv.Claim.LandName,
			SellerName: sv.SellerName,
			Price:      sv.Price,
			X1:         sv.Claim.X1, Z1: sv.Claim.Z1, X2: sv.Claim.X2, Z2: sv.Claim.Z2,
			Size: sv.Claim.Size,
		})
	}

	sort.Slice(st.Claims, func(i, j int) bool { return st.Claims[i].LandName < st.Claims[j].LandName })
	sort.Slice(st.Sales, func(i, j int) bool { return st.Sales[i].LandName < st.Sales[j].LandName })

	if s.dir != nil {
		for _, id := range s.dir.OnlinePlayers() {
			x, z, ok := s.dir.Position(id)
			if !ok {
				continue
			}
			name, _ := s.dir.DisplayName(id)
			st.Players = append(st.Players, observerproto.PlayerState{ID: id, Name: name, X: x, Z: z})
		}
	}
	return st
}

func normalizeInterval(ticks, tickRateHz int) int {
	if tickRateHz <= 0 {
		tickRateHz = 20
	}
	if ticks <= 0 {
		ticks = tickRateHz // once a second
	}
	if ticks > tickRateHz*60 {
		ticks = tickRateHz * 60
	}
	return ticks
}

func tickPeriod(ticks, tickRateHz int) time.Duration {
	if tickRateHz <= 0 {
		tickRateHz = 20
	}
	return time.Duration(ticks) * time.Second / time.Duration(tickRateHz)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
