package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Ianatiant/ianclaims/internal/protocol"
)

// Hub tracks connected players: identity, last reported position and the
// outbound message channel. It is the registry's Directory and Notifier.
type Hub struct {
	mu      sync.RWMutex
	players map[string]*playerConn
	admins  map[string]bool
}

type playerConn struct {
	name   string
	x, z   int
	hasPos bool
	out    chan []byte
}

func NewHub(admins []string) *Hub {
	h := &Hub{
		players: map[string]*playerConn{},
		admins:  map[string]bool{},
	}
	for _, id := range admins {
		h.admins[id] = true
	}
	return h
}

// Join registers a connection. A second connection for the same player id
// is refused; the first one owns the session.
func (h *Hub) Join(playerID, name string, out chan []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.players[playerID]; dup {
		return fmt.Errorf("player %s already connected", playerID)
	}
	h.players[playerID] = &playerConn{name: name, out: out}
	return nil
}

func (h *Hub) Leave(playerID string) {
	h.mu.Lock()
	delete(h.players, playerID)
	h.mu.Unlock()
}

func (h *Hub) SetPosition(playerID string, x, z int) {
	h.mu.Lock()
	if p := h.players[playerID]; p != nil {
		p.x, p.z = x, z
		p.hasPos = true
	}
	h.mu.Unlock()
}

// Position implements land.Directory.
func (h *Hub) Position(playerID string) (int, int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p := h.players[playerID]
	if p == nil || !p.hasPos {
		return 0, 0, false
	}
	return p.x, p.z, true
}

func (h *Hub) DisplayName(playerID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p := h.players[playerID]
	if p == nil {
		return "", false
	}
	return p.name, true
}

func (h *Hub) IsOnline(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.players[playerID] != nil
}

func (h *Hub) HasElevatedPrivilege(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.admins[playerID]
}

func (h *Hub) OnlinePlayers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.players))
	for id := range h.players {
		out = append(out, id)
	}
	return out
}

// Notify implements land.Notifier. Offline players and full outboxes drop
// the message; chat is best-effort.
func (h *Hub) Notify(playerID, message string) {
	b, err := json.Marshal(protocol.NoticeMsg{Type: protocol.TypeNotice, Text: message})
	if err != nil {
		return
	}
	h.mu.RLock()
	p := h.players[playerID]
	h.mu.RUnlock()
	if p == nil {
		return
	}
	select {
	case p.out <- b:
	default:
	}
}
