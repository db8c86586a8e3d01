package land

import (
	"fmt"
	"sync"
)

// PresenceTracker watches player positions and fires an "entered land"
// notification exactly once per transition into a claim. Entering your own
// land is silent. State is transient and never persisted.
//
// With ThresholdSq == 0 every discrete position change re-evaluates the
// covering claim (exact edge detection). A positive ThresholdSq switches to
// the coarser policy: re-evaluate only after moving more than that squared
// distance from the last checked position.
type PresenceTracker struct {
	reg      *Registry
	dir      Directory
	notifier Notifier

	thresholdSq int

	mu      sync.Mutex
	players map[string]*presenceState
}

type presenceState struct {
	x, z   int
	inside string // lowercase claim name, "" when outside
	seeded bool
}

func NewPresenceTracker(reg *Registry, dir Directory, notifier Notifier, thresholdSq int) *PresenceTracker {
	return &PresenceTracker{
		reg:         reg,
		dir:         dir,
		notifier:    notifier,
		thresholdSq: thresholdSq,
		players:     map[string]*presenceState{},
	}
}

// Scan polls every online player once; called from the tick loop. Display
// names of online players are cached opportunistically on the way.
func (p *PresenceTracker) Scan() {
	if p.dir == nil {
		return
	}
	for _, id := range p.dir.OnlinePlayers() {
		x, z, ok := p.dir.Position(id)
		if !ok {
			continue
		}
		if name, ok := p.dir.DisplayName(id); ok {
			p.reg.names.Put(id, name)
		}
		p.Check(id, x, z)
	}
}

// Check processes one observed position for a player.
func (p *PresenceTracker) Check(playerID string, x, z int) {
	p.mu.Lock()
	st, ok := p.players[playerID]
	if !ok {
		st = &presenceState{}
		p.players[playerID] = st
	}
	if st.seeded {
		dx, dz := x-st.x, z-st.z
		if dx == 0 && dz == 0 {
			p.mu.Unlock()
			return
		}
		if p.thresholdSq > 0 && dx*dx+dz*dz <= p.thresholdSq {
			p.mu.Unlock()
			return
		}
	}
	st.x, st.z = x, z
	st.seeded = true
	prev := st.inside

	var entered *Claim
	if c, ok := p.reg.ClaimAt(x, z); ok {
		key := claimKey(c.Name)
		if key != prev {
			entered = c
		}
		st.inside = key
	} else {
		st.inside = ""
	}
	p.mu.Unlock()

	if entered != nil && entered.OwnerID != playerID && p.notifier != nil {
		owner := p.reg.OwnerNameOf(entered)
		p.notifier.Notify(playerID, fmt.Sprintf(
			"[IanClaims] Entered land '%s' owned by %s", entered.Name, owner))
	}
}

// Forget drops a player's transient state, e.g. on disconnect.
func (p *PresenceTracker) Forget(playerID string) {
	p.mu.Lock()
	delete(p.players, playerID)
	p.mu.Unlock()
}
