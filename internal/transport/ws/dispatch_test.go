package ws

import (
	"io"
	"log"
	"testing"

	"github.com/Ianatiant/ianclaims/internal/protocol"
	"github.com/Ianatiant/ianclaims/internal/sim/land"
)

func newDispatchServer(t *testing.T, admins []string) (*Server, *Hub, *land.Registry) {
	t.Helper()
	hub := NewHub(admins)
	logger := log.New(io.Discard, "", 0)
	reg := land.NewRegistry(land.RegistryDeps{
		Dir:      hub,
		Notifier: hub,
		Log:      logger,
	})
	presence := land.NewPresenceTracker(reg, hub, hub, 0)
	return NewServer(reg, hub, presence, 20, logger), hub, reg
}

func join(t *testing.T, hub *Hub, id, name string, x, z int) chan []byte {
	t.Helper()
	out := make(chan []byte, outboxSize)
	if err := hub.Join(id, name, out); err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
	hub.SetPosition(id, x, z)
	return out
}

func cmd(op string) protocol.CmdMsg {
	return protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ID: "t1", Op: op}
}

func TestDispatchCreateNeedsPosition(t *testing.T) {
	s, hub, _ := newDispatchServer(t, nil)
	out := make(chan []byte, outboxSize)
	if err := hub.Join("u1", "Alice", out); err != nil {
		t.Fatalf("join: %v", err)
	}

	c := cmd(protocol.OpCreate)
	c.Name = "home"
	c.Size = 16
	res := s.dispatch("u1", c)
	if res.OK || res.Code != land.EBadRequest {
		t.Fatalf("result = %+v, want position error", res)
	}

	hub.SetPosition("u1", 0, 0)
	res = s.dispatch("u1", c)
	if !res.OK {
		t.Fatalf("create failed: %+v", res)
	}
	if res.Claim == nil || res.Claim.LandName != "home" || res.Claim.X1 != -8 || res.Claim.X2 != 7 {
		t.Fatalf("claim info = %+v", res.Claim)
	}
	if res.Claim.OwnerName != "Alice" {
		t.Fatalf("owner name = %q", res.Claim.OwnerName)
	}
}

func TestDispatchRejectCodesPassThrough(t *testing.T) {
	s, hub, _ := newDispatchServer(t, nil)
	join(t, hub, "u1", "Alice", 0, 0)
	join(t, hub, "u2", "Bob", 0, 0)

	c := cmd(protocol.OpCreate)
	c.Name = "home"
	c.Size = 16
	if res := s.dispatch("u1", c); !res.OK {
		t.Fatalf("create: %+v", res)
	}

	c.Name = "other"
	res := s.dispatch("u2", c)
	if res.OK || res.Code != land.EAreaOccupied {
		t.Fatalf("result = %+v, want E_AREA_OCCUPIED", res)
	}

	c.Name = "HOME"
	hub.SetPosition("u2", 500, 500)
	res = s.dispatch("u2", c)
	if res.OK || res.Code != land.ENameTaken {
		t.Fatalf("result = %+v, want E_NAME_TAKEN", res)
	}
}

func TestDispatchTrustAndModifyCheck(t *testing.T) {
	s, hub, _ := newDispatchServer(t, nil)
	join(t, hub, "u1", "Alice", 0, 0)

	c := cmd(protocol.OpCreate)
	c.Name = "home"
	c.Size = 16
	if res := s.dispatch("u1", c); !res.OK {
		t.Fatalf("create: %+v", res)
	}

	check := cmd(protocol.OpModifyCheck)
	check.X, check.Z = 0, 0
	res := s.dispatch("u2", check)
	if !res.OK || res.Allowed == nil || *res.Allowed {
		t.Fatalf("stranger modify_check = %+v", res)
	}

	trust := cmd(protocol.OpTrust)
	trust.Name = "home"
	trust.Target = "u2"
	if res := s.dispatch("u1", trust); !res.OK {
		t.Fatalf("trust: %+v", res)
	}
	// Duplicate grant succeeds with a note and no change.
	if res := s.dispatch("u1", trust); !res.OK || res.Msg != "no change" {
		t.Fatalf("dup trust: %+v", res)
	}

	res = s.dispatch("u2", check)
	if res.Allowed == nil || !*res.Allowed {
		t.Fatalf("trusted modify_check = %+v", res)
	}

	untrust := cmd(protocol.OpUntrust)
	untrust.Name = "home"
	untrust.Target = "u2"
	if res := s.dispatch("u1", untrust); !res.OK {
		t.Fatalf("untrust: %+v", res)
	}
	res = s.dispatch("u2", check)
	if res.Allowed == nil || *res.Allowed {
		t.Fatalf("untrusted modify_check = %+v", res)
	}
}

func TestDispatchListPermissions(t *testing.T) {
	s, hub, _ := newDispatchServer(t, []string{"admin"})
	join(t, hub, "u1", "Alice", 0, 0)
	join(t, hub, "u2", "Bob", 200, 0)
	join(t, hub, "admin", "Root", 400, 0)

	c := cmd(protocol.OpCreate)
	c.Name = "home"
	c.Size = 16
	if res := s.dispatch("u1", c); !res.OK {
		t.Fatalf("create: %+v", res)
	}

	// Own list needs no target.
	res := s.dispatch("u1", cmd(protocol.OpList))
	if !res.OK || len(res.Claims) != 1 {
		t.Fatalf("own list = %+v", res)
	}

	other := cmd(protocol.OpList)
	other.Target = "u1"
	res = s.dispatch("u2", other)
	if res.OK || res.Code != land.ENoPermission {
		t.Fatalf("peer list = %+v", res)
	}
	res = s.dispatch("admin", other)
	if !res.OK || len(res.Claims) != 1 {
		t.Fatalf("admin list = %+v", res)
	}
}

func TestDispatchSaleFlow(t *testing.T) {
	s, hub, reg := newDispatchServer(t, nil)
	economy := &stubEconomy{balances: map[string]int{"u2": 200}}
	// Rebuild the registry with an economy wired in.
	reg = land.NewRegistry(land.RegistryDeps{
		Dir:      hub,
		Notifier: hub,
		Economy:  economy,
		Log:      log.New(io.Discard, "", 0),
	})
	s.reg = reg

	join(t, hub, "u1", "Alice", 0, 0)
	join(t, hub, "u2", "Bob", 200, 0)

	c := cmd(protocol.OpCreate)
	c.Name = "home"
	c.Size = 16
	if res := s.dispatch("u1", c); !res.OK {
		t.Fatalf("create: %+v", res)
	}

	sell := cmd(protocol.OpSell)
	sell.Name = "home"
	sell.Price = 150
	if res := s.dispatch("u1", sell); !res.OK {
		t.Fatalf("sell: %+v", res)
	}

	res := s.dispatch("u2", cmd(protocol.OpSales))
	if !res.OK || len(res.Sales) != 1 || res.Sales[0].Price != 150 || res.Sales[0].SellerName != "Alice" {
		t.Fatalf("sales = %+v", res)
	}

	buy := cmd(protocol.OpBuy)
	buy.Name = "home"
	if res := s.dispatch("u2", buy); !res.OK {
		t.Fatalf("buy: %+v", res)
	}
	if economy.balances["u2"] != 50 || economy.balances["u1"] != 150 {
		t.Fatalf("balances = %v", economy.balances)
	}

	info := cmd(protocol.OpInfo)
	info.Name = "home"
	res = s.dispatch("u2", info)
	if !res.OK || res.Claim.OwnerName != "Bob" {
		t.Fatalf("info after buy = %+v", res)
	}
}

func TestDispatchUnknownOp(t *testing.T) {
	s, hub, _ := newDispatchServer(t, nil)
	join(t, hub, "u1", "Alice", 0, 0)

	res := s.dispatch("u1", cmd("frobnicate"))
	if res.OK || res.Code != land.EBadRequest {
		t.Fatalf("result = %+v", res)
	}
}

type stubEconomy struct{ balances map[string]int }

func (e *stubEconomy) Balance(id string) int { return e.balances[id] }
func (e *stubEconomy) Debit(id string, amount int) error {
	if e.balances[id] < amount {
		return &land.Reject{Code: land.ENoFunds, Msg: "insufficient"}
	}
	e.balances[id] -= amount
	return nil
}
func (e *stubEconomy) Credit(id string, amount int) { e.balances[id] += amount }
