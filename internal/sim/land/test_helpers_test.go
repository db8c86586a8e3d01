package land

import (
	"fmt"
	"io"
	"log"
	"reflect"
	"sync"
	"testing"
)

type fakeDirectory struct {
	mu        sync.Mutex
	positions map[string][2]int
	names     map[string]string
	admins    map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		positions: map[string][2]int{},
		names:     map[string]string{},
		admins:    map[string]bool{},
	}
}

func (d *fakeDirectory) Position(id string) (int, int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.positions[id]
	return p[0], p[1], ok
}

func (d *fakeDirectory) DisplayName(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.names[id]
	return n, ok
}

func (d *fakeDirectory) IsOnline(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.positions[id]
	return ok
}

func (d *fakeDirectory) HasElevatedPrivilege(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.admins[id]
}

func (d *fakeDirectory) OnlinePlayers() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.positions))
	for id := range d.positions {
		out = append(out, id)
	}
	return out
}

func (d *fakeDirectory) setOnline(id, name string, x, z int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.positions[id] = [2]int{x, z}
	d.names[id] = name
}

type fakeEconomy struct {
	mu       sync.Mutex
	balances map[string]int
}

func newFakeEconomy() *fakeEconomy {
	return &fakeEconomy{balances: map[string]int{}}
}

func (e *fakeEconomy) Balance(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[id]
}

func (e *fakeEconomy) Debit(id string, amount int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.balances[id] < amount {
		return fmt.Errorf("balance %d below %d", e.balances[id], amount)
	}
	e.balances[id] -= amount
	return nil
}

func (e *fakeEconomy) Credit(id string, amount int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[id] += amount
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: map[string][]string{}}
}

func (n *fakeNotifier) Notify(id, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[id] = append(n.sent[id], msg)
}

func (n *fakeNotifier) count(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[id])
}

func (n *fakeNotifier) last(id string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := n.sent[id]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type memAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *memAudit) WriteAudit(e AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type memStore struct {
	mu    sync.Mutex
	saves int
	last  StateV1
	fail  bool
}

func (s *memStore) SaveState(st StateV1) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("store unavailable")
	}
	s.saves++
	s.last = st
	return nil
}

type testEnv struct {
	reg      *Registry
	dir      *fakeDirectory
	economy  *fakeEconomy
	notifier *fakeNotifier
	audit    *memAudit
	store    *memStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		dir:      newFakeDirectory(),
		economy:  newFakeEconomy(),
		notifier: newFakeNotifier(),
		audit:    &memAudit{},
		store:    &memStore{},
	}
	env.reg = NewRegistry(RegistryDeps{
		Dir:      env.dir,
		Economy:  env.economy,
		Notifier: env.notifier,
		Audit:    env.audit,
		Store:    env.store,
		Log:      log.New(io.Discard, "", 0),
	})
	return env
}

func mustCreate(t *testing.T, reg *Registry, owner, name string, cx, cz, size int) *Claim {
	t.Helper()
	c, err := reg.CreateClaim(owner, owner, name, cx, cz, size)
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	return c
}

func wantReject(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil error", code)
	}
	if got := RejectCode(err); got != code {
		t.Fatalf("reject code = %q, want %q (%v)", got, code, err)
	}
}

func statesEqual(a, b StateV1) bool {
	return reflect.DeepEqual(a, b)
}
