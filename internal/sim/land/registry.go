package land

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry owns the canonical claim collection, the sale ledger and the
// spatial indexes as one invariant domain: no two rects across the active
// set and the sale ledger ever overlap, and names form a single
// case-insensitive namespace across both.
//
// Every mutating operation is a single locked transaction: any rejection
// leaves all state identical to before the call. Read queries take the
// shared lock and return clones, never registry-owned pointers.
type Registry struct {
	mu sync.RWMutex

	claims map[string]*Claim // lowercase name -> active claim
	sales  map[string]*Sale  // lowercase name -> listing
	active *spatialIndex
	listed *spatialIndex

	names *nameCache

	dir      Directory
	economy  Economy
	notifier Notifier
	audit    AuditLogger // may be nil
	store    Store       // may be nil
	log      *log.Logger

	sizes []int

	tick         atomic.Uint64
	saveFailures atomic.Uint64
}

type RegistryDeps struct {
	Dir      Directory
	Economy  Economy
	Notifier Notifier
	Audit    AuditLogger
	Store    Store
	Log      *log.Logger
	Names    *nameCache
	Sizes    []int // allowed claim side lengths; DefaultSizes when empty
}

func NewRegistry(deps RegistryDeps) *Registry {
	names := deps.Names
	if names == nil {
		names = NewNameCache("")
	}
	logger := deps.Log
	if logger == nil {
		logger = log.Default()
	}
	sizes := deps.Sizes
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	return &Registry{
		claims:   map[string]*Claim{},
		sales:    map[string]*Sale{},
		active:   newSpatialIndex(),
		listed:   newSpatialIndex(),
		names:    names,
		dir:      deps.Dir,
		economy:  deps.Economy,
		notifier: deps.Notifier,
		audit:    deps.Audit,
		store:    deps.Store,
		log:      logger,
		sizes:    sizes,
	}
}

func (r *Registry) sizeAllowed(size int) bool {
	for _, s := range r.sizes {
		if s == size {
			return true
		}
	}
	return false
}

// AllowedSizes returns the configured claim side lengths.
func (r *Registry) AllowedSizes() []int {
	out := make([]int, len(r.sizes))
	copy(out, r.sizes)
	return out
}

func claimKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AdvanceTick is called once per loop tick; the tick stamps audit entries.
func (r *Registry) AdvanceTick() uint64 { return r.tick.Add(1) }

func (r *Registry) Tick() uint64 { return r.tick.Load() }

// SaveFailures counts persistence errors since start. State is never lost
// silently: each failure is logged and counted here.
func (r *Registry) SaveFailures() uint64 { return r.saveFailures.Load() }

// CreateClaim admits a new claim after the three-stage placement check:
// name collision (active + sales), coarse cell prune, precise overlap
// re-check. All three must pass; any failure aborts with no mutation.
func (r *Registry) CreateClaim(ownerID, ownerName, name string, centerX, centerZ, size int) (*Claim, error) {
	key := claimKey(name)
	if key == "" {
		return nil, reject(EBadRequest, "empty claim name")
	}
	if !r.sizeAllowed(size) {
		return nil, reject(EBadRequest, fmt.Sprintf("size %d not allowed", size))
	}
	rect := RectFromCenter(centerX, centerZ, size)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.claims[key]; taken {
		return nil, reject(ENameTaken, "a claim with that name exists")
	}
	if _, taken := r.sales[key]; taken {
		return nil, reject(ENameTaken, "a sale listing with that name exists")
	}
	if r.active.overlaps(rect) {
		return nil, reject(EAreaOccupied, "area overlaps an existing claim")
	}
	if r.listed.overlaps(rect) {
		return nil, reject(EAreaForSale, "area overlaps land listed for sale")
	}

	c := NewClaim(ownerID, ownerName, name, centerX, centerZ, size)
	r.claims[key] = c
	r.active.insert(c)
	r.names.Put(ownerID, ownerName)
	r.persistLocked()
	r.auditLocked(ownerID, "CLAIM_CREATE", [2]int{centerX, centerZ}, "", map[string]any{
		"land_name": c.Name,
		"size":      c.Size,
	})
	return c.Clone(), nil
}

// RemoveClaim deletes the named claim. Non-owners need elevated privilege;
// an elevated removal notifies the prior owner out-of-band.
func (r *Registry) RemoveClaim(requesterID, name string) error {
	key := claimKey(name)
	var notice func()

	r.mu.Lock()
	c, ok := r.claims[key]
	if !ok {
		r.mu.Unlock()
		return reject(ENotFound, "no claim named '"+name+"'")
	}
	if c.OwnerID != requesterID {
		if r.dir == nil || !r.dir.HasElevatedPrivilege(requesterID) {
			r.mu.Unlock()
			return reject(ENoPermission, "not the claim owner")
		}
		owner := c.OwnerID
		landName := c.Name
		notice = func() {
			r.notify(owner, fmt.Sprintf("[IanClaims] Your land '%s' was removed by an admin", landName))
		}
	}
	delete(r.claims, key)
	r.active.remove(c)
	r.persistLocked()
	r.auditLocked(requesterID, "CLAIM_REMOVE", [2]int{c.CenterX(), c.CenterZ()}, "", map[string]any{
		"land_name": c.Name,
		"owner":     c.OwnerID,
	})
	r.mu.Unlock()

	if notice != nil {
		notice()
	}
	return nil
}

// RemoveAllClaims bulk-removes every claim owned by ownerID. Requires
// elevated privilege; returns the removed count.
func (r *Registry) RemoveAllClaims(requesterID, ownerID string) (int, error) {
	if r.dir == nil || !r.dir.HasElevatedPrivilege(requesterID) {
		return 0, reject(ENoPermission, "elevated privilege required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, c := range r.claims {
		if c.OwnerID != ownerID {
			continue
		}
		delete(r.claims, key)
		r.active.remove(c)
		removed++
	}
	if removed > 0 {
		r.persistLocked()
		r.auditLocked(requesterID, "CLAIM_REMOVE_ALL", [2]int{}, "", map[string]any{
			"owner":   ownerID,
			"removed": removed,
		})
	}
	return removed, nil
}

// TransferClaim hands the named claim to a new owner. Geometry and trust
// set are untouched. Transferring to the current owner is an explicit no-op
// success.
func (r *Registry) TransferClaim(requesterID, name, newOwnerID, newOwnerName string) error {
	key := claimKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[key]
	if !ok {
		return reject(ENotFound, "no claim named '"+name+"'")
	}
	if c.OwnerID != requesterID {
		return reject(ENoPermission, "not the claim owner")
	}
	if newOwnerID == c.OwnerID {
		return nil
	}
	c.TransferOwnership(newOwnerID, newOwnerName)
	r.names.Put(newOwnerID, newOwnerName)
	r.persistLocked()
	r.auditLocked(requesterID, "CLAIM_TRANSFER", [2]int{c.CenterX(), c.CenterZ()}, "", map[string]any{
		"land_name": c.Name,
		"new_owner": newOwnerID,
	})
	return nil
}

// AddTrusted grants targetID modification rights inside the named claim.
// The boolean reports whether the set changed (idempotent add).
func (r *Registry) AddTrusted(requesterID, name, targetID string) (bool, error) {
	return r.editTrust(requesterID, name, targetID, true)
}

// RemoveTrusted revokes a trust grant. The boolean reports whether the set
// changed.
func (r *Registry) RemoveTrusted(requesterID, name, targetID string) (bool, error) {
	return r.editTrust(requesterID, name, targetID, false)
}

func (r *Registry) editTrust(requesterID, name, targetID string, add bool) (bool, error) {
	key := claimKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[key]
	if !ok {
		return false, reject(ENotFound, "no claim named '"+name+"'")
	}
	if c.OwnerID != requesterID {
		return false, reject(ENoPermission, "not the claim owner")
	}
	var changed bool
	action := "TRUST_ADD"
	if add {
		changed = c.AddTrusted(targetID)
	} else {
		changed = c.RemoveTrusted(targetID)
		action = "TRUST_REMOVE"
	}
	if changed {
		r.persistLocked()
		r.auditLocked(requesterID, action, [2]int{c.CenterX(), c.CenterZ()}, "", map[string]any{
			"land_name": c.Name,
			"target":    targetID,
		})
	}
	return changed, nil
}

// CanModifyAt arbitrates block modification at a position. Elevated
// privilege short-circuits to true; otherwise the block is free unless a
// claim covers it and the player is neither owner nor trusted.
func (r *Registry) CanModifyAt(playerID string, x, z int) bool {
	if r.dir != nil && r.dir.HasElevatedPrivilege(playerID) {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.active.at(x, z)
	if c == nil {
		return true
	}
	return c.CanModify(playerID)
}

// ClaimAt returns the active claim covering (x, z), if any.
func (r *Registry) ClaimAt(x, z int) (*Claim, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.active.at(x, z)
	if c == nil {
		return nil, false
	}
	return c.Clone(), true
}

func (r *Registry) ClaimByName(name string) (*Claim, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.claims[claimKey(name)]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// ClaimsByOwner returns the owner's claims sorted by name, a stable order
// within a single snapshot read.
func (r *Registry) ClaimsByOwner(ownerID string) []*Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Claim
	for _, c := range r.claims {
		if c.OwnerID == ownerID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return claimKey(out[i].Name) < claimKey(out[j].Name) })
	return out
}

func (r *Registry) ClaimCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.claims)
}

// OwnerNameOf resolves a claim owner's display name through the fallback
// chain: stored name, online lookup, persisted cache, placeholder.
func (r *Registry) OwnerNameOf(c *Claim) string {
	return r.resolveName(c.OwnerID, c.OwnerName)
}

func (r *Registry) resolveName(playerID, stored string) string {
	var online func(string) (string, bool)
	if r.dir != nil {
		online = func(id string) (string, bool) {
			if !r.dir.IsOnline(id) {
				return "", false
			}
			return r.dir.DisplayName(id)
		}
	}
	return ResolveDisplayName(playerID, stored, online, r.names)
}

func (r *Registry) notify(playerID, msg string) {
	if r.notifier != nil {
		r.notifier.Notify(playerID, msg)
	}
}

func (r *Registry) auditLocked(actor, action string, pos [2]int, reason string, details map[string]any) {
	if r.audit == nil {
		return
	}
	_ = r.audit.WriteAudit(AuditEntry{
		Tick:    r.tick.Load(),
		Actor:   actor,
		Action:  action,
		Pos:     pos,
		Reason:  reason,
		Details: details,
	})
}

// persistLocked snapshots current state to the store. Failures never abort
// the in-memory mutation: they are logged and counted.
func (r *Registry) persistLocked() {
	if r.store == nil {
		return
	}
	if err := r.store.SaveState(r.stateLocked()); err != nil {
		r.saveFailures.Add(1)
		r.log.Printf("persist claims: %v", err)
	}
}

// Persist forces a snapshot write, used by the loop cadence and shutdown.
// The write lock keeps concurrent callers from racing the store.
func (r *Registry) Persist() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistLocked()
}

// FlushNameCache writes the display-name cache if it changed.
func (r *Registry) FlushNameCache() error {
	return r.names.Flush()
}

func (r *Registry) stateLocked() StateV1 {
	st := StateV1{
		Claims: make(map[string]ClaimV1, len(r.claims)),
		Sales:  make(map[string]SaleV1, len(r.sales)),
	}
	for key, c := range r.claims {
		st.Claims[key] = claimToV1(c)
	}
	for key, s := range r.sales {
		st.Sales[key] = SaleV1{
			Claim:      claimToV1(s.Claim),
			Price:      s.Price,
			SellerUUID: s.SellerID,
			SellerName: s.SellerName,
		}
	}
	return st
}

// ExportState returns the durable form of the registry.
func (r *Registry) ExportState() StateV1 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateLocked()
}

// LoadState replaces registry contents from a persisted document. Entries
// that violate the non-overlap or name invariants are skipped with a log
// line rather than failing the whole load.
func (r *Registry) LoadState(st StateV1) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.claims = map[string]*Claim{}
	r.sales = map[string]*Sale{}
	r.active = newSpatialIndex()
	r.listed = newSpatialIndex()

	keys := make([]string, 0, len(st.Claims))
	for key := range st.Claims {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		c := claimFromV1(st.Claims[key])
		k := claimKey(c.Name)
		if _, dup := r.claims[k]; dup {
			r.log.Printf("load: skipping claim %q: duplicate name %q", key, c.Name)
			continue
		}
		if !c.Rect.Valid() || r.active.overlaps(c.Rect) {
			r.log.Printf("load: skipping claim %q: invalid or overlapping rect", key)
			continue
		}
		r.claims[k] = c
		r.active.insert(c)
	}

	keys = keys[:0]
	for key := range st.Sales {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sv := st.Sales[key]
		c := claimFromV1(sv.Claim)
		k := claimKey(c.Name)
		if _, dup := r.claims[k]; dup {
			r.log.Printf("load: skipping sale %q: name collides with an active claim", key)
			continue
		}
		if _, dup := r.sales[k]; dup {
			r.log.Printf("load: skipping sale %q: duplicate name %q", key, c.Name)
			continue
		}
		if !c.Rect.Valid() || r.active.overlaps(c.Rect) || r.listed.overlaps(c.Rect) {
			r.log.Printf("load: skipping sale %q: invalid or overlapping rect", key)
			continue
		}
		r.sales[k] = &Sale{Claim: c, Price: sv.Price, SellerID: sv.SellerUUID, SellerName: sv.SellerName}
		r.listed.insert(c)
	}
}

func claimToV1(c *Claim) ClaimV1 {
	trusted := make([]string, 0, len(c.Trusted))
	for id := range c.Trusted {
		trusted = append(trusted, id)
	}
	sort.Strings(trusted)
	return ClaimV1{
		OwnerUUID:      c.OwnerID,
		OwnerName:      c.OwnerName,
		LandName:       c.Name,
		X1:             c.Rect.X1,
		Z1:             c.Rect.Z1,
		X2:             c.Rect.X2,
		Z2:             c.Rect.Z2,
		Size:           c.Size,
		TrustedPlayers: trusted,
	}
}

func claimFromV1(v ClaimV1) *Claim {
	c := &Claim{
		OwnerID:   v.OwnerUUID,
		OwnerName: v.OwnerName,
		Name:      v.LandName,
		Rect:      Rect{X1: v.X1, Z1: v.Z1, X2: v.X2, Z2: v.Z2},
		Size:      v.Size,
		Trusted:   make(map[string]bool, len(v.TrustedPlayers)),
	}
	for _, id := range v.TrustedPlayers {
		c.Trusted[id] = true
	}
	return c
}
