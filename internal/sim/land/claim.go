package land

// DefaultSizes are the claim side lengths players may request unless the
// registry is configured otherwise.
var DefaultSizes = []int{16, 32}

// Claim is a named, owned, exclusive rectangle of land. Geometry and size
// are immutable after construction; owner fields and the trust set mutate
// only through Registry operations.
type Claim struct {
	OwnerID   string
	OwnerName string // cached display name, best-effort
	Name      string // display casing; registry keys are lowercase
	Rect      Rect
	Size      int
	Trusted   map[string]bool // player ids
}

func NewClaim(ownerID, ownerName, name string, centerX, centerZ, size int) *Claim {
	return &Claim{
		OwnerID:   ownerID,
		OwnerName: ownerName,
		Name:      name,
		Rect:      RectFromCenter(centerX, centerZ, size),
		Size:      size,
		Trusted:   map[string]bool{},
	}
}

func (c *Claim) Contains(x, z int) bool {
	return c.Rect.Contains(x, z)
}

// CanModify reports whether the player may change blocks inside the claim:
// the owner, or anyone on the trust list.
func (c *Claim) CanModify(playerID string) bool {
	return c.OwnerID == playerID || c.Trusted[playerID]
}

func (c *Claim) IsTrusted(playerID string) bool {
	return c.Trusted[playerID]
}

// AddTrusted returns false if the player was already trusted.
func (c *Claim) AddTrusted(playerID string) bool {
	if c.Trusted[playerID] {
		return false
	}
	c.Trusted[playerID] = true
	return true
}

// RemoveTrusted returns false if the player was not trusted.
func (c *Claim) RemoveTrusted(playerID string) bool {
	if !c.Trusted[playerID] {
		return false
	}
	delete(c.Trusted, playerID)
	return true
}

// TransferOwnership replaces the owner fields. The trust set carries over
// to the new owner; see DESIGN.md for the policy decision.
func (c *Claim) TransferOwnership(newOwnerID, newOwnerName string) {
	c.OwnerID = newOwnerID
	c.OwnerName = newOwnerName
}

func (c *Claim) CenterX() int { return c.Rect.X1 + c.Size/2 }
func (c *Claim) CenterZ() int { return c.Rect.Z1 + c.Size/2 }

// Clone returns a deep copy, used for snapshot reads and sale listings so
// callers never alias registry-owned state.
func (c *Claim) Clone() *Claim {
	cp := *c
	cp.Trusted = make(map[string]bool, len(c.Trusted))
	for id := range c.Trusted {
		cp.Trusted[id] = true
	}
	return &cp
}
