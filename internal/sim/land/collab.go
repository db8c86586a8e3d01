package land

// Collaborator interfaces consumed by the registry. The command/transport
// layer supplies real implementations; tests use in-memory fakes.

// Directory is the identity/position source for players.
type Directory interface {
	// Position reports the player's current block position; ok is false
	// when the player is offline.
	Position(playerID string) (x, z int, ok bool)
	DisplayName(playerID string) (string, bool)
	IsOnline(playerID string) bool
	HasElevatedPrivilege(playerID string) bool
	OnlinePlayers() []string
}

// Economy is the balance ledger consulted by sale purchases only.
type Economy interface {
	Balance(playerID string) int
	// Debit returns an error when the player cannot cover the amount.
	Debit(playerID string, amount int) error
	Credit(playerID string, amount int)
}

// Notifier delivers chat messages. Fire-and-forget; the registry never
// consumes a return value.
type Notifier interface {
	Notify(playerID, message string)
}

// AuditLogger records mutating registry operations. May be nil.
type AuditLogger interface {
	WriteAudit(e AuditEntry) error
}

type AuditEntry struct {
	Tick    uint64         `json:"tick"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "CLAIM_CREATE"
	Pos     [2]int         `json:"pos"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Store is the persistence gateway for registry state. May be nil; a nil
// store keeps the registry purely in-memory.
type Store interface {
	SaveState(st StateV1) error
}

// StateV1 is the durable form of the registry: both documents, keyed by
// lowercase claim name.
type StateV1 struct {
	Claims map[string]ClaimV1 `json:"claims"`
	Sales  map[string]SaleV1  `json:"sales"`
}

type ClaimV1 struct {
	OwnerUUID      string   `json:"owner_uuid"`
	OwnerName      string   `json:"owner_name"`
	LandName       string   `json:"land_name"`
	X1             int      `json:"x1"`
	Z1             int      `json:"z1"`
	X2             int      `json:"x2"`
	Z2             int      `json:"z2"`
	Size           int      `json:"size"`
	TrustedPlayers []string `json:"trusted_players,omitempty"`
}

type SaleV1 struct {
	Claim      ClaimV1 `json:"claim"`
	Price      int     `json:"price"`
	SellerUUID string  `json:"seller_uuid"`
	SellerName string  `json:"seller_name"`
}
