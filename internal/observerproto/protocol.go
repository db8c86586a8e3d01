package observerproto

// Version is the observer protocol version (separate from the player WS
// protocol). Observers get a read-only live view of the claim map; they
// never mutate anything.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the refresh interval.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// IntervalTicks is how often the server pushes a STATE message.
	IntervalTicks int `json:"interval_ticks"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	TickRateHz      int    `json:"tick_rate_hz"`
	AllowedSizes    []int  `json:"allowed_sizes"`
	Claims          int    `json:"claims"`
	Sales           int    `json:"sales"`
}

// Server -> Client. A full view of the claim map plus online players.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Claims  []ClaimState  `json:"claims"`
	Sales   []SaleState   `json:"sales,omitempty"`
	Players []PlayerState `json:"players,omitempty"`
}

type ClaimState struct {
	LandName  string `json:"land_name"`
	OwnerName string `json:"owner_name"`
	X1        int    `json:"x1"`
	Z1        int    `json:"z1"`
	X2        int    `json:"x2"`
	Z2        int    `json:"z2"`
	Size      int    `json:"size"`
	Trusted   int    `json:"trusted"`
}

type SaleState struct {
	LandName   string `json:"land_name"`
	SellerName string `json:"seller_name"`
	Price      int    `json:"price"`
	X1         int    `json:"x1"`
	Z1         int    `json:"z1"`
	X2         int    `json:"x2"`
	Z2         int    `json:"z2"`
	Size       int    `json:"size"`
}

type PlayerState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	X    int    `json:"x"`
	Z    int    `json:"z"`
}
