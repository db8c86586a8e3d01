package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeMove    = "MOVE"
	TypeCmd     = "CMD"
	TypeResult  = "RESULT"
	TypeNotice  = "NOTICE"
)

// Command ops carried by CMD messages.
const (
	OpCreate      = "create"
	OpRemove      = "remove"
	OpRemoveAll   = "removeall"
	OpTransfer    = "transfer"
	OpTrust       = "trust"
	OpUntrust     = "untrust"
	OpInfo        = "info"
	OpInfoAt      = "info_at"
	OpList        = "list"
	OpSell        = "sell"
	OpBuy         = "buy"
	OpCancelSale  = "cancel_sale"
	OpSales       = "sales"
	OpModifyCheck = "modify_check"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	PlayerName      string `json:"player_name"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
	TickRateHz      int    `json:"tick_rate_hz"`
	AllowedSizes    []int  `json:"allowed_sizes"`
}

// MoveMsg reports the player's block position; the server tracks the last
// one for presence checks and claim creation.
type MoveMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Z    int    `json:"z"`
}

type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`

	Name       string `json:"name,omitempty"`   // claim name
	Size       int    `json:"size,omitempty"`   // create
	Price      int    `json:"price,omitempty"`  // sell
	Target     string `json:"target,omitempty"` // trust/untrust/transfer/list/removeall: player id
	TargetName string `json:"target_name,omitempty"`
	X          int    `json:"x,omitempty"` // info_at / modify_check
	Z          int    `json:"z,omitempty"`
}

type ClaimInfo struct {
	LandName  string `json:"land_name"`
	OwnerName string `json:"owner_name"`
	Size      int    `json:"size"`
	X1        int    `json:"x1"`
	Z1        int    `json:"z1"`
	X2        int    `json:"x2"`
	Z2        int    `json:"z2"`
	Trusted   int    `json:"trusted"`
}

type SaleInfo struct {
	LandName   string `json:"land_name"`
	SellerName string `json:"seller_name"`
	Price      int    `json:"price"`
	Size       int    `json:"size"`
}

type ResultMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	OK   bool   `json:"ok"`
	Code string `json:"code,omitempty"`
	Msg  string `json:"msg,omitempty"`

	Claim   *ClaimInfo  `json:"claim,omitempty"`
	Claims  []ClaimInfo `json:"claims,omitempty"`
	Sales   []SaleInfo  `json:"sales,omitempty"`
	Allowed *bool       `json:"allowed,omitempty"` // modify_check
	Removed int         `json:"removed,omitempty"` // removeall
}

type NoticeMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
