package land

// Rejection codes. All are recoverable, caller-visible outcomes; none are
// process-fatal.
const (
	ENameTaken    = "E_NAME_TAKEN"
	EAreaOccupied = "E_AREA_OCCUPIED"
	EAreaForSale  = "E_AREA_FOR_SALE"
	ENotFound     = "E_NOT_FOUND"
	ENoPermission = "E_NO_PERMISSION"
	EBadRequest   = "E_BAD_REQUEST"
	ENotListed    = "E_NOT_LISTED"
	ENoFunds      = "E_NO_FUNDS"
)

// Reject is the error type for every rejected registry operation. A rejected
// call leaves registry, index and ledger state untouched.
type Reject struct {
	Code string
	Msg  string
}

func (r *Reject) Error() string { return r.Code + ": " + r.Msg }

func reject(code, msg string) *Reject {
	return &Reject{Code: code, Msg: msg}
}

// RejectCode extracts the E_* code from an operation error, or "" when the
// error is nil or not a rejection.
func RejectCode(err error) string {
	if err == nil {
		return ""
	}
	if r, ok := err.(*Reject); ok {
		return r.Code
	}
	return ""
}
