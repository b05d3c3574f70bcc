package strategy

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client order id prefixes that tag orders as belonging to the grid.
const (
	BuyPrefix        = "GRIDBUY-"
	TakeProfitPrefix = "GRIDTP-"
	LiquidatePrefix  = "GRIDLIQ-"
)

// NewBuyClientID mints a fresh id for a grid buy at price.
// Every submission attempt gets a new id, including retries of the same level.
func NewBuyClientID(price, tick decimal.Decimal) string {
	return BuyPrefix + price.StringFixed(TickPlaces(tick)) + "-" + shortUUID()
}

// NewLiquidateClientID mints an id for a liquidation market order.
func NewLiquidateClientID() string {
	return LiquidatePrefix + shortUUID()
}

// TakeProfitClientID derives the take-profit id from the originating buy id.
// The mapping is deterministic so a fill can only ever be linked to one id.
func TakeProfitClientID(buyID string) string {
	return TakeProfitPrefix + buyID
}

// BuyIDFromTakeProfit recovers the originating buy id of a take-profit id.
func BuyIDFromTakeProfit(tpID string) (string, bool) {
	buyID, ok := strings.CutPrefix(tpID, TakeProfitPrefix)
	if !ok || !IsGridBuy(buyID) {
		return "", false
	}
	return buyID, true
}

// IsGridBuy reports whether id tags a grid buy.
func IsGridBuy(id string) bool {
	return strings.HasPrefix(id, BuyPrefix)
}

// IsTakeProfit reports whether id tags a grid take-profit.
func IsTakeProfit(id string) bool {
	return strings.HasPrefix(id, TakeProfitPrefix)
}

// IsGridOrder reports whether id belongs to any resting grid order.
func IsGridOrder(id string) bool {
	return IsGridBuy(id) || IsTakeProfit(id)
}

func shortUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// TickPlaces returns the number of decimal places of a price tick.
func TickPlaces(tick decimal.Decimal) int32 {
	if exp := tick.Exponent(); exp < 0 {
		return -exp
	}
	return 0
}
