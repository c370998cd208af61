package types

import (
	"time"

	"gorm.io/gorm"
)

// Order status values. Transitions are one-directional: an order is created
// WORKING and moves exactly once to a terminal state (or to REPLACED, which
// spawns a new WORKING order under the same account).
const (
	OrderStatusWorking  = "WORKING"
	OrderStatusFilled   = "FILLED"
	OrderStatusCanceled = "CANCELED"
	OrderStatusReplaced = "REPLACED"
	OrderStatusExpired  = "EXPIRED"
	OrderStatusRejected = "REJECTED"
)

const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
	OrderTypeStop   = "STOP"
)

const (
	InstructionBuy         = "BUY"
	InstructionSell        = "SELL"
	InstructionBuyToOpen   = "BUY_TO_OPEN"
	InstructionBuyToClose  = "BUY_TO_CLOSE"
	InstructionSellToOpen  = "SELL_TO_OPEN"
	InstructionSellToClose = "SELL_TO_CLOSE"
)

const TransactionTypeTrade = "TRADE"

// Account is a paper trading account. AccountData holds the full balance and
// position snapshot as an opaque versioned JSON document; the externally
// visible identifiers are the 8-digit account number and its hash.
type Account struct {
	gorm.Model    `json:"-"`
	AccountNumber string `gorm:"uniqueIndex" json:"account_number"`
	HashValue     string `gorm:"uniqueIndex" json:"hash_value"`
	AccountType   string `json:"account_type"` // CASH
	AccountData   string `json:"-"`
}

// AccountNumberHash pairs an account number with its opaque hash, as returned
// by the account numbers endpoint.
type AccountNumberHash struct {
	AccountNumber string `json:"accountNumber"`
	HashValue     string `json:"hashValue"`
}

// Order is a persisted order row. OrderData carries the original request
// document; the remaining columns are fields extracted from it so that
// status/time/account queries stay in the database.
type Order struct {
	gorm.Model     `json:"-"`
	OrderID        int64      `gorm:"uniqueIndex" json:"order_id"`
	AccountNumber  string     `gorm:"index:idx_orders_account_status;index:idx_orders_account_entered" json:"account_number"`
	Status         string     `gorm:"index:idx_orders_account_status" json:"status"`
	Symbol         string     `json:"symbol"`
	Instruction    string     `json:"instruction"`
	OrderType      string     `json:"order_type"`
	Quantity       float64    `json:"quantity"`
	FilledQuantity float64    `json:"filled_quantity"`
	Price          float64    `json:"price,omitempty"`
	StopPrice      float64    `json:"stop_price,omitempty"`
	OrderData      string     `json:"-"`
	EnteredTime    time.Time  `gorm:"index:idx_orders_account_entered" json:"entered_time"`
	CloseTime      *time.Time `json:"close_time,omitempty"`
}

// Transaction is an append-only settled fill record. Rows are immutable and
// removed only when the owning account is deleted or reset.
type Transaction struct {
	gorm.Model      `json:"-"`
	ActivityID      int64     `gorm:"uniqueIndex" json:"activity_id"`
	AccountNumber   string    `gorm:"index:idx_txns_account_type;index:idx_txns_account_time" json:"account_number"`
	Type            string    `gorm:"index:idx_txns_account_type" json:"type"`
	OrderID         int64     `json:"order_id"`
	Symbol          string    `json:"symbol"`
	Quantity        float64   `json:"quantity"`
	Price           float64   `json:"price"`
	NetAmount       float64   `json:"net_amount"`
	TransactionData string    `json:"-"`
	Time            time.Time `gorm:"index:idx_txns_account_time" json:"time"`
}

// UserPreference is a singleton configuration document, last write wins.
type UserPreference struct {
	gorm.Model     `json:"-"`
	PreferenceData string `json:"-"`
}

// Sequence is a named monotonic counter. Counters are seeded at migration
// time and incremented inside the same transaction as the insert that
// consumes the value, so concurrent allocations never collide.
type Sequence struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}

const (
	SequenceOrderID    = "order_id"
	SequenceActivityID = "activity_id"

	// Public order and activity IDs both start at 1001.
	SequenceSeed = 1000
)

// IsBuy reports whether an instruction opens or adds to a long exposure.
func IsBuy(instruction string) bool {
	switch instruction {
	case InstructionBuy, InstructionBuyToOpen, InstructionBuyToClose:
		return true
	}
	return false
}

// IsSell reports whether an instruction reduces or shorts exposure.
func IsSell(instruction string) bool {
	switch instruction {
	case InstructionSell, InstructionSellToOpen, InstructionSellToClose:
		return true
	}
	return false
}

// TerminalStatus reports whether a status can never transition again.
// REPLACED is terminal for the replaced row; the replacement is a new row.
func TerminalStatus(status string) bool {
	switch status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusReplaced,
		OrderStatusExpired, OrderStatusRejected:
		return true
	}
	return false
}
