package types

import "encoding/json"

// InitialCashBalance is the fixed starting balance for every new account.
const InitialCashBalance = 200_000.0

// AccountSnapshot is the versioned balance/position document stored in
// Account.AccountData. The engine mutates it only inside a fill or reset
// transaction; readers always see a fully committed document.
type AccountSnapshot struct {
	Version         int        `json:"version"`
	AccountNumber   string     `json:"accountNumber"`
	Type            string     `json:"type"`
	RoundTrips      int        `json:"roundTrips"`
	IsDayTrader     bool       `json:"isDayTrader"`
	InitialBalances Balances   `json:"initialBalances"`
	CurrentBalances Balances   `json:"currentBalances"`
	Positions       []Position `json:"positions,omitempty"`
}

type Balances struct {
	CashAvailableForTrading float64 `json:"cashAvailableForTrading"`
	TotalCash               float64 `json:"totalCash"`
}

type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"averagePrice"`
	MarketValue  float64 `json:"marketValue"`
}

// NewCashAccountSnapshot returns the fresh-account baseline: fixed starting
// cash and no positions.
func NewCashAccountSnapshot(accountNumber string) AccountSnapshot {
	balances := Balances{
		CashAvailableForTrading: InitialCashBalance,
		TotalCash:               InitialCashBalance,
	}
	return AccountSnapshot{
		Version:         1,
		AccountNumber:   accountNumber,
		Type:            "CASH",
		InitialBalances: balances,
		CurrentBalances: balances,
	}
}

// Marshal serializes the snapshot into its stored document form.
func (s AccountSnapshot) Marshal() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalAccountSnapshot parses a stored account document.
func UnmarshalAccountSnapshot(data string) (AccountSnapshot, error) {
	var s AccountSnapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return AccountSnapshot{}, err
	}
	return s, nil
}

// ApplyFill updates cash and positions for a settled fill. Buys reduce cash
// and average into the position; sells add cash and reduce the position,
// dropping it once the quantity reaches zero.
func (s *AccountSnapshot) ApplyFill(symbol, instruction string, quantity, price float64) {
	amount := quantity * price

	if IsBuy(instruction) {
		s.CurrentBalances.CashAvailableForTrading -= amount
		s.CurrentBalances.TotalCash -= amount

		for i := range s.Positions {
			if s.Positions[i].Symbol != symbol {
				continue
			}
			p := &s.Positions[i]
			total := p.Quantity + quantity
			p.AveragePrice = (p.AveragePrice*p.Quantity + amount) / total
			p.Quantity = total
			p.MarketValue = p.Quantity * price
			return
		}
		s.Positions = append(s.Positions, Position{
			Symbol:       symbol,
			Quantity:     quantity,
			AveragePrice: price,
			MarketValue:  amount,
		})
		return
	}

	s.CurrentBalances.CashAvailableForTrading += amount
	s.CurrentBalances.TotalCash += amount

	for i := range s.Positions {
		if s.Positions[i].Symbol != symbol {
			continue
		}
		p := &s.Positions[i]
		p.Quantity -= quantity
		p.MarketValue = p.Quantity * price
		if p.Quantity <= 0 {
			s.Positions = append(s.Positions[:i], s.Positions[i+1:]...)
		}
		return
	}
}
