package marketdata

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/ksred/paper-api/internal/types"
)

// Service supplies simulated current prices for fill-eligibility decisions.
// Each known symbol has a deterministic baseline; every call applies a small
// bounded jitter to simulate movement without an external feed. Safe under
// concurrent calls from overlapping execution ticks.
type Service struct {
	mu         sync.RWMutex
	basePrices map[string]float64
}

// NewService creates a market data service with realistic base prices for
// common symbols.
func NewService() *Service {
	return &Service{
		basePrices: map[string]float64{
			"AAPL":  175.0,
			"GOOGL": 140.0,
			"MSFT":  380.0,
			"AMZN":  155.0,
			"TSLA":  245.0,
			"NVDA":  485.0,
			"META":  450.0,
			"JPM":   160.0,
			"V":     270.0,
			"WMT":   68.0,
			"SPY":   470.0,
			"QQQ":   395.0,
		},
	}
}

// GetPrice returns the current simulated price for a symbol: the baseline
// plus a variation of at most ±1%, rounded to cents.
func (s *Service) GetPrice(symbol string) (float64, error) {
	s.mu.RLock()
	base, ok := s.basePrices[symbol]
	s.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("symbol %s: %w", symbol, types.ErrUnknownSymbol)
	}

	variation := rand.Float64()*0.02 - 0.01
	price := base * (1 + variation)

	return math.Round(price*100) / 100, nil
}

// AddSymbol registers a custom symbol with a base price.
func (s *Service) AddSymbol(symbol string, basePrice float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.basePrices[symbol] = basePrice
}

// HasSymbol reports whether a symbol is known to the oracle.
func (s *Service) HasSymbol(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.basePrices[symbol]
	return ok
}
