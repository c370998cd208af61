package marketdata

import (
	"sync"
	"testing"

	"github.com/ksred/paper-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPriceStaysWithinBand(t *testing.T) {
	service := NewService()

	for i := 0; i < 200; i++ {
		price, err := service.GetPrice("AAPL")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, price, 175.0*0.99)
		assert.LessOrEqual(t, price, 175.0*1.01)
	}
}

func TestGetPriceRoundsToCents(t *testing.T) {
	service := NewService()

	for i := 0; i < 50; i++ {
		price, err := service.GetPrice("MSFT")
		require.NoError(t, err)
		cents := price * 100
		assert.InDelta(t, cents, float64(int64(cents+0.5)), 1e-6)
	}
}

func TestGetPriceUnknownSymbol(t *testing.T) {
	service := NewService()

	_, err := service.GetPrice("DOESNOTEXIST")
	assert.ErrorIs(t, err, types.ErrUnknownSymbol)
}

func TestAddSymbol(t *testing.T) {
	service := NewService()

	assert.False(t, service.HasSymbol("ACME"))
	service.AddSymbol("ACME", 42.0)
	assert.True(t, service.HasSymbol("ACME"))

	price, err := service.GetPrice("ACME")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, price, 42.0*0.99)
	assert.LessOrEqual(t, price, 42.0*1.01)
}

func TestConcurrentAccess(t *testing.T) {
	service := NewService()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if n%2 == 0 {
					_, err := service.GetPrice("SPY")
					assert.NoError(t, err)
				} else {
					service.AddSymbol("NEW", float64(n))
				}
			}
		}(i)
	}
	wg.Wait()
}
