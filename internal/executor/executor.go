package executor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ksred/paper-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PriceSource supplies the current simulated price for a symbol.
// Implemented by the market data service; tests substitute scripted prices.
type PriceSource interface {
	GetPrice(symbol string) (float64, error)
}

// Processor is the order execution loop. On a fixed tick it scans WORKING
// orders, checks fill eligibility against the price source, and settles
// eligible orders atomically. It is the only writer that fills orders.
type Processor struct {
	db       *Database
	prices   PriceSource
	interval time.Duration
}

// NewProcessor creates an execution processor with the given tick interval.
func NewProcessor(gormDB *gorm.DB, prices PriceSource, interval time.Duration) *Processor {
	return &Processor{
		db:       NewDatabase(gormDB),
		prices:   prices,
		interval: interval,
	}
}

// Start begins the execution loop. It runs until the context is canceled;
// an in-flight fill transaction always completes or fully rolls back.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "order_executor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting order executor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down order executor")
			return
		case <-ticker.C:
			if err := p.ProcessWorkingOrders(); err != nil {
				logger.Error().Err(err).Msg("failed to process working orders")
			}
		}
	}
}

// ProcessWorkingOrders runs a single execution pass. A storage failure on
// one order aborts that fill atomically and leaves it WORKING for the next
// tick; it never stops the pass.
func (p *Processor) ProcessWorkingOrders() error {
	logger := log.With().Str("component", "order_executor").Logger()

	orders, err := p.db.GetWorkingOrders()
	if err != nil {
		return err
	}

	for i := range orders {
		order := &orders[i]

		fillPrice, eligible, err := p.evaluate(order)
		if err != nil {
			if errors.Is(err, types.ErrUnknownSymbol) {
				// Stays WORKING until explicitly canceled.
				logger.Debug().
					Int64("order_id", order.OrderID).
					Str("symbol", order.Symbol).
					Msg("no price for symbol, order stays open")
				continue
			}
			logger.Error().Err(err).
				Int64("order_id", order.OrderID).
				Msg("failed to evaluate order")
			continue
		}
		if !eligible {
			continue
		}

		filled, err := p.db.FillOrder(order, fillPrice)
		if err != nil {
			logger.Error().Err(err).
				Int64("order_id", order.OrderID).
				Msg("fill aborted, order left open for retry")
			continue
		}
		if !filled {
			logger.Debug().
				Int64("order_id", order.OrderID).
				Msg("order closed concurrently, skipping fill")
			continue
		}

		logger.Info().
			Int64("order_id", order.OrderID).
			Str("symbol", order.Symbol).
			Str("instruction", order.Instruction).
			Float64("quantity", order.Quantity).
			Float64("fill_price", fillPrice).
			Msg("order filled")
	}

	return nil
}

// evaluate applies the fill predicate for the order's type and side.
// MARKET orders are always eligible. LIMIT buys fill at or below the limit,
// LIMIT sells at or above. STOP orders activate through the stop price and
// then fill as market. Unsupported order types never become eligible.
func (p *Processor) evaluate(order *types.Order) (fillPrice float64, eligible bool, err error) {
	price, err := p.prices.GetPrice(order.Symbol)
	if err != nil {
		return 0, false, err
	}

	switch order.OrderType {
	case types.OrderTypeMarket:
		return price, true, nil

	case types.OrderTypeLimit:
		if types.IsBuy(order.Instruction) && price <= order.Price {
			return price, true, nil
		}
		if types.IsSell(order.Instruction) && price >= order.Price {
			return price, true, nil
		}

	case types.OrderTypeStop:
		if types.IsBuy(order.Instruction) && price >= order.StopPrice {
			return price, true, nil
		}
		if types.IsSell(order.Instruction) && price <= order.StopPrice {
			return price, true, nil
		}
	}

	return 0, false, nil
}

// settlementDocument builds the opaque ledger payload recorded with a fill.
func settlementDocument(order *types.Order, fillPrice, netAmount float64, at time.Time) (string, error) {
	doc := struct {
		OrderID     int64     `json:"orderId"`
		Symbol      string    `json:"symbol"`
		Instruction string    `json:"instruction"`
		Quantity    float64   `json:"quantity"`
		Price       float64   `json:"price"`
		NetAmount   float64   `json:"netAmount"`
		Time        time.Time `json:"time"`
	}{
		OrderID:     order.OrderID,
		Symbol:      order.Symbol,
		Instruction: order.Instruction,
		Quantity:    order.Quantity,
		Price:       fillPrice,
		NetAmount:   netAmount,
		Time:        at,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
