package orders

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/paper-api/internal/types"
	"github.com/ksred/paper-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service handles order placement, queries, and the cancel/replace lifecycle
type Service struct {
	db *Database
}

// NewService creates a new order service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// PlaceOrder validates the request document, resolves the account handle,
// and inserts a new WORKING order. Returns the allocated public order ID.
func (s *Service) PlaceOrder(accountHash string, request types.OrderRequest) (int64, error) {
	accountNumber, err := s.resolveAccount(accountHash)
	if err != nil {
		return 0, err
	}

	order, err := buildOrder(accountNumber, request)
	if err != nil {
		return 0, err
	}

	orderID, err := s.db.PlaceOrder(order)
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("service", "orders").
		Int64("order_id", orderID).
		Str("symbol", order.Symbol).
		Str("instruction", order.Instruction).
		Str("order_type", order.OrderType).
		Float64("quantity", order.Quantity).
		Msg("order placed")

	return orderID, nil
}

// GetOrder retrieves an order by its public ID.
func (s *Service) GetOrder(orderID int64) (*types.Order, error) {
	return s.db.GetOrder(orderID)
}

// ListOrders returns orders matching the filter, newest first.
func (s *Service) ListOrders(filter Filter) ([]types.Order, error) {
	if filter.MaxResults < 0 {
		return nil, fmt.Errorf("maxResults cannot be negative: %w", types.ErrInvalidInput)
	}
	return s.db.ListOrders(filter)
}

// ListAccountOrders returns orders for the account behind the given handle.
// A handle that resolves to no account yields an empty list, not an error,
// so queries against a deleted account degrade cleanly.
func (s *Service) ListAccountOrders(accountHash string, filter Filter) ([]types.Order, error) {
	accountNumber, err := s.resolveAccount(accountHash)
	if errors.Is(err, types.ErrNotFound) {
		return []types.Order{}, nil
	}
	if err != nil {
		return nil, err
	}
	filter.AccountNumber = accountNumber
	return s.ListOrders(filter)
}

// CancelOrder cancels a WORKING order. Any other current status yields
// ErrInvalidTransition.
func (s *Service) CancelOrder(orderID int64) error {
	if err := s.db.CancelOrder(orderID); err != nil {
		return err
	}

	log.Info().
		Str("service", "orders").
		Int64("order_id", orderID).
		Msg("order canceled")
	return nil
}

// ReplaceOrder closes the WORKING order as REPLACED and places the new
// request under the same account, returning the new public order ID.
func (s *Service) ReplaceOrder(orderID int64, request types.OrderRequest) (int64, error) {
	// Account is carried over from the replaced order inside the store
	// transaction; validation only needs the document itself.
	newOrder, err := buildOrder("", request)
	if err != nil {
		return 0, err
	}

	newID, err := s.db.ReplaceOrder(orderID, newOrder)
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("service", "orders").
		Int64("order_id", orderID).
		Int64("new_order_id", newID).
		Msg("order replaced")
	return newID, nil
}

func (s *Service) resolveAccount(accountHash string) (string, error) {
	if strings.TrimSpace(accountHash) == "" {
		return "", fmt.Errorf("account hash cannot be empty: %w", types.ErrInvalidInput)
	}
	return s.db.GetAccountNumberByHash(accountHash)
}

// buildOrder validates an order request and maps it onto a row with the
// indexed fields extracted. The full document is stored alongside.
func buildOrder(accountNumber string, request types.OrderRequest) (*types.Order, error) {
	if request.Session == "" {
		return nil, fmt.Errorf("session is required: %w", types.ErrInvalidInput)
	}
	if request.Duration == "" {
		return nil, fmt.Errorf("duration is required: %w", types.ErrInvalidInput)
	}
	if request.OrderType == "" {
		return nil, fmt.Errorf("orderType is required: %w", types.ErrInvalidInput)
	}

	leg, ok := request.FirstLeg()
	if !ok {
		return nil, fmt.Errorf("orderLegCollection cannot be empty: %w", types.ErrInvalidInput)
	}
	if leg.Instrument.Symbol == "" {
		return nil, fmt.Errorf("instrument symbol is required: %w", types.ErrInvalidInput)
	}
	if !types.IsBuy(leg.Instruction) && !types.IsSell(leg.Instruction) {
		return nil, fmt.Errorf("unknown instruction %q: %w", leg.Instruction, types.ErrInvalidInput)
	}

	quantity := request.LegQuantity()
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", types.ErrInvalidInput)
	}

	switch request.OrderType {
	case types.OrderTypeLimit:
		if request.Price <= 0 {
			return nil, fmt.Errorf("LIMIT order requires a positive price: %w", types.ErrInvalidInput)
		}
	case types.OrderTypeStop:
		if request.StopPrice <= 0 {
			return nil, fmt.Errorf("STOP order requires a positive stop price: %w", types.ErrInvalidInput)
		}
	}

	data, err := request.Marshal()
	if err != nil {
		return nil, fmt.Errorf("malformed order request: %w", types.ErrInvalidInput)
	}

	return &types.Order{
		AccountNumber: accountNumber,
		Symbol:        leg.Instrument.Symbol,
		Instruction:   leg.Instruction,
		OrderType:     request.OrderType,
		Quantity:      quantity,
		Price:         request.Price,
		StopPrice:     request.StopPrice,
		OrderData:     data,
	}, nil
}

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceOrderHandler handles POST requests to place a new order
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request types.OrderRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		orderID, err := h.service.PlaceOrder(c.Param("accountHash"), request)
		response.Handle(c, gin.H{"order_id": orderID}, err)
	}
}

// GetOrderHandler handles GET requests for a single order
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseOrderID(c.Param("orderId"))
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.GetOrder(orderID)
		response.Handle(c, order, err)
	}
}

// ListOrdersHandler handles GET requests for an account's orders
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := filterFromQuery(c)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		orders, err := h.service.ListAccountOrders(c.Param("accountHash"), filter)
		response.Handle(c, orders, err)
	}
}

// ListAllOrdersHandler handles GET requests for orders across all accounts
func (h *GinHandlers) ListAllOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := filterFromQuery(c)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		orders, err := h.service.ListOrders(filter)
		response.Handle(c, orders, err)
	}
}

// CancelOrderHandler handles DELETE requests to cancel a WORKING order
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseOrderID(c.Param("orderId"))
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err = h.service.CancelOrder(orderID)
		response.Handle(c, gin.H{"canceled": err == nil}, err)
	}
}

// ReplaceOrderHandler handles PUT requests to replace a WORKING order
func (h *GinHandlers) ReplaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := parseOrderID(c.Param("orderId"))
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		var request types.OrderRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		newID, err := h.service.ReplaceOrder(orderID, request)
		response.Handle(c, gin.H{"order_id": newID}, err)
	}
}

func parseOrderID(raw string) (int64, error) {
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order ID %q", raw)
	}
	return orderID, nil
}

func filterFromQuery(c *gin.Context) (Filter, error) {
	filter := Filter{Status: c.Query("status")}

	if raw := c.Query("fromEnteredTime"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid fromEnteredTime %q", raw)
		}
		filter.FromEnteredTime = t
	}
	if raw := c.Query("toEnteredTime"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid toEnteredTime %q", raw)
		}
		filter.ToEnteredTime = t
	}
	if raw := c.Query("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid maxResults %q", raw)
		}
		filter.MaxResults = n
	}

	return filter, nil
}
