package transactions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/paper-api/internal/types"
	"github.com/ksred/paper-api/pkg/response"
	"gorm.io/gorm"
)

// Service exposes read access to the settled-fill ledger. Records are
// created only by the execution loop and removed only by account cascade.
type Service struct {
	db *Database
}

// NewService creates a new transaction service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// GetTransaction retrieves a ledger record by its public activity ID.
func (s *Service) GetTransaction(activityID int64) (*types.Transaction, error) {
	return s.db.GetByActivityID(activityID)
}

// ListTransactions returns records matching the filter, newest first.
func (s *Service) ListTransactions(filter Filter) ([]types.Transaction, error) {
	if filter.MaxResults < 0 {
		return nil, fmt.Errorf("maxResults cannot be negative: %w", types.ErrInvalidInput)
	}
	return s.db.ListTransactions(filter)
}

// ListAccountTransactions returns records for the account behind the handle.
// A handle that resolves to no account yields an empty list, not an error,
// so queries against a deleted account degrade cleanly.
func (s *Service) ListAccountTransactions(accountHash string, filter Filter) ([]types.Transaction, error) {
	if strings.TrimSpace(accountHash) == "" {
		return nil, fmt.Errorf("account hash cannot be empty: %w", types.ErrInvalidInput)
	}

	accountNumber, err := s.db.GetAccountNumberByHash(accountHash)
	if errors.Is(err, types.ErrNotFound) {
		return []types.Transaction{}, nil
	}
	if err != nil {
		return nil, err
	}
	filter.AccountNumber = accountNumber
	return s.ListTransactions(filter)
}

// GinHandlers contains HTTP handlers for transaction endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for transaction endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetTransactionHandler handles GET requests for a single transaction
func (h *GinHandlers) GetTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activityID, err := strconv.ParseInt(c.Param("transactionId"), 10, 64)
		if err != nil {
			response.BadRequest(c, fmt.Sprintf("invalid transaction ID %q", c.Param("transactionId")))
			return
		}

		txn, err := h.service.GetTransaction(activityID)
		response.Handle(c, txn, err)
	}
}

// ListTransactionsHandler handles GET requests for an account's transactions
func (h *GinHandlers) ListTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := Filter{Type: c.Query("types")}

		if raw := c.Query("startDate"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.BadRequest(c, fmt.Sprintf("invalid startDate %q", raw))
				return
			}
			filter.FromTime = t
		}
		if raw := c.Query("endDate"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.BadRequest(c, fmt.Sprintf("invalid endDate %q", raw))
				return
			}
			filter.ToTime = t
		}

		txns, err := h.service.ListAccountTransactions(c.Param("accountHash"), filter)
		response.Handle(c, txns, err)
	}
}
