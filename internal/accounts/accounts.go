package accounts

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ksred/paper-api/internal/types"
	"github.com/ksred/paper-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const createAttempts = 10

// Service owns the account lifecycle: creation with identifier minting,
// cascade delete, and reset to the fresh-account baseline.
type Service struct {
	db *Database
}

// NewService creates a new account service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateAccount mints a new paper trading account. The 8-digit account
// number is sampled uniformly and retried on collision; the externally
// visible handle is the SHA-256 digest of the number, so identical numbers
// always map to the same handle without exposing a sequential value.
func (s *Service) CreateAccount() (*types.AccountNumberHash, error) {
	logger := log.With().Str("service", "accounts").Logger()

	for attempt := 0; attempt < createAttempts; attempt++ {
		number := fmt.Sprintf("%d", rand.Intn(90_000_000)+10_000_000)

		exists, err := s.db.NumberExists(number)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		hash := hashAccountNumber(number)
		snapshot := types.NewCashAccountSnapshot(number)
		data, err := snapshot.Marshal()
		if err != nil {
			return nil, types.StorageFailure(err)
		}

		account := &types.Account{
			AccountNumber: number,
			HashValue:     hash,
			AccountType:   "CASH",
			AccountData:   data,
		}

		if err := s.db.CreateAccount(account); err != nil {
			// Lost a race to another creator for the same number.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, err
		}

		logger.Info().
			Str("account_number", number).
			Msg("created paper trading account")

		return &types.AccountNumberHash{
			AccountNumber: number,
			HashValue:     hash,
		}, nil
	}

	return nil, types.StorageFailure(errors.New("exhausted account number attempts"))
}

// GetAccount returns the balance/position snapshot for the given handle.
func (s *Service) GetAccount(hash string) (*types.AccountSnapshot, error) {
	if err := validateHash(hash); err != nil {
		return nil, err
	}

	account, err := s.db.GetByHash(hash)
	if err != nil {
		return nil, err
	}

	snapshot, err := types.UnmarshalAccountSnapshot(account.AccountData)
	if err != nil {
		return nil, types.StorageFailure(err)
	}
	return &snapshot, nil
}

// ListAccounts returns the snapshots of every account.
func (s *Service) ListAccounts() ([]types.AccountSnapshot, error) {
	accounts, err := s.db.ListAccounts()
	if err != nil {
		return nil, err
	}

	snapshots := make([]types.AccountSnapshot, 0, len(accounts))
	for _, account := range accounts {
		snapshot, err := types.UnmarshalAccountSnapshot(account.AccountData)
		if err != nil {
			return nil, types.StorageFailure(err)
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// ListAccountNumbers returns every account number with its handle.
func (s *Service) ListAccountNumbers() ([]types.AccountNumberHash, error) {
	return s.db.ListNumberHashes()
}

// DeleteAccount removes the account and all of its orders and transactions.
func (s *Service) DeleteAccount(hash string) error {
	if err := validateHash(hash); err != nil {
		return err
	}

	if err := s.db.DeleteCascade(hash); err != nil {
		return err
	}

	log.Info().
		Str("service", "accounts").
		Str("account_hash", hash).
		Msg("deleted account and owned records")
	return nil
}

// ResetAccount restores the baseline balance and purges the account's orders
// and transactions while preserving its identifiers.
func (s *Service) ResetAccount(hash string) error {
	if err := validateHash(hash); err != nil {
		return err
	}

	account, err := s.db.GetByHash(hash)
	if err != nil {
		return err
	}

	baseline := types.NewCashAccountSnapshot(account.AccountNumber)
	data, err := baseline.Marshal()
	if err != nil {
		return types.StorageFailure(err)
	}

	if err := s.db.ResetCascade(hash, data); err != nil {
		return err
	}

	log.Info().
		Str("service", "accounts").
		Str("account_number", account.AccountNumber).
		Msg("reset account to baseline")
	return nil
}

// hashAccountNumber derives the opaque handle: the SHA-256 digest of the
// account number as 64 uppercase hex characters.
func hashAccountNumber(number string) string {
	return fmt.Sprintf("%X", sha256.Sum256([]byte(number)))
}

func validateHash(hash string) error {
	if strings.TrimSpace(hash) == "" {
		return fmt.Errorf("account hash cannot be empty: %w", types.ErrInvalidInput)
	}
	return nil
}

// GinHandlers contains HTTP handlers for account endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for account endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetAccountNumbersHandler handles GET requests for all account number/hash pairs
func (h *GinHandlers) GetAccountNumbersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pairs, err := h.service.ListAccountNumbers()
		response.Handle(c, pairs, err)
	}
}

// GetAccountsHandler handles GET requests for all account snapshots
func (h *GinHandlers) GetAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshots, err := h.service.ListAccounts()
		response.Handle(c, snapshots, err)
	}
}

// GetAccountHandler handles GET requests for a single account by its hash
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := h.service.GetAccount(c.Param("accountHash"))
		response.Handle(c, snapshot, err)
	}
}

// CreateAccountHandler handles POST requests to create a new paper account
func (h *GinHandlers) CreateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pair, err := h.service.CreateAccount()
		response.Handle(c, pair, err)
	}
}

// DeleteAccountHandler handles DELETE requests to remove an account
func (h *GinHandlers) DeleteAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.service.DeleteAccount(c.Param("accountHash"))
		response.Handle(c, gin.H{"deleted": err == nil}, err)
	}
}

// ResetAccountHandler handles POST requests to reset an account to baseline
func (h *GinHandlers) ResetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.service.ResetAccount(c.Param("accountHash"))
		response.Handle(c, gin.H{"reset": err == nil}, err)
	}
}
