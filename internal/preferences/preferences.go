package preferences

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ksred/paper-api/internal/types"
	"github.com/ksred/paper-api/pkg/response"
	"gorm.io/gorm"
)

// Service manages the user preference singleton. The document is opaque to
// the engine; updates are last-write-wins.
type Service struct {
	db *gorm.DB
}

// NewService creates a new preference service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: gormDB}
}

// Get returns the stored preference document, or ErrNotFound when none has
// been written yet.
func (s *Service) Get() (json.RawMessage, error) {
	var pref types.UserPreference
	if err := s.db.Order("id ASC").First(&pref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user preference: %w", types.ErrNotFound)
		}
		return nil, types.StorageFailure(err)
	}
	return json.RawMessage(pref.PreferenceData), nil
}

// Update replaces the preference document, creating the singleton row on
// first write.
func (s *Service) Update(document json.RawMessage) error {
	if len(document) == 0 || !json.Valid(document) {
		return fmt.Errorf("preference document must be valid JSON: %w", types.ErrInvalidInput)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var pref types.UserPreference
		err := tx.Order("id ASC").First(&pref).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			pref.PreferenceData = string(document)
			if err := tx.Create(&pref).Error; err != nil {
				return types.StorageFailure(err)
			}
			return nil
		}
		if err != nil {
			return types.StorageFailure(err)
		}

		err = tx.Model(&pref).Update("preference_data", string(document)).Error
		if err != nil {
			return types.StorageFailure(err)
		}
		return nil
	})
}

// GinHandlers contains HTTP handlers for the user preference endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for preference endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetPreferenceHandler handles GET requests for the preference document
func (h *GinHandlers) GetPreferenceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := h.service.Get()
		response.Handle(c, doc, err)
	}
}

// UpdatePreferenceHandler handles PUT requests to replace the preference document
func (h *GinHandlers) UpdatePreferenceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		document, err := c.GetRawData()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err = h.service.Update(document)
		response.Handle(c, gin.H{"updated": err == nil}, err)
	}
}
