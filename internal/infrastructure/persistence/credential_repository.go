package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
)

// GormCredentialStore reads platform credentials written by the authorization service
type GormCredentialStore struct {
	db *gorm.DB
}

// NewGormCredentialStore creates a new GormCredentialStore
func NewGormCredentialStore(db *gorm.DB) *GormCredentialStore {
	return &GormCredentialStore{db: db}
}

var _ integration.CredentialStore = (*GormCredentialStore)(nil)

// GetCredential returns the tenant's credential for the platform
func (s *GormCredentialStore) GetCredential(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (*integration.Credential, error) {
	var model models.PlatformCredentialModel
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCredentialNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
