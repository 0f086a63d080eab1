package repositories

import (
	"context"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/weathervis-go/internal/database/models"
)

// OrganisationRepository handles organisation data access.
type OrganisationRepository struct {
	db *gorm.DB
}

// NewOrganisationRepository creates a new OrganisationRepository.
func NewOrganisationRepository(db *gorm.DB) *OrganisationRepository {
	return &OrganisationRepository{db: db}
}

// FindAll returns all organisations ordered by name.
func (r *OrganisationRepository) FindAll(ctx context.Context) ([]models.Organisation, error) {
	var orgs []models.Organisation
	result := r.db.WithContext(ctx).Order("name ASC").Find(&orgs)
	return orgs, result.Error
}

// FindByID returns an organisation by ID.
func (r *OrganisationRepository) FindByID(ctx context.Context, id string) (*models.Organisation, error) {
	var org models.Organisation
	result := r.db.WithContext(ctx).First(&org, "id = ?", id)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &org, nil
}

// Create creates a new organisation.
func (r *OrganisationRepository) Create(ctx context.Context, org *models.Organisation) error {
	if org.ID == "" {
		org.ID = cuid.New()
	}
	return r.db.WithContext(ctx).Create(org).Error
}
