package repositories

import (
	"context"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/weathervis-go/internal/database/models"
)

// CampaignRepository handles campaign data access.
type CampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new CampaignRepository.
func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// FindAll returns all campaigns ordered by name.
func (r *CampaignRepository) FindAll(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	result := r.db.WithContext(ctx).Order("name ASC").Find(&campaigns)
	return campaigns, result.Error
}

// FindByID returns a campaign by ID.
func (r *CampaignRepository) FindByID(ctx context.Context, id string) (*models.Campaign, error) {
	var campaign models.Campaign
	result := r.db.WithContext(ctx).First(&campaign, "id = ?", id)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &campaign, nil
}

// FindByName returns a campaign by case-insensitive name.
func (r *CampaignRepository) FindByName(ctx context.Context, name string) (*models.Campaign, error) {
	var campaign models.Campaign
	result := r.db.WithContext(ctx).First(&campaign, "name_key = ?", models.NameKey(name))
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &campaign, nil
}

// Create creates a new campaign.
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = cuid.New()
	}
	return r.db.WithContext(ctx).Create(campaign).Error
}

// Delete deletes a campaign by ID and detaches it from stations and domains.
func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range []string{
			"DELETE FROM station_campaigns WHERE campaign_id = ?",
			"DELETE FROM domain_campaigns WHERE campaign_id = ?",
			"UPDATE stations SET active_campaign = NULL WHERE active_campaign = ?",
			"UPDATE domains SET active_campaign = NULL WHERE active_campaign = ?",
		} {
			if err := tx.Exec(stmt, id).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Campaign{}, "id = ?", id).Error
	})
}
