package repositories

import (
	"context"
	"fmt"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/services/hooks"
)

const domainInActiveCampaign = "(domains.active_campaign IS NULL OR EXISTS (" +
	"SELECT 1 FROM domain_campaigns dc WHERE dc.domain_id = domains.id AND dc.campaign_id = domains.active_campaign))"

const domainInCampaign = "EXISTS (" +
	"SELECT 1 FROM domain_campaigns dc WHERE dc.domain_id = domains.id AND dc.campaign_id = ?)"

// DomainRepository handles domain data access.
type DomainRepository struct {
	db    *gorm.DB
	hooks *hooks.Dispatcher
}

// NewDomainRepository creates a new DomainRepository.
func NewDomainRepository(db *gorm.DB, dispatcher *hooks.Dispatcher) *DomainRepository {
	return &DomainRepository{db: db, hooks: dispatcher}
}

func (r *DomainRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Plots", func(db *gorm.DB) *gorm.DB { return db.Order("domains_plots.name ASC") }).
		Preload("Campaigns", func(db *gorm.DB) *gorm.DB { return db.Order("campaigns.name ASC") })
}

// FindAll returns all domains ordered by name.
func (r *DomainRepository) FindAll(ctx context.Context) ([]models.Domain, error) {
	var domains []models.Domain
	result := r.preloaded(ctx).Order("name ASC").Find(&domains)
	return domains, result.Error
}

// FindActive returns the domains to export, with the same rule as stations.
func (r *DomainRepository) FindActive(ctx context.Context) ([]models.Domain, error) {
	var domains []models.Domain
	result := r.preloaded(ctx).
		Where("domains.is_active = ?", true).
		Where(domainInActiveCampaign).
		Order("name ASC").
		Find(&domains)
	return domains, result.Error
}

// FindInCampaign returns the members of a campaign, or every domain when
// campaignID is nil, ordered by name.
func (r *DomainRepository) FindInCampaign(ctx context.Context, campaignID *string) ([]models.Domain, error) {
	q := r.preloaded(ctx).Order("name ASC")
	if campaignID != nil {
		q = q.Where(domainInCampaign, *campaignID)
	}
	var domains []models.Domain
	return domains, q.Find(&domains).Error
}

// FindByID returns a domain by ID.
func (r *DomainRepository) FindByID(ctx context.Context, id string) (*models.Domain, error) {
	var domain models.Domain
	result := r.preloaded(ctx).First(&domain, "id = ?", id)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &domain, nil
}

// FindByName returns a domain by case-insensitive name.
func (r *DomainRepository) FindByName(ctx context.Context, name string) (*models.Domain, error) {
	var domain models.Domain
	result := r.preloaded(ctx).First(&domain, "name_key = ?", models.NameKey(name))
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &domain, nil
}

// FindBySlug returns the domain whose slug is slug, or nil.
func (r *DomainRepository) FindBySlug(ctx context.Context, slug string) (*models.Domain, error) {
	var domain models.Domain
	if err := r.db.WithContext(ctx).First(&domain, "slug = ?", slug).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &domain, nil
}

// First returns the alphabetically first domain, restricted to a campaign
// when campaignID is set.
func (r *DomainRepository) First(ctx context.Context, campaignID *string) (*models.Domain, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if campaignID != nil {
		q = q.Where(domainInCampaign, *campaignID)
	}
	var domain models.Domain
	if err := q.First(&domain).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &domain, nil
}

// Create inserts a domain with its plots and campaigns.
func (r *DomainRepository) Create(ctx context.Context, domain *models.Domain) error {
	if domain.ID == "" {
		domain.ID = cuid.New()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(domain).Error; err != nil {
			return err
		}
		return replaceDomainAssociations(tx, domain)
	})
	if err != nil {
		return fmt.Errorf("failed to create domain: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityDomain, Action: hooks.ActionCreate, ID: domain.ID})
}

// Update saves a domain with its plots and campaigns.
func (r *DomainRepository) Update(ctx context.Context, domain *models.Domain) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(domain).Error; err != nil {
			return err
		}
		return replaceDomainAssociations(tx, domain)
	})
	if err != nil {
		return fmt.Errorf("failed to update domain: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityDomain, Action: hooks.ActionUpdate, ID: domain.ID})
}

// Delete deletes a domain by ID.
func (r *DomainRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		domain := &models.Domain{ID: id}
		if err := tx.Model(domain).Association("Plots").Clear(); err != nil {
			return err
		}
		if err := tx.Model(domain).Association("Campaigns").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.Domain{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityDomain, Action: hooks.ActionDelete, ID: id})
}

// SetActive bulk-updates the active flag. No hooks run.
func (r *DomainRepository) SetActive(ctx context.Context, active bool, campaignID *string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Domain{})
	if campaignID != nil {
		q = q.Where(domainInCampaign, *campaignID)
	} else {
		q = q.Where("1 = 1")
	}
	result := q.UpdateColumn("is_active", active)
	return result.RowsAffected, result.Error
}

// SetActiveCampaign bulk-records the selected campaign on every domain.
// No hooks run.
func (r *DomainRepository) SetActiveCampaign(ctx context.Context, campaignID *string) (int64, error) {
	var value interface{} = gorm.Expr("NULL")
	if campaignID != nil {
		value = *campaignID
	}
	result := r.db.WithContext(ctx).Model(&models.Domain{}).
		Where("1 = 1").
		UpdateColumn("active_campaign", value)
	return result.RowsAffected, result.Error
}

func replaceDomainAssociations(tx *gorm.DB, domain *models.Domain) error {
	var plots []models.DomainsPlot
	if ids := collectIDs(domain.Plots, func(p models.DomainsPlot) string { return p.ID }); len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Order("name ASC").Find(&plots).Error; err != nil {
			return err
		}
	}
	plotAssoc := tx.Model(domain).Omit("Plots.*").Association("Plots")
	if len(plots) == 0 {
		domain.Plots = nil
		if err := plotAssoc.Clear(); err != nil {
			return err
		}
	} else {
		domain.Plots = plots
		if err := plotAssoc.Replace(plots); err != nil {
			return err
		}
	}

	var campaigns []models.Campaign
	if ids := collectIDs(domain.Campaigns, func(c models.Campaign) string { return c.ID }); len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Order("name ASC").Find(&campaigns).Error; err != nil {
			return err
		}
	}
	campaignAssoc := tx.Model(domain).Omit("Campaigns.*").Association("Campaigns")
	if len(campaigns) == 0 {
		domain.Campaigns = nil
		return campaignAssoc.Clear()
	}
	domain.Campaigns = campaigns
	return campaignAssoc.Replace(campaigns)
}
