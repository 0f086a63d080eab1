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

const stationInActiveCampaign = "(stations.active_campaign IS NULL OR EXISTS (" +
	"SELECT 1 FROM station_campaigns sc WHERE sc.station_id = stations.id AND sc.campaign_id = stations.active_campaign))"

const stationInCampaign = "EXISTS (" +
	"SELECT 1 FROM station_campaigns sc WHERE sc.station_id = stations.id AND sc.campaign_id = ?)"

// StationRepository handles station data access.
// Create, Update, Delete and plot changes notify the dispatcher once committed.
type StationRepository struct {
	db    *gorm.DB
	hooks *hooks.Dispatcher
}

// NewStationRepository creates a new StationRepository.
func NewStationRepository(db *gorm.DB, dispatcher *hooks.Dispatcher) *StationRepository {
	return &StationRepository{db: db, hooks: dispatcher}
}

func (r *StationRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Margin").
		Preload("Plots", func(db *gorm.DB) *gorm.DB { return db.Order("stations_plots.name ASC") }).
		Preload("Campaigns", func(db *gorm.DB) *gorm.DB { return db.Order("campaigns.name ASC") })
}

// FindAll returns all stations ordered by name.
func (r *StationRepository) FindAll(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	result := r.preloaded(ctx).
		Order("name ASC").
		Find(&stations)
	return stations, result.Error
}

// FindActive returns the stations to export: active ones that, when an active
// campaign is recorded on the row, belong to that campaign.
func (r *StationRepository) FindActive(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	result := r.preloaded(ctx).
		Where("stations.is_active = ?", true).
		Where(stationInActiveCampaign).
		Order("name ASC").
		Find(&stations)
	return stations, result.Error
}

// FindInCampaign returns the members of a campaign, or every station when
// campaignID is nil, ordered by name.
func (r *StationRepository) FindInCampaign(ctx context.Context, campaignID *string) ([]models.Station, error) {
	q := r.preloaded(ctx).Order("name ASC")
	if campaignID != nil {
		q = q.Where(stationInCampaign, *campaignID)
	}
	var stations []models.Station
	return stations, q.Find(&stations).Error
}

// FindReleases returns every station that carries release parameters,
// regardless of its active flag.
func (r *StationRepository) FindReleases(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	result := r.db.WithContext(ctx).
		Where("stations.uses_release = ?", true).
		Order("name ASC").
		Find(&stations)
	return stations, result.Error
}

// FindByID returns a station by ID.
func (r *StationRepository) FindByID(ctx context.Context, id string) (*models.Station, error) {
	var station models.Station
	result := r.preloaded(ctx).First(&station, "id = ?", id)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &station, nil
}

// FindByName returns a station by case-insensitive name.
func (r *StationRepository) FindByName(ctx context.Context, name string) (*models.Station, error) {
	var station models.Station
	result := r.preloaded(ctx).First(&station, "name_key = ?", models.NameKey(name))
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &station, nil
}

// FindBySlug returns the station whose slug is slug, or nil.
func (r *StationRepository) FindBySlug(ctx context.Context, slug string) (*models.Station, error) {
	var station models.Station
	if err := r.db.WithContext(ctx).First(&station, "slug = ?", slug).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &station, nil
}

// First returns the alphabetically first station, restricted to a campaign
// when campaignID is set. It returns nil when there is none.
func (r *StationRepository) First(ctx context.Context, campaignID *string) (*models.Station, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if campaignID != nil {
		q = q.Where(stationInCampaign, *campaignID)
	}
	var station models.Station
	if err := q.First(&station).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &station, nil
}

// Create inserts a station with its plots and campaigns. When MarginID is
// empty the margin values in station.Margin are looked up or inserted.
func (r *StationRepository) Create(ctx context.Context, station *models.Station) error {
	if station.ID == "" {
		station.ID = cuid.New()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := resolveMargin(tx, station); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(station).Error; err != nil {
			return err
		}
		return replaceStationAssociations(tx, station)
	})
	if err != nil {
		return fmt.Errorf("failed to create station: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityStation, Action: hooks.ActionCreate, ID: station.ID})
}

// Update saves a station with its plots and campaigns.
func (r *StationRepository) Update(ctx context.Context, station *models.Station) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := resolveMargin(tx, station); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(station).Error; err != nil {
			return err
		}
		return replaceStationAssociations(tx, station)
	})
	if err != nil {
		return fmt.Errorf("failed to update station: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityStation, Action: hooks.ActionUpdate, ID: station.ID})
}

// Delete deletes a station by ID.
func (r *StationRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		station := &models.Station{ID: id}
		if err := tx.Model(station).Association("Plots").Clear(); err != nil {
			return err
		}
		if err := tx.Model(station).Association("Campaigns").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.Station{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete station: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityStation, Action: hooks.ActionDelete, ID: id})
}

// ReplacePlots sets the plots of a station.
func (r *StationRepository) ReplacePlots(ctx context.Context, id string, plotIDs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		station := &models.Station{ID: id}
		for _, pid := range plotIDs {
			station.Plots = append(station.Plots, models.StationsPlot{ID: pid})
		}
		return replaceStationPlots(tx, station)
	})
	if err != nil {
		return fmt.Errorf("failed to replace station plots: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityStation, Action: hooks.ActionUpdate, ID: id})
}

// SetActive bulk-updates the active flag, restricted to the members of a
// campaign when campaignID is set. No hooks run.
func (r *StationRepository) SetActive(ctx context.Context, active bool, campaignID *string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Station{})
	if campaignID != nil {
		q = q.Where(stationInCampaign, *campaignID)
	} else {
		q = q.Where("1 = 1")
	}
	result := q.UpdateColumn("is_active", active)
	return result.RowsAffected, result.Error
}

// SetActiveCampaign bulk-records the selected campaign on every station.
// No hooks run.
func (r *StationRepository) SetActiveCampaign(ctx context.Context, campaignID *string) (int64, error) {
	var value interface{} = gorm.Expr("NULL")
	if campaignID != nil {
		value = *campaignID
	}
	result := r.db.WithContext(ctx).Model(&models.Station{}).
		Where("1 = 1").
		UpdateColumn("active_campaign", value)
	return result.RowsAffected, result.Error
}

// Count returns the number of stations.
func (r *StationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Station{}).Count(&count)
	return count, result.Error
}

func resolveMargin(tx *gorm.DB, station *models.Station) error {
	if station.MarginID != "" || station.Margin == nil {
		return nil
	}
	margin, _, err := getOrCreateMargin(tx, *station.Margin)
	if err != nil {
		return err
	}
	station.MarginID = margin.ID
	station.Margin = margin
	return nil
}

func replaceStationAssociations(tx *gorm.DB, station *models.Station) error {
	if err := replaceStationPlots(tx, station); err != nil {
		return err
	}
	var campaigns []models.Campaign
	ids := collectIDs(station.Campaigns, func(c models.Campaign) string { return c.ID })
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Order("name ASC").Find(&campaigns).Error; err != nil {
			return err
		}
	}
	assoc := tx.Model(station).Omit("Campaigns.*").Association("Campaigns")
	if len(campaigns) == 0 {
		station.Campaigns = nil
		return assoc.Clear()
	}
	station.Campaigns = campaigns
	return assoc.Replace(campaigns)
}

func replaceStationPlots(tx *gorm.DB, station *models.Station) error {
	var plots []models.StationsPlot
	ids := collectIDs(station.Plots, func(p models.StationsPlot) string { return p.ID })
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Order("name ASC").Find(&plots).Error; err != nil {
			return err
		}
	}
	assoc := tx.Model(station).Omit("Plots.*").Association("Plots")
	if len(plots) == 0 {
		station.Plots = nil
		return assoc.Clear()
	}
	station.Plots = plots
	return assoc.Replace(plots)
}
