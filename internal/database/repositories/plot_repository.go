package repositories

import (
	"context"
	"fmt"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/services/hooks"
)

// PlotRepository handles the station and domain plot catalogs.
type PlotRepository struct {
	db    *gorm.DB
	hooks *hooks.Dispatcher
}

// NewPlotRepository creates a new PlotRepository.
func NewPlotRepository(db *gorm.DB, dispatcher *hooks.Dispatcher) *PlotRepository {
	return &PlotRepository{db: db, hooks: dispatcher}
}

// FindStationPlots returns all station plots ordered by name.
func (r *PlotRepository) FindStationPlots(ctx context.Context) ([]models.StationsPlot, error) {
	var plots []models.StationsPlot
	result := r.db.WithContext(ctx).Order("name ASC").Find(&plots)
	return plots, result.Error
}

// FindDomainPlots returns all domain plots ordered by name.
func (r *PlotRepository) FindDomainPlots(ctx context.Context) ([]models.DomainsPlot, error) {
	var plots []models.DomainsPlot
	result := r.db.WithContext(ctx).Order("name ASC").Find(&plots)
	return plots, result.Error
}

// FindStationPlot returns a station plot by ID.
func (r *PlotRepository) FindStationPlot(ctx context.Context, id string) (*models.StationsPlot, error) {
	var plot models.StationsPlot
	if err := r.db.WithContext(ctx).First(&plot, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &plot, nil
}

// FindDomainPlot returns a domain plot by ID.
func (r *PlotRepository) FindDomainPlot(ctx context.Context, id string) (*models.DomainsPlot, error) {
	var plot models.DomainsPlot
	if err := r.db.WithContext(ctx).First(&plot, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &plot, nil
}

// FindStationPlotsByName returns the station plots matching the given names.
func (r *PlotRepository) FindStationPlotsByName(ctx context.Context, names []string) ([]models.StationsPlot, error) {
	var plots []models.StationsPlot
	if len(names) == 0 {
		return plots, nil
	}
	result := r.db.WithContext(ctx).Where("name_key IN ?", nameKeys(names)).Order("name ASC").Find(&plots)
	return plots, result.Error
}

// FindDomainPlotsByName returns the domain plots matching the given names.
func (r *PlotRepository) FindDomainPlotsByName(ctx context.Context, names []string) ([]models.DomainsPlot, error) {
	var plots []models.DomainsPlot
	if len(names) == 0 {
		return plots, nil
	}
	result := r.db.WithContext(ctx).Where("name_key IN ?", nameKeys(names)).Order("name ASC").Find(&plots)
	return plots, result.Error
}

// SaveStationPlot creates or updates a station plot.
func (r *PlotRepository) SaveStationPlot(ctx context.Context, plot *models.StationsPlot) error {
	action := hooks.ActionUpdate
	if plot.ID == "" {
		plot.ID = cuid.New()
		action = hooks.ActionCreate
	}
	if err := r.db.WithContext(ctx).Save(plot).Error; err != nil {
		return fmt.Errorf("failed to save station plot: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityStationPlot, Action: action, ID: plot.ID})
}

// SaveDomainPlot creates or updates a domain plot.
func (r *PlotRepository) SaveDomainPlot(ctx context.Context, plot *models.DomainsPlot) error {
	action := hooks.ActionUpdate
	if plot.ID == "" {
		plot.ID = cuid.New()
		action = hooks.ActionCreate
	}
	if err := r.db.WithContext(ctx).Save(plot).Error; err != nil {
		return fmt.Errorf("failed to save domain plot: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityDomainPlot, Action: action, ID: plot.ID})
}

// DeleteStationPlot deletes a station plot and detaches it from stations.
func (r *PlotRepository) DeleteStationPlot(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM station_plots WHERE stations_plot_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.StationsPlot{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete station plot: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityStationPlot, Action: hooks.ActionDelete, ID: id})
}

// DeleteDomainPlot deletes a domain plot and detaches it from domains.
func (r *PlotRepository) DeleteDomainPlot(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM domain_plots WHERE domains_plot_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DomainsPlot{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete domain plot: %w", err)
	}
	return r.hooks.AfterCommit(ctx, hooks.Event{Entity: hooks.EntityDomainPlot, Action: hooks.ActionDelete, ID: id})
}

func nameKeys(names []string) []string {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = models.NameKey(n)
	}
	return keys
}
