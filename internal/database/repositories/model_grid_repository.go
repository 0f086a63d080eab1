package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bbernstein/weathervis-go/internal/database/models"
)

// ModelGridRepository handles model grid and model variable data access.
type ModelGridRepository struct {
	db *gorm.DB
}

// NewModelGridRepository creates a new ModelGridRepository.
func NewModelGridRepository(db *gorm.DB) *ModelGridRepository {
	return &ModelGridRepository{db: db}
}

// FindAll returns all model grids ordered by name and validity start.
func (r *ModelGridRepository) FindAll(ctx context.Context) ([]models.ModelGrid, error) {
	var grids []models.ModelGrid
	result := r.db.WithContext(ctx).
		Preload("Variables", func(db *gorm.DB) *gorm.DB { return db.Order("model_variables.name ASC") }).
		Order("name ASC, date_valid_start ASC").
		Find(&grids)
	return grids, result.Error
}

// FindByID returns a model grid by ID.
func (r *ModelGridRepository) FindByID(ctx context.Context, id string) (*models.ModelGrid, error) {
	var grid models.ModelGrid
	result := r.db.WithContext(ctx).
		Preload("Variables", func(db *gorm.DB) *gorm.DB { return db.Order("model_variables.name ASC") }).
		First(&grid, "id = ?", id)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &grid, nil
}

// FindByKey returns the grid identified by name and validity start.
func (r *ModelGridRepository) FindByKey(ctx context.Context, name string, validStart time.Time) (*models.ModelGrid, error) {
	var grid models.ModelGrid
	result := r.db.WithContext(ctx).
		Preload("Variables", func(db *gorm.DB) *gorm.DB { return db.Order("model_variables.name ASC") }).
		First(&grid, "name = ? AND date_valid_start = ?", name, validStart.UTC())
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &grid, nil
}

// Count returns the number of registered model grids.
func (r *ModelGridRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.ModelGrid{}).Count(&count)
	return count, result.Error
}

// GetOrCreate inserts grid unless a grid with the same name and validity
// start exists, in which case grid is replaced by the stored row.
func (r *ModelGridRepository) GetOrCreate(ctx context.Context, grid *models.ModelGrid) (UpsertResult, error) {
	grid.DateValidStart = grid.DateValidStart.UTC()
	if grid.DateValidEnd != nil {
		end := grid.DateValidEnd.UTC()
		grid.DateValidEnd = &end
	}
	if grid.ID == "" {
		grid.ID = cuid.New()
	}

	db := r.db.WithContext(ctx)
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "date_valid_start"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(grid)
	if result.Error != nil {
		return UpsertResult{}, fmt.Errorf("failed to create model grid: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return UpsertResult{Outcome: Created}, nil
	}

	var existing models.ModelGrid
	if err := db.First(&existing, "name = ? AND date_valid_start = ?", grid.Name, grid.DateValidStart).Error; err != nil {
		return UpsertResult{}, fmt.Errorf("failed to load existing model grid: %w", err)
	}
	*grid = existing
	return UpsertResult{Outcome: Existing}, nil
}

// GetOrCreateVariable registers a variable name for a grid.
func (r *ModelGridRepository) GetOrCreateVariable(ctx context.Context, gridID, name string) (*models.ModelVariable, UpsertResult, error) {
	v := models.ModelVariable{ID: cuid.New(), Name: name, ModelGridID: gridID}

	db := r.db.WithContext(ctx)
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "model_grid_id"}},
		DoNothing: true,
	}).Create(&v)
	if result.Error != nil {
		return nil, UpsertResult{}, fmt.Errorf("failed to create model variable: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return &v, UpsertResult{Outcome: Created}, nil
	}

	var existing models.ModelVariable
	if err := db.First(&existing, "name = ? AND model_grid_id = ?", name, gridID).Error; err != nil {
		return nil, UpsertResult{}, fmt.Errorf("failed to load existing model variable: %w", err)
	}
	return &existing, UpsertResult{Outcome: Existing}, nil
}

// Delete deletes a model grid and its variables.
func (r *ModelGridRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ModelVariable{}, "model_grid_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ModelGrid{}, "id = ?", id).Error
	})
}
