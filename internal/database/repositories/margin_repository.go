package repositories

import (
	"context"
	"fmt"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bbernstein/weathervis-go/internal/database/models"
)

// MarginRepository handles margin data access.
type MarginRepository struct {
	db *gorm.DB
}

// NewMarginRepository creates a new MarginRepository.
func NewMarginRepository(db *gorm.DB) *MarginRepository {
	return &MarginRepository{db: db}
}

// FindAll returns all margins.
func (r *MarginRepository) FindAll(ctx context.Context) ([]models.Margin, error) {
	var margins []models.Margin
	result := r.db.WithContext(ctx).
		Order("west ASC, east ASC, north ASC, south ASC").
		Find(&margins)
	return margins, result.Error
}

// FindByID returns a margin by ID.
func (r *MarginRepository) FindByID(ctx context.Context, id string) (*models.Margin, error) {
	var margin models.Margin
	result := r.db.WithContext(ctx).First(&margin, "id = ?", id)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &margin, nil
}

// GetOrCreate returns the margin with the given offsets, inserting it if needed.
func (r *MarginRepository) GetOrCreate(ctx context.Context, m models.Margin) (*models.Margin, UpsertResult, error) {
	return getOrCreateMargin(r.db.WithContext(ctx), m)
}

func getOrCreateMargin(db *gorm.DB, m models.Margin) (*models.Margin, UpsertResult, error) {
	m.ID = cuid.New()
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "west"}, {Name: "east"}, {Name: "north"}, {Name: "south"}},
		DoNothing: true,
	}).Create(&m)
	if result.Error != nil {
		return nil, UpsertResult{}, fmt.Errorf("failed to create margin: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return &m, UpsertResult{Outcome: Created}, nil
	}

	var existing models.Margin
	err := db.Where("west = ? AND east = ? AND north = ? AND south = ?", m.West, m.East, m.North, m.South).
		First(&existing).Error
	if err != nil {
		return nil, UpsertResult{}, fmt.Errorf("failed to load existing margin: %w", err)
	}
	return &existing, UpsertResult{Outcome: Existing}, nil
}

// CountStations returns the number of stations using a margin.
func (r *MarginRepository) CountStations(ctx context.Context, id string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.Station{}).
		Where("margin_id = ?", id).
		Count(&count)
	return count, result.Error
}

// Delete deletes a margin by ID. Margins referenced by stations are kept and
// ErrMarginInUse is returned.
func (r *MarginRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Station{}).Where("margin_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrMarginInUse
		}
		return tx.Delete(&models.Margin{}, "id = ?", id).Error
	})
}
