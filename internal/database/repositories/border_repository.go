package repositories

import (
	"context"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/weathervis-go/internal/database/models"
)

// BorderRepository handles legacy weather forecast borders.
type BorderRepository struct {
	db *gorm.DB
}

// NewBorderRepository creates a new BorderRepository.
func NewBorderRepository(db *gorm.DB) *BorderRepository {
	return &BorderRepository{db: db}
}

// FindAll returns all borders ordered by name.
func (r *BorderRepository) FindAll(ctx context.Context) ([]models.WeatherForecastBorder, error) {
	var borders []models.WeatherForecastBorder
	result := r.db.WithContext(ctx).Order("name ASC").Find(&borders)
	return borders, result.Error
}

// Create stores a border.
func (r *BorderRepository) Create(ctx context.Context, border *models.WeatherForecastBorder) error {
	if border.ID == "" {
		border.ID = cuid.New()
	}
	return r.db.WithContext(ctx).Create(border).Error
}

// Count returns the number of stored borders.
func (r *BorderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.WeatherForecastBorder{}).Count(&count)
	return count, result.Error
}
