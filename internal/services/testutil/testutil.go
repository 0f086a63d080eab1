// Package testutil provides shared test utilities for service tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/internal/services/hooks"
)

// TestDB holds the test database, a hook dispatcher and repositories wired to it.
type TestDB struct {
	DB           *gorm.DB
	Hooks        *hooks.Dispatcher
	StationRepo  *repositories.StationRepository
	DomainRepo   *repositories.DomainRepository
	MarginRepo   *repositories.MarginRepository
	PlotRepo     *repositories.PlotRepository
	GridRepo     *repositories.ModelGridRepository
	CampaignRepo *repositories.CampaignRepository
	BorderRepo   *repositories.BorderRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a TestDB with all repositories initialized and a cleanup function.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	dispatcher := hooks.NewDispatcher()
	testDB := &TestDB{
		DB:           db,
		Hooks:        dispatcher,
		StationRepo:  repositories.NewStationRepository(db, dispatcher),
		DomainRepo:   repositories.NewDomainRepository(db, dispatcher),
		MarginRepo:   repositories.NewMarginRepository(db),
		PlotRepo:     repositories.NewPlotRepository(db, dispatcher),
		GridRepo:     repositories.NewModelGridRepository(db),
		CampaignRepo: repositories.NewCampaignRepository(db),
		BorderRepo:   repositories.NewBorderRepository(db),
	}

	cleanup := func() {
		_ = sqlDB.Close()
	}

	return testDB, cleanup
}

// UniqueName generates a unique record name for testing.
func UniqueName(prefix string) string {
	return prefix + "-" + cuid.New()[:8]
}
