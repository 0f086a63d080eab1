// Package app wires the database, repositories and services together.
package app

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/bbernstein/weathervis-go/internal/config"
	"github.com/bbernstein/weathervis-go/internal/database"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/internal/observability"
	"github.com/bbernstein/weathervis-go/internal/services/borders"
	"github.com/bbernstein/weathervis-go/internal/services/export"
	"github.com/bbernstein/weathervis-go/internal/services/gridloader"
	"github.com/bbernstein/weathervis-go/internal/services/hooks"
	importservice "github.com/bbernstein/weathervis-go/internal/services/import"
	"github.com/bbernstein/weathervis-go/internal/services/pubsub"
	"github.com/bbernstein/weathervis-go/internal/services/scope"
	"github.com/bbernstein/weathervis-go/internal/services/validation"
	"github.com/bbernstein/weathervis-go/internal/web"
)

// App holds the wired services.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	DB      *gorm.DB
	Hooks   *hooks.Dispatcher
	PubSub  *pubsub.PubSub

	Stations  *repositories.StationRepository
	Domains   *repositories.DomainRepository
	Margins   *repositories.MarginRepository
	Plots     *repositories.PlotRepository
	Grids     *repositories.ModelGridRepository
	Campaigns *repositories.CampaignRepository

	Exporter  *export.Service
	Loader    *gridloader.Loader
	Importer  *importservice.Service
	Borders   *borders.Service
	Validator *validation.Validator
	Scope     *scope.Controller
}

// New connects to the database, migrates it and builds every service. The
// exporter is registered on the hook dispatcher so committed changes rewrite
// the configuration artifacts.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment() && cfg.LogLevel == "debug",
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		DB:      db,
		Hooks:   hooks.NewDispatcher(),
		PubSub:  pubsub.New(),
	}
	a.Stations = repositories.NewStationRepository(db, a.Hooks)
	a.Domains = repositories.NewDomainRepository(db, a.Hooks)
	a.Margins = repositories.NewMarginRepository(db)
	a.Plots = repositories.NewPlotRepository(db, a.Hooks)
	a.Grids = repositories.NewModelGridRepository(db)
	a.Campaigns = repositories.NewCampaignRepository(db)

	a.Exporter = export.NewService(
		a.Stations, a.Domains, a.Plots, a.Campaigns,
		export.DefaultPaths(cfg.DataDir),
		export.WithMetrics(metrics),
		export.WithPubSub(a.PubSub),
		export.WithLogger(logger),
	)
	a.Hooks.Register(a.Exporter)

	a.Loader = gridloader.NewLoader(
		a.Grids,
		gridloader.NewNetCDFOpener(cfg.GridCacheDir, logger),
		cfg.ModelGridsDir(),
		gridloader.WithMetrics(metrics),
		gridloader.WithPubSub(a.PubSub),
		gridloader.WithLogger(logger),
	)
	a.Importer = importservice.NewService(a.Stations, a.Domains, a.Margins, logger)
	a.Borders = borders.NewService(repositories.NewBorderRepository(db), logger)
	a.Validator = validation.NewValidator(a.Grids, a.Margins, metrics)
	a.Scope = scope.NewController(a.Stations, a.Domains, a.Campaigns, a.Exporter, a.PubSub, logger)
	return a, nil
}

// Server builds the HTTP handler.
func (a *App) Server(version string) *web.Server {
	return web.NewServer(web.Deps{
		Config:    a.Config,
		Logger:    a.Logger,
		Version:   version,
		Stations:  a.Stations,
		Domains:   a.Domains,
		Margins:   a.Margins,
		Plots:     a.Plots,
		Grids:     a.Grids,
		Campaigns: a.Campaigns,
		Validator: a.Validator,
		Scope:     a.Scope,
		Loader:    a.Loader,
		Borders:   a.Borders,
		PubSub:    a.PubSub,
		Sessions:  web.NewSessions(a.Config.SessionSecret, a.Config.IsProduction(), nil),
	})
}

// Close releases the database.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
