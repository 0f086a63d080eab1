// Package web exposes the stations, domains, plots and model grids over HTTP.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/bbernstein/weathervis-go/internal/config"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/internal/services/borders"
	"github.com/bbernstein/weathervis-go/internal/services/gridloader"
	"github.com/bbernstein/weathervis-go/internal/services/pubsub"
	"github.com/bbernstein/weathervis-go/internal/services/scope"
	"github.com/bbernstein/weathervis-go/internal/services/validation"
)

// Deps holds everything the handlers need.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Version string

	Stations  *repositories.StationRepository
	Domains   *repositories.DomainRepository
	Margins   *repositories.MarginRepository
	Plots     *repositories.PlotRepository
	Grids     *repositories.ModelGridRepository
	Campaigns *repositories.CampaignRepository

	Validator *validation.Validator
	Scope     *scope.Controller
	Loader    *gridloader.Loader
	Borders   *borders.Service
	PubSub    *pubsub.PubSub
	Sessions  *Sessions

	// Metrics serves /metrics. Defaults to the global Prometheus registry.
	Metrics http.Handler
}

// Server routes HTTP requests.
type Server struct {
	Deps
	router chi.Router
}

// NewServer builds the router.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}
	s := &Server{Deps: d, router: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Logger))
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{s.Config.CORSOrigin, "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            false,
	})
	r.Use(corsMiddleware.Handler)

	r.Get("/health", s.health)
	r.Handle("/metrics", s.Metrics)
	r.Get("/ws/exports", s.exportEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.Config.HTTPTimeout))
		r.Use(s.Sessions.Middleware(s.Logger))

		r.Post("/scope/campaign", s.selectCampaign)

		r.Route("/stations", func(r chi.Router) {
			r.Post("/", s.createStation)
			r.Get("/geojson", s.stationsGeoJSON)
			r.Get("/redirect", s.redirect(scope.Stations))
			r.Post("/enable_all", s.setAllActive(scope.Stations, true))
			r.Post("/disable_all", s.setAllActive(scope.Stations, false))
			r.Put("/{id}", s.updateStation)
			r.Delete("/{id}", s.deleteStation)
			r.Get("/{id}/margin.geojson", s.stationMarginGeoJSON)
		})

		r.Route("/domains", func(r chi.Router) {
			r.Post("/", s.createDomain)
			r.Get("/geojson", s.domainsGeoJSON)
			r.Get("/redirect", s.redirect(scope.Domains))
			r.Post("/enable_all", s.setAllActive(scope.Domains, true))
			r.Post("/disable_all", s.setAllActive(scope.Domains, false))
			r.Put("/{id}", s.updateDomain)
			r.Delete("/{id}", s.deleteDomain)
		})

		r.Post("/plots/{kind}", s.savePlot)
		r.Delete("/plots/{kind}/{id}", s.deletePlot)

		r.Delete("/margins/{id}", s.deleteMargin)

		r.Get("/model_grids/geojson", s.gridsGeoJSON)
		r.Post("/model_grids/ingest", s.ingestGrids)
		r.Get("/borders/geojson", s.bordersGeoJSON)
	})
}

// requestLogger logs each request once it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.Version,
	})
}
