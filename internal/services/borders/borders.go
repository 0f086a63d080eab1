// Package borders loads legacy forecast coverage shapes from shapefiles and
// serves them as GeoJSON.
package borders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb/geojson"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

// Service stores and lists WeatherForecastBorder records.
type Service struct {
	repo   *repositories.BorderRepository
	logger *slog.Logger
}

// NewService creates a border service.
func NewService(repo *repositories.BorderRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// LoadShapefile reads every polygon part of a shapefile into one border
// called name. Non-polygon shapes are skipped.
func (s *Service) LoadShapefile(ctx context.Context, name, path string) (*models.WeatherForecastBorder, error) {
	mp, err := readShapefile(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("no polygon found in shapefile %s", path)
	}

	border := &models.WeatherForecastBorder{Name: name, Border: mp}
	if err := s.repo.Create(ctx, border); err != nil {
		return nil, fmt.Errorf("failed to store border %s: %w", name, err)
	}
	s.logger.Info("forecast border loaded", "name", name, "file", path, "polygons", len(mp))
	return border, nil
}

// FeatureCollection returns every stored border as a feature with a NAME property.
func (s *Service) FeatureCollection(ctx context.Context) (*geojson.FeatureCollection, error) {
	borders, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load borders: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	for _, b := range borders {
		f := geojson.NewFeature(b.Border.Orb())
		f.ID = b.ID
		f.Properties["NAME"] = b.Name
		fc.Append(f)
	}
	return fc, nil
}

func readShapefile(ctx context.Context, path string) (geo.MultiPolygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile: %w", err)
	}
	defer reader.Close()

	var mp geo.MultiPolygon
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, shape := reader.Shape()
		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		mp = append(mp, parts(polygon)...)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("reading shapefile: %w", err)
	}
	return mp, nil
}

// parts splits a shapefile polygon into one ring per part.
func parts(polygon *shp.Polygon) geo.MultiPolygon {
	out := make(geo.MultiPolygon, 0, len(polygon.Parts))
	for i := range polygon.Parts {
		start := int(polygon.Parts[i])
		end := len(polygon.Points)
		if i+1 < len(polygon.Parts) {
			end = int(polygon.Parts[i+1])
		}
		if end-start < 3 {
			continue
		}
		ring := make(geo.Polygon, 0, end-start)
		for _, p := range polygon.Points[start:end] {
			ring = append(ring, geo.Point{Lon: p.X, Lat: p.Y})
		}
		out = append(out, ring.Closed())
	}
	return out
}
