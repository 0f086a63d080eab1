package gridloader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/bbernstein/weathervis-go/pkg/geo"
)

// nameProperty is the feature property holding the grid name.
const nameProperty = "NAME"

// GeoJSONPath returns the border artifact location of a grid.
func GeoJSONPath(dir, name string) string {
	return filepath.Join(dir, name+".geojson")
}

// writeBorder stores border as a FeatureCollection with a single feature.
func writeBorder(dir, name string, border geo.Polygon) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	feature := geojson.NewFeature(orb.Polygon{border.Ring()})
	feature.Properties[nameProperty] = name

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	data, err := fc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode border: %w", err)
	}

	path := GeoJSONPath(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write border: %w", err)
	}
	return path, nil
}

// readBorder loads the border of the feature called name from a border artifact.
// Polygons and multipolygons are accepted; the first outer ring is used.
func readBorder(path, name string) (geo.Polygon, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("Geojson file %s does not exist", path)
	}
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	for _, f := range fc.Features {
		if f.Properties.MustString(nameProperty, "") != name {
			continue
		}
		var ring orb.Ring
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if len(g) > 0 {
				ring = g[0]
			}
		case orb.MultiPolygon:
			if len(g) > 0 && len(g[0]) > 0 {
				ring = g[0][0]
			}
		}
		if len(ring) == 0 {
			return nil, fmt.Errorf("feature %s in %s has no polygon", name, path)
		}
		border := make(geo.Polygon, len(ring))
		for i, p := range ring {
			border[i] = geo.Point{Lon: p.X(), Lat: p.Y()}
		}
		return border, nil
	}
	return nil, fmt.Errorf("no feature named %s in %s", name, path)
}
