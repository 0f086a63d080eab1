package borders

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/weathervis-go/internal/observability"
	svctest "github.com/bbernstein/weathervis-go/internal/services/testutil"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

// writeShapefile stores each ring as a single-part polygon.
func writeShapefile(t *testing.T, rings ...[]shp.Point) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "borders.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	for _, ring := range rings {
		polygon := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		w.Write(&polygon)
	}
	w.Close()
	return path
}

func square(x, y, size float64) []shp.Point {
	return []shp.Point{{X: x, Y: y}, {X: x, Y: y + size}, {X: x + size, Y: y + size}, {X: x + size, Y: y}, {X: x, Y: y}}
}

func TestLoadShapefile(t *testing.T) {
	testDB, cleanup := svctest.SetupTestDB(t)
	defer cleanup()
	svc := NewService(testDB.BorderRepo, observability.Discard())
	ctx := context.Background()

	path := writeShapefile(t, square(0, 60, 10), square(20, 70, 5))
	border, err := svc.LoadShapefile(ctx, "MEPS", path)
	require.NoError(t, err)
	require.Len(t, border.Border, 2)
	assert.Equal(t, geo.Point{Lon: 0, Lat: 60}, border.Border[0][0])
	assert.Equal(t, border.Border[1][0], border.Border[1][len(border.Border[1])-1])

	assert.True(t, geo.PointInMultiPolygon(geo.Point{Lon: 22, Lat: 72}, border.Border))
	assert.False(t, geo.PointInMultiPolygon(geo.Point{Lon: 15, Lat: 65}, border.Border))

	count, err := testDB.BorderRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLoadShapefile_Missing(t *testing.T) {
	testDB, cleanup := svctest.SetupTestDB(t)
	defer cleanup()
	svc := NewService(testDB.BorderRepo, observability.Discard())

	_, err := svc.LoadShapefile(context.Background(), "MEPS", filepath.Join(t.TempDir(), "none.shp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening shapefile")
}

func TestLoadShapefile_Empty(t *testing.T) {
	testDB, cleanup := svctest.SetupTestDB(t)
	defer cleanup()
	svc := NewService(testDB.BorderRepo, observability.Discard())

	_, err := svc.LoadShapefile(context.Background(), "MEPS", writeShapefile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no polygon found")
}

func TestFeatureCollection(t *testing.T) {
	testDB, cleanup := svctest.SetupTestDB(t)
	defer cleanup()
	svc := NewService(testDB.BorderRepo, observability.Discard())
	ctx := context.Background()

	_, err := svc.LoadShapefile(ctx, "MEPS", writeShapefile(t, square(0, 60, 10)))
	require.NoError(t, err)

	fc, err := svc.FeatureCollection(ctx)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "MEPS", fc.Features[0].Properties["NAME"])
	mp, ok := fc.Features[0].Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 1)
}

func TestParts_SkipsDegenerateRings(t *testing.T) {
	polygon := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		square(0, 0, 1),
		{{X: 5, Y: 5}, {X: 6, Y: 6}},
	}))
	mp := parts(&polygon)
	require.Len(t, mp, 1)
	assert.Len(t, mp[0], 5)
}
