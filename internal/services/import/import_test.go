package importservice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/weathervis-go/internal/observability"
	svctest "github.com/bbernstein/weathervis-go/internal/services/testutil"
)

func setup(t *testing.T) (*svctest.TestDB, *Service) {
	t.Helper()
	testDB, cleanup := svctest.SetupTestDB(t)
	t.Cleanup(cleanup)
	return testDB, NewService(testDB.StationRepo, testDB.DomainRepo, testDB.MarginRepo, observability.Discard())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const stationsIni = `
default:
  height: 0
  description: "Norwegian station"
  margin:
    west: 0.5
    east: 0.5
    north: 0.2
    south: 0.2

Andenes:
  lat: 69.3
  lon: 16.1
  height: 10
  stationID: "AND"
  WMOID: "01010"

Kiruna:
  lat: 67.8
  lon: 20.2
  description: Swedish station
  margin:
    west: 1
    east: 1

Tromsø:
  lat: 69.6
  lon: 18.9
`

func TestUploadStations(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	path := writeFile(t, "stations.ini.yaml", stationsIni)

	stats, err := svc.UploadStations(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Created)
	assert.Equal(t, 0, stats.Existing)

	andenes, err := db.StationRepo.FindByName(ctx, "andenes")
	require.NoError(t, err)
	require.NotNil(t, andenes)
	assert.Equal(t, 16.1, andenes.Longitude)
	assert.Equal(t, 10.0, andenes.Altitude)
	require.NotNil(t, andenes.StationCode)
	assert.Equal(t, "AND", *andenes.StationCode)
	require.NotNil(t, andenes.WMOID)
	assert.Equal(t, "01010", *andenes.WMOID)
	assert.Equal(t, "Norwegian station", andenes.Description)
	assert.True(t, andenes.IsActive)
	assert.Equal(t, "0.5", andenes.Margin.West.String())
	assert.Equal(t, "0.2", andenes.Margin.North.String())
	require.Len(t, andenes.MarginGeom, 5)
	assert.InDelta(t, 15.6, andenes.MarginGeom[0].Lon, 1e-9)

	kiruna, err := db.StationRepo.FindByName(ctx, "Kiruna")
	require.NoError(t, err)
	assert.Equal(t, "Swedish station", kiruna.Description)
	assert.Equal(t, "1", kiruna.Margin.West.String())
	assert.Equal(t, "0.2", kiruna.Margin.South.String())
	assert.Nil(t, kiruna.StationCode)

	tromso, err := db.StationRepo.FindByName(ctx, "Tromsø")
	require.NoError(t, err)
	assert.Equal(t, andenes.MarginID, tromso.MarginID, "identical offsets share a margin")

	margins, err := db.MarginRepo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, margins, 2)

	stats, err = svc.UploadStations(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 3, stats.Existing)
}

func TestUploadStations_InvalidFiles(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not a mapping", "- a\n- b\n", "must be a dictionnary."},
		{"block not a mapping", "Andenes: 12\n", "Value of key 'Andenes' must be a dictionnary."},
		{"margin not a mapping", "Andenes:\n  margin: 0.2\n", "Value of 'Andenes['margin']' must be a dictionnary."},
		{"broken yaml", "Andenes: [\n", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "stations.ini.yaml", tt.content)
			_, err := svc.UploadStations(ctx, path)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "Something goes wrong when uploading extra parameters file -"+path+"-. "), err.Error())
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := svc.UploadStations(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Something goes wrong when uploading extra parameters file")
}

func TestUploadStations_NegativeMargin(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	path := writeFile(t, "stations.ini.yaml", "Andenes:\n  lat: 69.3\n  lon: 16.1\n  margin:\n    west: -1\n")

	_, err := svc.UploadStations(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "margin west must not be negative")

	count, err := db.StationRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUploadDomains(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	path := writeFile(t, "domains.ini.yaml", `
default:
  height: 500
  description: ""
Nordic:
  west: -5
  east: 35
  north: 75
  south: 55
Svalbard:
  west: 5
  east: 35
  north: 82
  south: 74
  height: 0
  description: Arctic islands
`)

	stats, err := svc.UploadDomains(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Created)

	nordic, err := db.DomainRepo.FindByName(ctx, "Nordic")
	require.NoError(t, err)
	require.NotNil(t, nordic)
	assert.Equal(t, -5.0, nordic.West())
	assert.Equal(t, 35.0, nordic.East())
	assert.Equal(t, 75.0, nordic.North())
	assert.Equal(t, 55.0, nordic.South())
	assert.Equal(t, 500.0, nordic.Height())
	assert.Len(t, nordic.Geom, 5)
	assert.Equal(t, nordic.Geom[0], nordic.Geom[4])

	svalbard, err := db.DomainRepo.FindByName(ctx, "Svalbard")
	require.NoError(t, err)
	assert.Equal(t, 0.0, svalbard.Height())
	assert.Equal(t, "Arctic islands", svalbard.Description)
	assert.Equal(t, "svalbard", svalbard.Slug)

	stats, err = svc.UploadDomains(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Existing)
}

func TestUploadDomains_BlockNotMapping(t *testing.T) {
	_, svc := setup(t)
	path := writeFile(t, "domains.ini.yaml", "Nordic: [1, 2]\n")
	_, err := svc.UploadDomains(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Value of key 'Nordic' must be a dictionnary. See "+path+".")
}
