package export

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bbernstein/weathervis-go/internal/database/models"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{10, "10.0"},
		{-5, "-5.0"},
		{0.2, "0.2"},
		{69.3, "69.3"},
		{1234567.5, "1234567.5"},
		{1e-5, "1.0e-05"},
		{2.5e-7, "2.5e-07"},
		{1e16, "1.0e+16"},
		{math.NaN(), ".nan"},
		{math.Inf(1), ".inf"},
		{math.Inf(-1), "-.inf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFloat(tt.in), "formatFloat(%v)", tt.in)
	}
}

func TestEncodeEntries_Empty(t *testing.T) {
	out, err := encodeEntries(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(out))
}

func TestEncodeEntries_BlankLineAfterEachEntry(t *testing.T) {
	out, err := encodeEntries([]entry{
		{key: "b", value: mappingNode("x", floatNode(1))},
		{key: "a", value: mappingNode("y", strNode("text"))},
	})
	require.NoError(t, err)
	assert.Equal(t, "b:\n    x: 1.0\n\na:\n    y: text\n\n", string(out))
}

func TestEncodeEntries_RoundTrip(t *testing.T) {
	out, err := encodeEntries([]entry{
		{key: "Ny-Ålesund", value: mappingNode(
			"height", floatNode(8),
			"stationID", optStrNode(nil),
			"WMOID", strNode("01004"),
			"description", strNode(""),
			"plots", listNode(nil),
		)},
	})
	require.NoError(t, err)

	var decoded map[string]map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	st := decoded["Ny-Ålesund"]
	require.NotNil(t, st)
	assert.Equal(t, 8.0, st["height"])
	assert.Nil(t, st["stationID"])
	assert.Equal(t, "01004", st["WMOID"], "numeric-looking strings stay strings")
	assert.Equal(t, "", st["description"])
	assert.Equal(t, []interface{}{}, st["plots"])
}

func TestReleaseRow(t *testing.T) {
	start := time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)
	st := &models.Station{
		Name:          "Andenes",
		Longitude:     16.1,
		Latitude:      69.3,
		UsesRelease:   true,
		StartDatetime: &start,
		AltLower:      decimal.RequireFromString("0"),
		AltUpper:      decimal.RequireFromString("100.5"),
		AltUnit:       models.AltitudeMetersAboveSea,
		NumbPart:      5000,
		XMass:         100,
		NumberGrid:    200,
	}

	got := releaseRow(st)
	assert.Equal(t, "20240301; 063000; NaN; NaN; NaN; NaN; NaN; NaN; 2; 0; 100.5; 5000; 100; Andenes; 16.1; 69.3; 200", got)
	assert.Len(t, strings.Split(got, "; "), len(strings.Split(releasesHeader, "; ")))
}

func TestSplitDate_ConvertsToUTC(t *testing.T) {
	oslo := time.FixedZone("CET", 3600)
	ts := time.Date(2024, 1, 1, 0, 30, 0, 0, oslo)
	ymd, hms := splitDate(&ts)
	assert.Equal(t, "20231231", ymd)
	assert.Equal(t, "233000", hms)

	ymd, hms = splitDate(nil)
	assert.Equal(t, "NaN", ymd)
	assert.Equal(t, "NaN", hms)
}

func TestDefaultPaths(t *testing.T) {
	p := DefaultPaths("/srv/data")
	assert.Equal(t, "/srv/data/stations/stations.yaml", p.Stations)
	assert.Equal(t, "/srv/data/stations/releases.csv", p.Releases)
	assert.Equal(t, "/srv/data/domains/domains.yaml", p.Domains)
	assert.Equal(t, "/srv/data/plots/plots.yaml", p.Plots)
}
