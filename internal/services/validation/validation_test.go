package validation

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/observability"
	svctest "github.com/bbernstein/weathervis-go/internal/services/testutil"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

func setup(t *testing.T) (*svctest.TestDB, *Validator, *observability.Metrics) {
	t.Helper()
	testDB, cleanup := svctest.SetupTestDB(t)
	t.Cleanup(cleanup)
	metrics := observability.NewMetricsForTesting()
	return testDB, NewValidator(testDB.GridRepo, testDB.MarginRepo, metrics), metrics
}

func registerGrid(t *testing.T, db *svctest.TestDB, border geo.Polygon) *models.ModelGrid {
	t.Helper()
	grid := &models.ModelGrid{
		Name:           "AROME Arctic",
		Border:         border,
		DateValidStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := db.GridRepo.GetOrCreate(context.Background(), grid)
	require.NoError(t, err)
	return grid
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestValidateStation_NoGridRegistered(t *testing.T) {
	_, v, metrics := setup(t)

	errs, err := v.ValidateStation(context.Background(), &StationForm{Name: "Andenes", Longitude: 16, Latitude: 69})
	require.NoError(t, err)
	assert.Equal(t, []string{MsgNoModelGrid}, errs[FormField])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ValidationFailures.WithLabelValues("station")))
}

func TestValidateStation_CentroidAndAntipode(t *testing.T) {
	db, v, _ := setup(t)
	ctx := context.Background()
	grid := registerGrid(t, db, geo.Rectangle(0, 10, 70, 60, 0))

	c := grid.Border.Centroid()
	errs, err := v.ValidateStation(ctx, &StationForm{Name: "Centre", Longitude: c.Lon, Latitude: c.Lat})
	require.NoError(t, err)
	assert.True(t, errs.Empty(), errs.Error())

	a := geo.Antipode(c)
	errs, err = v.ValidateStation(ctx, &StationForm{Name: "Antipode", Longitude: a.Lon, Latitude: a.Lat})
	require.NoError(t, err)
	assert.Equal(t, []string{MsgOutsideGrids}, errs[FormField])
}

func TestValidateStation_OnBorderIsInside(t *testing.T) {
	db, v, _ := setup(t)
	registerGrid(t, db, geo.Rectangle(0, 10, 70, 60, 0))

	errs, err := v.ValidateStation(context.Background(), &StationForm{Name: "Edge", Longitude: 0, Latitude: 65})
	require.NoError(t, err)
	assert.True(t, errs.Empty(), errs.Error())
}

func TestValidateStation_ReleaseRules(t *testing.T) {
	db, v, _ := setup(t)
	registerGrid(t, db, geo.Rectangle(0, 10, 70, 60, 0))
	ctx := context.Background()

	tests := []struct {
		name  string
		form  StationForm
		field string
		want  string
	}{
		{
			name:  "missing lower altitude",
			form:  StationForm{UsesRelease: true, AltUpper: dec("100"), StartDatetime: at("2024-03-01T00:00:00Z"), EndDatetime: at("2024-03-02T00:00:00Z")},
			field: "alt_lower",
			want:  MsgAltLowerRequired,
		},
		{
			name:  "missing upper altitude",
			form:  StationForm{UsesRelease: true, AltLower: dec("0"), StartDatetime: at("2024-03-01T00:00:00Z"), EndDatetime: at("2024-03-02T00:00:00Z")},
			field: "alt_upper",
			want:  MsgAltUpperRequired,
		},
		{
			name:  "altitudes reversed",
			form:  StationForm{UsesRelease: true, AltLower: dec("100"), AltUpper: dec("50"), StartDatetime: at("2024-03-01T00:00:00Z"), EndDatetime: at("2024-03-02T00:00:00Z")},
			field: FormField,
			want:  MsgAltitudesOrder,
		},
		{
			name:  "missing start",
			form:  StationForm{UsesRelease: true, AltLower: dec("0"), AltUpper: dec("50"), EndDatetime: at("2024-03-02T00:00:00Z")},
			field: "start_datetime",
			want:  MsgStartRequired,
		},
		{
			name:  "missing end",
			form:  StationForm{UsesRelease: true, AltLower: dec("0"), AltUpper: dec("50"), StartDatetime: at("2024-03-01T00:00:00Z")},
			field: "end_datetime",
			want:  MsgEndRequired,
		},
		{
			name:  "dates reversed",
			form:  StationForm{UsesRelease: true, AltLower: dec("0"), AltUpper: dec("50"), StartDatetime: at("2024-03-02T00:00:00Z"), EndDatetime: at("2024-03-01T00:00:00Z")},
			field: FormField,
			want:  MsgDatesOrder,
		},
		{
			name:  "fractional particle count",
			form:  StationForm{NumbPart: "5000.5"},
			field: "numb_part",
			want:  MsgNumbPartInteger,
		},
		{
			name:  "non-numeric mass",
			form:  StationForm{XMass: "heavy"},
			field: "xmass",
			want:  MsgXMassInteger,
		},
		{
			name:  "negative particle count",
			form:  StationForm{NumbPart: "-5"},
			field: "numb_part",
			want:  MsgCountNegative,
		},
		{
			name:  "negative mass",
			form:  StationForm{XMass: " -1 "},
			field: "xmass",
			want:  MsgCountNegative,
		},
		{
			name:  "fractional grid count",
			form:  StationForm{NumberGrid: "1e3"},
			field: "number_grid",
			want:  MsgNumberGridInt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := tt.form
			form.Name, form.Longitude, form.Latitude = "Andenes", 5, 65
			errs, err := v.ValidateStation(ctx, &form)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, errs[tt.field], errs.Error())
			assert.Len(t, errs.Messages(), 1)
		})
	}
}

func TestValidateStation_EqualBoundsAccepted(t *testing.T) {
	db, v, _ := setup(t)
	registerGrid(t, db, geo.Rectangle(0, 10, 70, 60, 0))

	errs, err := v.ValidateStation(context.Background(), &StationForm{
		Longitude: 5, Latitude: 65,
		UsesRelease:   true,
		AltLower:      dec("0"),
		AltUpper:      dec("0"),
		StartDatetime: at("2024-03-01T00:00:00Z"),
		EndDatetime:   at("2024-03-01T00:00:00Z"),
		NumbPart:      "10000",
	})
	require.NoError(t, err)
	assert.True(t, errs.Empty(), errs.Error())
}

func TestStationForm_Apply(t *testing.T) {
	form := &StationForm{
		UsesRelease: true,
		AltLower:    dec("0"),
		AltUpper:    dec("250.5"),
		AltUnit:     models.AltitudeHectopascal,
		NumbPart:    "10000",
	}
	var st models.Station
	form.Apply(&st)

	assert.True(t, st.UsesRelease)
	assert.Equal(t, "250.5", st.AltUpper.String())
	assert.Equal(t, models.AltitudeHectopascal, st.AltUnit)
	assert.Equal(t, 10000, st.NumbPart)
	assert.Equal(t, models.DefaultXMass, st.XMass)
	assert.Equal(t, models.DefaultNumberGrid, st.NumberGrid)
}

func TestCheckMarginDeletable(t *testing.T) {
	db, v, _ := setup(t)
	ctx := context.Background()

	m := models.DefaultMargin()
	margin, _, err := db.MarginRepo.GetOrCreate(ctx, m)
	require.NoError(t, err)

	errs, err := v.CheckMarginDeletable(ctx, margin.ID)
	require.NoError(t, err)
	assert.True(t, errs.Empty())

	st := &models.Station{Name: "Andenes", Longitude: 16, Latitude: 69, MarginID: margin.ID}
	require.NoError(t, db.StationRepo.Create(ctx, st))

	errs, err = v.CheckMarginDeletable(ctx, margin.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Margin is used by 1 station(s) and can not be deleted."}, errs[FormField])
}

func TestErrors(t *testing.T) {
	errs := Errors{}
	assert.NoError(t, errs.OrNil())

	errs.Add("xmass", MsgXMassInteger)
	errs.Add(FormField, MsgOutsideGrids)
	errs.Add("alt_lower", MsgAltLowerRequired)

	assert.Equal(t, []string{MsgOutsideGrids, MsgAltLowerRequired, MsgXMassInteger}, errs.Messages())
	assert.Error(t, errs.OrNil())
	assert.Contains(t, errs.Error(), MsgOutsideGrids)

	more := Errors{}
	more.Add("xmass", MsgNumbPartInteger)
	errs.Merge(more)
	assert.Equal(t, []string{MsgXMassInteger, MsgNumbPartInteger}, errs["xmass"])
}
