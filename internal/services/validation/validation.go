// Package validation checks station forms against the registered model grids
// and the release parameter rules, and guards margin deletion. Rule failures
// are returned as Errors, never as Go errors; the error return of each
// function is reserved for storage failures.
package validation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/internal/observability"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

// Messages shown to users.
const (
	MsgNoModelGrid      = "No Weather Forecast registered. You must have registered at least one before assigning station"
	MsgOutsideGrids     = "Station is not inside any ModelGrid registered."
	MsgAltLowerRequired = "Lower altitude is a required field."
	MsgAltUpperRequired = "Upper altitude is a required field."
	MsgAltitudesOrder   = "Flexpart release altitudes aren't sorted in ascending order."
	MsgStartRequired    = "Starting date is a required field."
	MsgEndRequired      = "Ending date is a required field."
	MsgDatesOrder       = "Flexpart release dates aren't sorted in ascending order."
	MsgNumbPartInteger  = "Flexpart number of particles must be an integer."
	MsgXMassInteger     = "Flexpart xmass must be an integer."
	MsgNumberGridInt    = "Flexpart number_grid must be an integer."
	MsgCountNegative    = "Ensure this value is greater than or equal to 0."
)

// StationForm is a submitted station. Release counts are kept as text so
// non-integer input can be reported; an empty count takes its default.
type StationForm struct {
	Name        string
	Longitude   float64
	Latitude    float64
	Altitude    float64
	UsesRelease bool

	AltLower      *decimal.Decimal
	AltUpper      *decimal.Decimal
	AltUnit       models.AltitudeUnit
	StartDatetime *time.Time
	EndDatetime   *time.Time
	NumbPart      string
	XMass         string
	NumberGrid    string
}

// Point returns the submitted location.
func (f *StationForm) Point() geo.Point {
	return geo.Point{Lon: f.Longitude, Lat: f.Latitude, Alt: f.Altitude}
}

// Apply copies the release parameters of a validated form onto st.
func (f *StationForm) Apply(st *models.Station) {
	st.UsesRelease = f.UsesRelease
	st.StartDatetime = f.StartDatetime
	st.EndDatetime = f.EndDatetime
	if f.AltLower != nil {
		st.AltLower = *f.AltLower
	}
	if f.AltUpper != nil {
		st.AltUpper = *f.AltUpper
	}
	st.AltUnit = f.AltUnit
	st.NumbPart, _ = parseCount(f.NumbPart)
	st.XMass, _ = parseCount(f.XMass)
	st.NumberGrid, _ = parseCount(f.NumberGrid)
	st.ApplyReleaseDefaults()
}

// Validator checks forms against stored data.
type Validator struct {
	grids   *repositories.ModelGridRepository
	margins *repositories.MarginRepository
	metrics *observability.Metrics
}

// NewValidator creates a Validator. metrics may be nil.
func NewValidator(grids *repositories.ModelGridRepository, margins *repositories.MarginRepository, metrics *observability.Metrics) *Validator {
	return &Validator{grids: grids, margins: margins, metrics: metrics}
}

// ValidateStation checks placement and release parameters.
func (v *Validator) ValidateStation(ctx context.Context, f *StationForm) (Errors, error) {
	errs := Errors{}

	grids, err := v.grids.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load model grids: %w", err)
	}
	checkPlacement(errs, f.Point(), grids)
	checkRelease(errs, f)

	v.record("station", errs)
	return errs, nil
}

// CheckMarginDeletable rejects deleting a margin still used by a station.
func (v *Validator) CheckMarginDeletable(ctx context.Context, marginID string) (Errors, error) {
	errs := Errors{}
	n, err := v.margins.CountStations(ctx, marginID)
	if err != nil {
		return nil, fmt.Errorf("failed to count stations: %w", err)
	}
	if n > 0 {
		errs.Add(FormField, fmt.Sprintf("Margin is used by %d station(s) and can not be deleted.", n))
	}
	v.record("margin", errs)
	return errs, nil
}

func (v *Validator) record(form string, errs Errors) {
	if v.metrics != nil && !errs.Empty() {
		v.metrics.ValidationFailures.WithLabelValues(form).Inc()
	}
}

// checkPlacement requires p to lie in, or on the border of, at least one grid.
func checkPlacement(errs Errors, p geo.Point, grids []models.ModelGrid) {
	if len(grids) == 0 {
		errs.Add(FormField, MsgNoModelGrid)
		return
	}
	for i := range grids {
		if geo.PointInPolygon(p, grids[i].Border) {
			return
		}
	}
	errs.Add(FormField, MsgOutsideGrids)
}

// checkRelease applies the release rules when the release flag is set. The
// counts must be integers either way.
func checkRelease(errs Errors, f *StationForm) {
	if f.UsesRelease {
		switch {
		case f.AltLower == nil:
			errs.Add("alt_lower", MsgAltLowerRequired)
		case f.AltUpper == nil:
			errs.Add("alt_upper", MsgAltUpperRequired)
		case f.AltUpper.LessThan(*f.AltLower):
			errs.Add(FormField, MsgAltitudesOrder)
		}

		switch {
		case f.StartDatetime == nil:
			errs.Add("start_datetime", MsgStartRequired)
		case f.EndDatetime == nil:
			errs.Add("end_datetime", MsgEndRequired)
		case f.EndDatetime.Before(*f.StartDatetime):
			errs.Add(FormField, MsgDatesOrder)
		}
	}

	checkCount(errs, "numb_part", f.NumbPart, MsgNumbPartInteger)
	checkCount(errs, "xmass", f.XMass, MsgXMassInteger)
	checkCount(errs, "number_grid", f.NumberGrid, MsgNumberGridInt)
}

func checkCount(errs Errors, field, value, notInteger string) {
	n, ok := parseCount(value)
	switch {
	case !ok:
		errs.Add(field, notInteger)
	case n < 0:
		errs.Add(field, MsgCountNegative)
	}
}

// parseCount parses an integer count; empty input is 0 so defaults apply.
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
