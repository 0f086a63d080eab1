package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/services/validation"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

const (
	msgRequired          = "This field is required."
	msgInvalidDate       = "Enter a valid date/time."
	msgNegativeEdge      = "Margin offsets must not be negative."
	msgStationExists     = "Station with this Name already exists."
	msgStationSlugExists = "Station with this Slug already exists (%s)."
)

// count accepts a JSON number or string and keeps its text, so a fractional
// or non-numeric count can be reported instead of failing the decode.
type count string

func (c *count) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = count(s)
		return nil
	}
	*c = count(b)
	return nil
}

type marginRequest struct {
	West  *decimal.Decimal `json:"west"`
	East  *decimal.Decimal `json:"east"`
	North *decimal.Decimal `json:"north"`
	South *decimal.Decimal `json:"south"`
}

// apply overrides the offsets of m that are set in req.
func (req *marginRequest) apply(m *models.Margin, errs validation.Errors) {
	if req == nil {
		return
	}
	for _, f := range []struct {
		v   *decimal.Decimal
		dst *decimal.Decimal
	}{{req.West, &m.West}, {req.East, &m.East}, {req.North, &m.North}, {req.South, &m.South}} {
		if f.v == nil {
			continue
		}
		if f.v.IsNegative() {
			errs.Add("margin", msgNegativeEdge)
			return
		}
		*f.dst = *f.v
	}
}

type stationRequest struct {
	Name        string         `json:"name"`
	Longitude   float64        `json:"longitude"`
	Latitude    float64        `json:"latitude"`
	Altitude    float64        `json:"altitude"`
	StationID   *string        `json:"station_id"`
	WMOID       *string        `json:"wmoid"`
	Description string         `json:"description"`
	IsActive    *bool          `json:"is_active"`
	Margin      *marginRequest `json:"margin"`

	UsesRelease   bool                `json:"uses_release"`
	AltLower      *decimal.Decimal    `json:"alt_lower"`
	AltUpper      *decimal.Decimal    `json:"alt_upper"`
	AltUnit       models.AltitudeUnit `json:"alt_unit"`
	StartDatetime string              `json:"start_datetime"`
	EndDatetime   string              `json:"end_datetime"`
	NumbPart      count               `json:"numb_part"`
	XMass         count               `json:"xmass"`
	NumberGrid    count               `json:"number_grid"`

	Plots     []string `json:"plots"`
	Campaigns []string `json:"campaigns"`
}

// form converts the request, recording unparsable dates and units in errs.
func (req *stationRequest) form(name string, errs validation.Errors) *validation.StationForm {
	if req.AltUnit != 0 && !req.AltUnit.Valid() {
		errs.Add("alt_unit", fmt.Sprintf("Select a valid choice. %d is not one of the available choices.", req.AltUnit))
	}
	return &validation.StationForm{
		Name:          name,
		Longitude:     req.Longitude,
		Latitude:      req.Latitude,
		Altitude:      req.Altitude,
		UsesRelease:   req.UsesRelease,
		AltLower:      req.AltLower,
		AltUpper:      req.AltUpper,
		AltUnit:       req.AltUnit,
		StartDatetime: parseDate(errs, "start_datetime", req.StartDatetime),
		EndDatetime:   parseDate(errs, "end_datetime", req.EndDatetime),
		NumbPart:      string(req.NumbPart),
		XMass:         string(req.XMass),
		NumberGrid:    string(req.NumberGrid),
	}
}

func parseDate(errs validation.Errors, field, value string) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		errs.Add(field, msgInvalidDate)
		return nil
	}
	t = t.UTC()
	return &t
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

type stationView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Slug           string   `json:"slug"`
	Longitude      float64  `json:"longitude"`
	Latitude       float64  `json:"latitude"`
	Altitude       float64  `json:"altitude"`
	StationID      *string  `json:"station_id"`
	WMOID          *string  `json:"wmoid"`
	Description    string   `json:"description"`
	IsActive       bool     `json:"is_active"`
	ActiveCampaign *string  `json:"active_campaign"`
	MarginID       string   `json:"margin_id"`
	UsesRelease    bool     `json:"uses_release"`
	Plots          []string `json:"plots"`
	Campaigns      []string `json:"campaigns"`
}

func newStationView(st *models.Station) stationView {
	v := stationView{
		ID:             st.ID,
		Name:           st.Name,
		Slug:           st.Slug,
		Longitude:      st.Longitude,
		Latitude:       st.Latitude,
		Altitude:       st.Altitude,
		StationID:      st.StationCode,
		WMOID:          st.WMOID,
		Description:    st.Description,
		IsActive:       st.IsActive,
		ActiveCampaign: st.ActiveCampaign,
		MarginID:       st.MarginID,
		UsesRelease:    st.UsesRelease,
		Plots:          []string{},
		Campaigns:      []string{},
	}
	for _, p := range st.Plots {
		v.Plots = append(v.Plots, p.Name)
	}
	for _, c := range st.Campaigns {
		v.Campaigns = append(v.Campaigns, c.ID)
	}
	return v
}

// checkStation validates a request. name is the name the station will carry
// and selfID the station being updated, if any.
func (s *Server) checkStation(ctx context.Context, req *stationRequest, name, selfID string) (validation.Errors, *validation.StationForm, error) {
	errs := validation.Errors{}
	if name == "" {
		errs.Add("name", msgRequired)
	} else {
		existing, err := s.Stations.FindByName(ctx, name)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil && existing.ID != selfID {
			errs.Add("name", msgStationExists)
		} else {
			twin, err := s.Stations.FindBySlug(ctx, models.Slugify(name))
			if err != nil {
				return nil, nil, err
			}
			if twin != nil && twin.ID != selfID {
				errs.Add("name", fmt.Sprintf(msgStationSlugExists, twin.Name))
			}
		}
	}

	form := req.form(name, errs)
	formErrs, err := s.Validator.ValidateStation(ctx, form)
	if err != nil {
		return nil, nil, err
	}
	errs.Merge(formErrs)
	return errs, form, nil
}

// fill copies a validated request onto st.
func fill(st *models.Station, req *stationRequest, form *validation.StationForm, margin models.Margin) {
	st.Longitude = req.Longitude
	st.Latitude = req.Latitude
	st.Altitude = req.Altitude
	st.StationCode = nonEmpty(req.StationID)
	st.WMOID = nonEmpty(req.WMOID)
	st.Description = req.Description
	if req.IsActive != nil {
		st.IsActive = *req.IsActive
	}

	margin.ID = ""
	st.MarginID = ""
	st.Margin = &margin
	st.MarginGeom = geo.MarginToPolygon(st.Longitude, st.Latitude, st.Altitude, margin.Offsets())

	form.Apply(st)

	st.Plots = nil
	for _, id := range req.Plots {
		st.Plots = append(st.Plots, models.StationsPlot{ID: id})
	}
	st.Campaigns = nil
	for _, id := range req.Campaigns {
		st.Campaigns = append(st.Campaigns, models.Campaign{ID: id})
	}
	st.Campaigns = joinCampaign(st.Campaigns, st.ActiveCampaign)
}

func (s *Server) createStation(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	name := models.Capitalize(req.Name)

	errs, form, err := s.checkStation(ctx, &req, name, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	campaignID, err := s.sessionCampaign(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	margin := models.DefaultMargin()
	req.Margin.apply(&margin, errs)
	if !errs.Empty() {
		writeFormErrors(w, http.StatusUnprocessableEntity, errs)
		return
	}

	st := &models.Station{Name: name, IsActive: true, ActiveCampaign: campaignID}
	fill(st, &req, form, margin)
	if err := s.Stations.Create(ctx, st); err != nil {
		s.Logger.Error("failed to create station", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondStation(w, r, http.StatusCreated, st.ID)
}

// updateStation saves a station. The name is fixed once created.
func (s *Server) updateStation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.Stations.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}

	var req stationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	errs, form, err := s.checkStation(ctx, &req, st.Name, st.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	margin := models.DefaultMargin()
	if st.Margin != nil {
		margin = *st.Margin
	}
	req.Margin.apply(&margin, errs)
	if !errs.Empty() {
		writeFormErrors(w, http.StatusUnprocessableEntity, errs)
		return
	}

	fill(st, &req, form, margin)
	if err := s.Stations.Update(ctx, st); err != nil {
		s.Logger.Error("failed to update station", "id", st.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondStation(w, r, http.StatusOK, st.ID)
}

func (s *Server) respondStation(w http.ResponseWriter, r *http.Request, status int, id string) {
	st, err := s.Stations.FindByID(r.Context(), id)
	if err != nil || st == nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to reload station %s", id))
		return
	}
	writeJSON(w, status, newStationView(st))
}

func (s *Server) deleteStation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.Stations.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}
	if err := s.Stations.Delete(ctx, st.ID); err != nil {
		s.Logger.Error("failed to delete station", "id", st.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
