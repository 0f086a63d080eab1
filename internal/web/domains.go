package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/services/validation"
	"github.com/bbernstein/weathervis-go/pkg/geo"
)

const (
	msgDomainExists     = "Domain with this Name already exists."
	msgDomainSlugExists = "Domain with this Slug already exists (%s)."
)

type domainRequest struct {
	Name        string   `json:"name"`
	West        float64  `json:"west"`
	East        float64  `json:"east"`
	North       float64  `json:"north"`
	South       float64  `json:"south"`
	Height      float64  `json:"height"`
	Description string   `json:"description"`
	IsActive    *bool    `json:"is_active"`
	Plots       []string `json:"plots"`
	Campaigns   []string `json:"campaigns"`
}

func (req *domainRequest) fill(d *models.Domain) {
	d.Geom = geo.Rectangle(req.West, req.East, req.North, req.South, req.Height)
	d.Description = req.Description
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	d.Plots = nil
	for _, id := range req.Plots {
		d.Plots = append(d.Plots, models.DomainsPlot{ID: id})
	}
	d.Campaigns = nil
	for _, id := range req.Campaigns {
		d.Campaigns = append(d.Campaigns, models.Campaign{ID: id})
	}
	d.Campaigns = joinCampaign(d.Campaigns, d.ActiveCampaign)
}

type domainView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	West        float64  `json:"west"`
	East        float64  `json:"east"`
	North       float64  `json:"north"`
	South       float64  `json:"south"`
	Height      float64  `json:"height"`
	Description string   `json:"description"`
	IsActive    bool     `json:"is_active"`
	Plots       []string `json:"plots"`
	Campaigns   []string `json:"campaigns"`
}

func newDomainView(d *models.Domain) domainView {
	v := domainView{
		ID:          d.ID,
		Name:        d.Name,
		Slug:        d.Slug,
		West:        d.West(),
		East:        d.East(),
		North:       d.North(),
		South:       d.South(),
		Height:      d.Height(),
		Description: d.Description,
		IsActive:    d.IsActive,
		Plots:       []string{},
		Campaigns:   []string{},
	}
	for _, p := range d.Plots {
		v.Plots = append(v.Plots, p.Name)
	}
	for _, c := range d.Campaigns {
		v.Campaigns = append(v.Campaigns, c.ID)
	}
	return v
}

// checkDomainName rejects a missing name and one that collides with an
// existing domain by name or by slug.
func (s *Server) checkDomainName(ctx context.Context, name string) (validation.Errors, error) {
	errs := validation.Errors{}
	if name == "" {
		errs.Add("name", msgRequired)
		return errs, nil
	}
	existing, err := s.Domains.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		errs.Add("name", msgDomainExists)
		return errs, nil
	}
	twin, err := s.Domains.FindBySlug(ctx, models.Slugify(name))
	if err != nil {
		return nil, err
	}
	if twin != nil {
		errs.Add("name", fmt.Sprintf(msgDomainSlugExists, twin.Name))
	}
	return errs, nil
}

func (s *Server) createDomain(w http.ResponseWriter, r *http.Request) {
	var req domainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	name := models.Capitalize(req.Name)

	errs, err := s.checkDomainName(ctx, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !errs.Empty() {
		writeFormErrors(w, http.StatusUnprocessableEntity, errs)
		return
	}
	campaignID, err := s.sessionCampaign(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	d := &models.Domain{Name: name, IsActive: true, ActiveCampaign: campaignID}
	req.fill(d)
	if err := s.Domains.Create(ctx, d); err != nil {
		s.Logger.Error("failed to create domain", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondDomain(w, r, http.StatusCreated, d.ID)
}

// updateDomain saves a domain. The name is fixed once created.
func (s *Server) updateDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.Domains.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "domain not found")
		return
	}
	var req domainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.fill(d)
	if err := s.Domains.Update(ctx, d); err != nil {
		s.Logger.Error("failed to update domain", "id", d.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondDomain(w, r, http.StatusOK, d.ID)
}

func (s *Server) respondDomain(w http.ResponseWriter, r *http.Request, status int, id string) {
	d, err := s.Domains.FindByID(r.Context(), id)
	if err != nil || d == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload domain "+id)
		return
	}
	writeJSON(w, status, newDomainView(d))
}

func (s *Server) deleteDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.Domains.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "domain not found")
		return
	}
	if err := s.Domains.Delete(ctx, d.ID); err != nil {
		s.Logger.Error("failed to delete domain", "id", d.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
