package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/database/repositories"
	"github.com/bbernstein/weathervis-go/internal/services/scope"
	"github.com/bbernstein/weathervis-go/internal/services/validation"
)

type plotRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Command     string `json:"command"`
	Options     string `json:"options"`
	Description string `json:"description"`
}

type plotView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Command     string `json:"command"`
	Options     string `json:"options"`
	Description string `json:"description"`
}

// savePlot creates a plot, or updates it when the body carries an id.
func (s *Server) savePlot(w http.ResponseWriter, r *http.Request) {
	kind := scope.Kind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "unknown plot kind")
		return
	}
	var req plotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		errs := validation.Errors{}
		errs.Add("name", msgRequired)
		writeFormErrors(w, http.StatusUnprocessableEntity, errs)
		return
	}

	ctx := r.Context()
	var (
		view   plotView
		err    error
		status = http.StatusCreated
	)
	if req.ID != "" {
		status = http.StatusOK
	}
	switch kind {
	case scope.Stations:
		p := &models.StationsPlot{ID: req.ID, Name: req.Name, Command: req.Command, Options: req.Options, Description: req.Description}
		err = s.Plots.SaveStationPlot(ctx, p)
		view = plotView{p.ID, p.Name, p.Command, p.Options, p.Description}
	case scope.Domains:
		p := &models.DomainsPlot{ID: req.ID, Name: req.Name, Command: req.Command, Options: req.Options, Description: req.Description}
		err = s.Plots.SaveDomainPlot(ctx, p)
		view = plotView{p.ID, p.Name, p.Command, p.Options, p.Description}
	}
	if err != nil {
		s.Logger.Error("failed to save plot", "kind", kind, "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, status, view)
}

func (s *Server) deletePlot(w http.ResponseWriter, r *http.Request) {
	kind := scope.Kind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var err error
	switch kind {
	case scope.Stations:
		var p *models.StationsPlot
		if p, err = s.Plots.FindStationPlot(ctx, id); err == nil && p == nil {
			writeError(w, http.StatusNotFound, "plot not found")
			return
		}
		if err == nil {
			err = s.Plots.DeleteStationPlot(ctx, id)
		}
	case scope.Domains:
		var p *models.DomainsPlot
		if p, err = s.Plots.FindDomainPlot(ctx, id); err == nil && p == nil {
			writeError(w, http.StatusNotFound, "plot not found")
			return
		}
		if err == nil {
			err = s.Plots.DeleteDomainPlot(ctx, id)
		}
	default:
		writeError(w, http.StatusNotFound, "unknown plot kind")
		return
	}
	if err != nil {
		s.Logger.Error("failed to delete plot", "kind", kind, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteMargin refuses with 409 while a station still uses the margin.
func (s *Server) deleteMargin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	m, err := s.Margins.FindByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "margin not found")
		return
	}
	errs, err := s.Validator.CheckMarginDeletable(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !errs.Empty() {
		writeFormErrors(w, http.StatusConflict, errs)
		return
	}

	if err := s.Margins.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrMarginInUse) {
			errs.Add(validation.FormField, err.Error())
			writeFormErrors(w, http.StatusConflict, errs)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
