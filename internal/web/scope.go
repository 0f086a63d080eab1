package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/bbernstein/weathervis-go/internal/database/models"
	"github.com/bbernstein/weathervis-go/internal/services/scope"
)

type campaignRequest struct {
	CampaignID *string `json:"campaign_id"`
}

type scopeResponse struct {
	CampaignID string `json:"campaign_id"`
	Rows       int64  `json:"rows,omitempty"`
	Redirect   string `json:"redirect"`
}

// selectCampaign records the campaign in the session and on every record,
// then points at the first station in scope.
func (s *Server) selectCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CampaignID != nil && *req.CampaignID == "" {
		req.CampaignID = nil
	}

	ctx := r.Context()
	sc, err := s.Scope.SelectCampaign(ctx, req.CampaignID)
	if errors.Is(err, scope.ErrCampaignNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.Logger.Error("failed to select campaign", "campaign", req.CampaignID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.Sessions.Write(w, sc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	target, err := s.Scope.RedirectTarget(ctx, scope.Stations, sc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scopeResponse{CampaignID: sc.ID(), Redirect: target.Path()})
}

func (s *Server) setAllActive(kind scope.Kind, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sc := ScopeFrom(ctx)

		var (
			rows int64
			err  error
		)
		if active {
			rows, err = s.Scope.EnableAll(ctx, kind, sc)
		} else {
			rows, err = s.Scope.DisableAll(ctx, kind, sc)
		}
		if err != nil {
			s.Logger.Error("bulk update failed", "kind", kind, "active", active, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		target, err := s.Scope.RedirectTarget(ctx, kind, sc)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, scopeResponse{CampaignID: sc.ID(), Rows: rows, Redirect: target.Path()})
	}
}

// redirect sends the client to the first record in scope, or to the
// creation form when there is none.
func (s *Server) redirect(kind scope.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := s.Scope.RedirectTarget(r.Context(), kind, ScopeFrom(r.Context()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		http.Redirect(w, r, target.Path(), http.StatusFound)
	}
}

// sessionCampaign returns the campaign selected in the request's session, or
// nil when none is selected or it has since been deleted.
func (s *Server) sessionCampaign(ctx context.Context) (*string, error) {
	sc := ScopeFrom(ctx)
	if !sc.Active() {
		return nil, nil
	}
	campaign, err := s.Campaigns.FindByID(ctx, sc.ID())
	if err != nil || campaign == nil {
		return nil, err
	}
	id := campaign.ID
	return &id, nil
}

// joinCampaign adds the active campaign to campaigns unless already present.
// A record always belongs to the campaign it was saved under.
func joinCampaign(campaigns []models.Campaign, active *string) []models.Campaign {
	if active == nil {
		return campaigns
	}
	for _, c := range campaigns {
		if c.ID == *active {
			return campaigns
		}
	}
	return append(campaigns, models.Campaign{ID: *active})
}
