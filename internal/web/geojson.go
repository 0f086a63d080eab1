package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	data, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// stationsGeoJSON returns the stations in scope as points.
func (s *Server) stationsGeoJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stations, err := s.Stations.FindInCampaign(ctx, ScopeFrom(ctx).CampaignID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fc := geojson.NewFeatureCollection()
	for i := range stations {
		st := &stations[i]
		f := geojson.NewFeature(st.Point().Orb())
		f.ID = st.ID
		f.Properties["name"] = st.Name
		f.Properties["slug"] = st.Slug
		f.Properties["altitude"] = st.Altitude
		f.Properties["description"] = st.Description
		f.Properties["is_active"] = st.IsActive
		if st.StationCode != nil {
			f.Properties["station_id"] = *st.StationCode
		}
		if st.WMOID != nil {
			f.Properties["wmoid"] = *st.WMOID
		}
		fc.Append(f)
	}
	writeGeoJSON(w, fc)
}

// stationMarginGeoJSON returns the margin box of one station.
func (s *Server) stationMarginGeoJSON(w http.ResponseWriter, r *http.Request) {
	st, err := s.Stations.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{st.MarginGeom.Ring()})
	f.ID = st.ID
	f.Properties["name"] = st.Name
	fc.Append(f)
	writeGeoJSON(w, fc)
}

// domainsGeoJSON returns the domains in scope as rectangles.
func (s *Server) domainsGeoJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domains, err := s.Domains.FindInCampaign(ctx, ScopeFrom(ctx).CampaignID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fc := geojson.NewFeatureCollection()
	for i := range domains {
		d := &domains[i]
		f := geojson.NewFeature(orb.Polygon{d.Geom.Ring()})
		f.ID = d.ID
		f.Properties["name"] = d.Name
		f.Properties["slug"] = d.Slug
		f.Properties["height"] = d.Height()
		f.Properties["description"] = d.Description
		f.Properties["is_active"] = d.IsActive
		fc.Append(f)
	}
	writeGeoJSON(w, fc)
}

// gridsGeoJSON returns every registered model grid border.
func (s *Server) gridsGeoJSON(w http.ResponseWriter, r *http.Request) {
	grids, err := s.Grids.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	fc := geojson.NewFeatureCollection()
	for i := range grids {
		g := &grids[i]
		f := geojson.NewFeature(orb.Polygon{g.Border.Ring()})
		f.ID = g.ID
		f.Properties["name"] = g.Name
		f.Properties["slug"] = g.Slug
		f.Properties["date_valid_start"] = g.DateValidStart.UTC().Format("2006-01-02T15:04:05Z")
		if g.DateValidEnd != nil {
			f.Properties["date_valid_end"] = g.DateValidEnd.UTC().Format("2006-01-02T15:04:05Z")
		}
		if g.LeadTime != nil {
			f.Properties["leadtime_hours"] = g.LeadTime.Hours()
		}
		fc.Append(f)
	}
	writeGeoJSON(w, fc)
}

func (s *Server) bordersGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc, err := s.Borders.FeatureCollection(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeGeoJSON(w, fc)
}
