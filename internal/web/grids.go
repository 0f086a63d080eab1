package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/weathervis-go/internal/services/pubsub"
	"github.com/bbernstein/weathervis-go/internal/services/validation"
)

type ingestView struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	DateValidStart string `json:"date_valid_start"`
	Outcome        string `json:"outcome"`
	Variables      int    `json:"variables"`
	GeoJSON        string `json:"geojson"`
}

// ingestGrids loads every grid of the configured parameter file.
func (s *Server) ingestGrids(w http.ResponseWriter, r *http.Request) {
	if s.Config.GridParamFile == "" {
		writeError(w, http.StatusBadRequest, "GRID_PARAM_FILE is not configured")
		return
	}

	results, err := s.Loader.IngestAll(r.Context(), s.Config.GridParamFile)
	if err != nil {
		s.Logger.Warn("grid ingestion failed", "file", s.Config.GridParamFile, "error", err)
		errs := validation.Errors{}
		errs.Add(validation.FormField, err.Error())
		writeFormErrors(w, http.StatusUnprocessableEntity, errs)
		return
	}

	views := make([]ingestView, 0, len(results))
	for _, res := range results {
		views = append(views, ingestView{
			Name:           res.Grid.Name,
			Slug:           res.Grid.Slug,
			DateValidStart: res.Grid.DateValidStart.UTC().Format(time.RFC3339),
			Outcome:        res.Outcome.String(),
			Variables:      res.Variables,
			GeoJSON:        res.GeoJSON,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// checkOrigin accepts same-host pages, the configured front end, and
// clients that send no Origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.Config.CORSOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// exportEvents streams export completions to a websocket. The optional
// artifact query parameter restricts the stream to one artifact.
func (s *Server) exportEvents(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	sub := s.PubSub.Subscribe(pubsub.TopicExportCompleted, r.URL.Query().Get("artifact"), 16)
	defer s.PubSub.Unsubscribe(sub)
	defer conn.Close()

	// the read loop only handles control frames and notices the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.Channel:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.Logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
