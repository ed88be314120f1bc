// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/JojoErer/dashboard-peugeot-106/internal/maptile"
	"github.com/JojoErer/dashboard-peugeot-106/internal/render"
	"github.com/JojoErer/dashboard-peugeot-106/internal/state"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the dashboard is only reachable on the car's own network
	},
}

// Server exposes a Dashboard over HTTP.
type Server struct {
	dash    *Dashboard
	maps    *maptile.Renderer
	webRoot string
}

// NewServer serves d. maps may be nil when no tiles are configured; webRoot
// is the directory of static files, empty for none.
func NewServer(d *Dashboard, maps *maptile.Renderer, webRoot string) *Server {
	return &Server{dash: d, maps: maps, webRoot: webRoot}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Get("/gps", s.getGPS)
		r.Get("/map.png", s.getMap)
		r.Get("/clock.png", s.getClock)
		r.Get("/accel.png", s.getAccel)

		r.Post("/view/next", s.postNextView)
		r.Post("/view/{name}", s.postSelectView)
		r.Post("/overlay/next", s.postNextOverlay)
		r.Post("/update", s.postUpdate)
		r.Post("/calibrate", s.postCalibrate)
		r.Post("/buttons/{name}", s.postButton)
	})
	r.Get("/ws", s.handleWS)

	if s.webRoot != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.webRoot)))
	}
	return r
}

// RunWeb serves h on addr until ctx is done.
func RunWeb(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondPNG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		log.Printf("web: png encode error: %v", err)
	}
}

// sizeParam reads ?size=, clamped to a sane range.
func sizeParam(r *http.Request, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || v <= 0 {
		return def
	}
	return min(max(v, 32), 2048)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.dash.Store().Snapshot())
}

func (s *Server) getGPS(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.dash.GPSFix())
}

// getMap renders around the current position, or ?lat=&lon= when given.
func (s *Server) getMap(w http.ResponseWriter, r *http.Request) {
	if s.maps == nil {
		respondError(w, http.StatusServiceUnavailable, "no map configured")
		return
	}
	st := s.dash.Store().Snapshot()
	lat, lon := st.CenterLat, st.CenterLon
	q := r.URL.Query()
	if q.Has("lat") || q.Has("lon") {
		var err1, err2 error
		lat, err1 = strconv.ParseFloat(q.Get("lat"), 64)
		lon, err2 = strconv.ParseFloat(q.Get("lon"), 64)
		if err1 != nil || err2 != nil {
			respondError(w, http.StatusBadRequest, "invalid lat/lon")
			return
		}
	}
	img, err := s.maps.Render(lat, lon)
	if err != nil {
		log.Printf("web: map render: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondPNG(w, img)
}

func dayColor(st state.Dashboard) color.Color {
	if st.IsDaytime {
		return color.White
	}
	return color.NRGBA{255, 220, 0, 255}
}

func (s *Server) getClock(w http.ResponseWriter, r *http.Request) {
	st := s.dash.Store().Snapshot()
	respondPNG(w, render.Clock(s.dash.Now(), sizeParam(r, 400), dayColor(st)))
}

func (s *Server) getAccel(w http.ResponseWriter, r *http.Request) {
	st := s.dash.Store().Snapshot()
	respondPNG(w, render.Accel(st.AX, st.AY, sizeParam(r, 400)))
}

func (s *Server) postNextView(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"currentView": s.dash.NextView()})
}

func (s *Server) postSelectView(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.dash.SelectView(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"currentView": name})
}

func (s *Server) postNextOverlay(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"overlayVisible": s.dash.NextOverlay()})
}

func (s *Server) postUpdate(w http.ResponseWriter, r *http.Request) {
	started := s.dash.RequestUpdate()
	st := s.dash.Store().Snapshot()
	status := http.StatusAccepted
	if !started {
		status = http.StatusConflict
	}
	respondJSON(w, status, map[string]any{"started": started, "updateStatus": st.UpdateStatus})
}

func (s *Server) postCalibrate(w http.ResponseWriter, r *http.Request) {
	if !s.dash.Calibrate() {
		respondError(w, http.StatusConflict, "calibration already in progress")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"calibrationState": state.CalibrationCalibrating})
}

func (s *Server) postButton(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.PressButton(chi.URLParam(r, "name")); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// wsMessage is a command from a websocket client.
type wsMessage struct {
	Action string `json:"action"` // nextView, selectView, nextOverlay, update, calibrate, press
	View   string `json:"view,omitempty"`
	Button string `json:"button,omitempty"`
}

// wsEvent is pushed to websocket clients.
type wsEvent struct {
	Type    string           `json:"type"` // state, ack, error
	Fields  []string         `json:"fields,omitempty"`
	State   *state.Dashboard `json:"state,omitempty"`
	Action  string           `json:"action,omitempty"`
	Message string           `json:"message,omitempty"`
}

// handleWS streams state changes and accepts commands. The first event is
// the full state.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	changes, unsubscribe := s.dash.Store().Subscribe(16)
	defer unsubscribe()
	replies := make(chan wsEvent, 4)
	done := make(chan struct{})

	initial := s.dash.Store().Snapshot()
	if err := conn.WriteJSON(wsEvent{Type: "state", State: &initial}); err != nil {
		return
	}

	// gorilla connections allow one writer; everything is written from here
	go func() {
		defer close(done)
		for {
			var ev wsEvent
			select {
			case c, ok := <-changes:
				if !ok {
					return
				}
				ev = wsEvent{Type: "state", Fields: c.Fields, State: &c.State}
			case ev = <-replies:
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("web: websocket read error: %v", err)
			}
			break
		}
		reply := s.dispatch(msg)
		select {
		case replies <- reply:
		case <-done:
		}
	}
	unsubscribe()
	<-done
}

func (s *Server) dispatch(msg wsMessage) wsEvent {
	ack := wsEvent{Type: "ack", Action: msg.Action}
	switch msg.Action {
	case "nextView":
		ack.Message = s.dash.NextView()
	case "selectView":
		if err := s.dash.SelectView(msg.View); err != nil {
			return wsEvent{Type: "error", Action: msg.Action, Message: err.Error()}
		}
	case "nextOverlay":
		ack.Message = strconv.FormatBool(s.dash.NextOverlay())
	case "update":
		if !s.dash.RequestUpdate() {
			return wsEvent{Type: "error", Action: msg.Action, Message: s.dash.Store().Snapshot().UpdateStatus}
		}
	case "calibrate":
		if !s.dash.Calibrate() {
			return wsEvent{Type: "error", Action: msg.Action, Message: "calibration already in progress"}
		}
	case "press":
		if err := s.dash.PressButton(msg.Button); err != nil {
			return wsEvent{Type: "error", Action: msg.Action, Message: err.Error()}
		}
	default:
		return wsEvent{Type: "error", Action: msg.Action, Message: "unknown action"}
	}
	return ack
}
