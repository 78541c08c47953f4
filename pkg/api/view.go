package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/viewmodel"
)

const wsWriteTimeout = 10 * time.Second

type (
	tabRequest struct {
		Tab string `json:"tab"`
	}
	driverRequest struct {
		Driver string `json:"driver"`
	}
	streamMessage struct {
		Type string             `json:"type"`
		Body viewmodel.Snapshot `json:"body"`
	}
)

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) handleViewTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tab, err := model.ParseTab(req.Tab)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.vm.SetActiveTab(tab); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) handleViewDriver(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.vm.SetSelectedDriver(req.Driver); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) handleViewRecompute(w http.ResponseWriter, r *http.Request) {
	if _, err := s.vm.Recompute(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.vm.Snapshot())
}

// handleWS streams snapshots of the view model until the client disconnects
// or the view model is closed.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	l := log.GetFromContext(r.Context())
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn("websocket upgrade failed", log.ErrorField(err))
		return
	}
	defer c.Close()

	ch := s.vm.Subscribe()
	defer s.vm.CancelSubscription(ch)

	// reading is required to process control frames and to detect a close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()
	l.Debug("websocket client connected", log.String("remote", r.RemoteAddr))
	for {
		select {
		case <-closed:
			l.Debug("websocket client disconnected", log.String("remote", r.RemoteAddr))
			return
		case snap, ok := <-ch:
			if !ok {
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
					time.Now().Add(time.Second))
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.WriteJSON(streamMessage{Type: "snapshot", Body: snap}); err != nil {
				l.Debug("websocket write failed", log.ErrorField(err))
				return
			}
		}
	}
}
