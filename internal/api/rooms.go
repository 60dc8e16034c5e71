package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-meet/internal/auth"
	"github.com/npezzotti/go-meet/internal/server"
	"github.com/npezzotti/go-meet/internal/types"
)

type CreateRoomResponse struct {
	RoomId string `json:"room_id"`
}

func (s *MeetApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("json encode", "error", err)
	}
}

func (s *MeetApp) writeError(w http.ResponseWriter, err error) {
	errResp := toApiError(err)
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *MeetApp) decodeJson(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewBadRequestError().withMessage("invalid request body")
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, NewBadRequestError().withMessage("invalid " + name)
	}
	return id, nil
}

func (s *MeetApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// createRoom hands out a fresh room id. Nothing is registered until the first
// participant joins.
func (s *MeetApp) createRoom(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusCreated, CreateRoomResponse{RoomId: s.newRoomId()})
}

func (s *MeetApp) checkRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "roomId")

	room := types.Room{Id: roomId}
	if s.rooms.Exists(roomId) {
		room.Exists = true
		room.ParticipantCount = s.rooms.ParticipantCount(roomId)
		s.writeJson(w, http.StatusOK, room)
		return
	}

	s.writeJson(w, http.StatusNotFound, room)
}

// serveWs upgrades the request to a realtime session. A bearer token is
// optional, but one that is present must verify.
func (s *MeetApp) serveWs(w http.ResponseWriter, r *http.Request) {
	var userId string
	if token, ok := auth.BearerToken(r); ok {
		id, err := s.verifier.Verify(token)
		if err != nil {
			s.log.Debug("rejected websocket token", "error", err)
			s.writeError(w, NewUnauthorizedError())
			return
		}
		userId = id.UserId
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin) || slices.Contains(s.allowedOrigins, "*")
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		var hsErr websocket.HandshakeError
		if !errors.As(err, &hsErr) {
			s.log.Error("error upgrading connection", "error", err)
		}
		return
	}

	session := server.NewSession(conn, s.relay, s.log, userId)
	s.relay.Register(session)
	go session.Write()
	go session.Read()
}
