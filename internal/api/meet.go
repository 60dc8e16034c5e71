package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-meet/internal/auth"
	"github.com/npezzotti/go-meet/internal/blob"
	"github.com/npezzotti/go-meet/internal/config"
	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/server"
)

const maxUploadBytes = 32 << 20

// RoomDirectory answers existence and occupancy questions about live rooms.
type RoomDirectory interface {
	Exists(id string) bool
	ParticipantCount(id string) int
}

type MeetApp struct {
	log            *slog.Logger
	db             database.MeetRepository
	relay          *server.Relay
	rooms          RoomDirectory
	blobs          blob.Store
	verifier       auth.Verifier
	allowedOrigins []string
	srv            *http.Server
	newRoomId      func() string
	now            func() time.Time
}

// NewMeetApp mounts every route on r and wraps it in the shared middleware
// chain.
func NewMeetApp(r chi.Router, logger *slog.Logger, relay *server.Relay, db database.MeetRepository, blobs blob.Store, cfg *config.Config) *MeetApp {
	s := &MeetApp{
		log:            logger,
		db:             db,
		relay:          relay,
		blobs:          blobs,
		verifier:       auth.NewJWTVerifier(cfg.SigningKey),
		allowedOrigins: cfg.AllowedOrigins,
		newRoomId:      uuid.NewString,
		now:            func() time.Time { return time.Now().UTC() },
	}
	if relay != nil {
		s.rooms = relay.Registry()
	}

	r.Get("/healthz", s.healthCheck)
	r.Get("/ws", s.serveWs)

	r.Route("/api", func(r chi.Router) {
		r.Post("/room/create", s.createRoom)
		r.Get("/room/{roomId}", s.checkRoom)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/groups", s.createGroup)
			r.Post("/groups/{groupId}/members", s.addGroupMember)
			r.Get("/groups/{groupId}/members", s.listGroupMembers)

			r.Post("/meetings/groups/{groupId}", s.createMeeting)
			r.Patch("/meetings/{meetingId}/start", s.startMeeting)
			r.Patch("/meetings/{meetingId}/end", s.endMeeting)
			r.Get("/meetings/{meetingId}", s.getMeeting)

			r.Post("/attendance/{meetingId}/join", s.joinMeeting)
			r.Post("/attendance/{meetingId}/leave", s.leaveMeeting)
			r.Get("/attendance/{meetingId}", s.attendanceReport)

			r.Post("/files/meetings/{meetingId}", s.uploadFile)
		})
	})

	if fs, ok := blobs.(interface{ Handler() http.Handler }); ok {
		prefix := "/files"
		if u, err := url.Parse(cfg.Blob.BaseURL); err == nil && u.Path != "" {
			prefix = u.Path
		}
		r.Handle(prefix+"/*", fs.Handler())
	}

	var h http.Handler = r
	h = handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(h)
	h = s.errorHandler(h)
	h = middleware.RealIP(h)
	h = middleware.RequestID(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *MeetApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *MeetApp) Start() error {
	s.log.Info("starting server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *MeetApp) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
