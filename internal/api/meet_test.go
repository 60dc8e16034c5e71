package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/npezzotti/go-meet/internal/auth"
	"github.com/npezzotti/go-meet/internal/blob"
	"github.com/npezzotti/go-meet/internal/config"
	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/server"
	"github.com/npezzotti/go-meet/internal/testutil"
	"github.com/npezzotti/go-meet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testSigningKey = []byte("test-signing-key")
	testNow        = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

	ownerIdentity  = auth.Identity{UserId: "owner-1", Name: "olive", Role: auth.RoleOwner}
	memberIdentity = auth.Identity{UserId: "member-1", Name: "mel", Role: auth.RoleMember}
)

type testApp struct {
	*MeetApp
	db    *database.MockMeetRepository
	blobs *blob.MockStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := new(database.MockMeetRepository)
	blobs := new(blob.MockStore)
	t.Cleanup(func() {
		db.AssertExpectations(t)
		blobs.AssertExpectations(t)
	})

	app := NewMeetApp(chi.NewRouter(), testutil.TestLogger(t), nil, db, blobs, &config.Config{
		ServerAddr:     "localhost:0",
		SigningKey:     testSigningKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	app.now = func() time.Time { return testNow }

	return &testApp{MeetApp: app, db: db, blobs: blobs}
}

func signToken(t *testing.T, id auth.Identity) string {
	t.Helper()

	token, err := auth.NewJWTVerifier(testSigningKey).Sign(id, time.Hour)
	require.NoError(t, err)
	return token
}

// do sends a request through the full middleware chain. A nil identity sends
// no credentials.
func (a *testApp) do(t *testing.T, req *http.Request, id *auth.Identity) *httptest.ResponseRecorder {
	t.Helper()

	if id != nil {
		req.Header.Set("Authorization", "Bearer "+signToken(t, *id))
	}

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "failed to decode body %q", rr.Body.String())
	return v
}

func TestNewMeetApp(t *testing.T) {
	logger := testutil.TestLogger(t)
	db := &database.MockMeetRepository{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewMeetApp(chi.NewRouter(), logger, nil, db, nil, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.srv, "expected server to be initialized")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.Equal(t, cfg.ServerAddr, app.srv.Addr, "expected server address to match config")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins)
	assert.NotNil(t, app.verifier, "expected a token verifier")
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			app.db.On("Ping", mock.Anything).Return(tc.mockErr).Once()

			rr := app.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func Test_createRoom(t *testing.T) {
	app := newTestApp(t)
	app.newRoomId = func() string { return "room-123" }

	rr := app.do(t, httptest.NewRequest(http.MethodPost, "/api/room/create", nil), nil)

	assert.Equal(t, http.StatusCreated, rr.Code)
	resp := decodeBody[CreateRoomResponse](t, rr)
	assert.Equal(t, "room-123", resp.RoomId)
}

func Test_createRoomDoesNotRegister(t *testing.T) {
	app := newTestApp(t)
	reg := server.NewRegistry(0, nil)
	app.rooms = reg

	rr := app.do(t, httptest.NewRequest(http.MethodPost, "/api/room/create", nil), nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	resp := decodeBody[CreateRoomResponse](t, rr)
	assert.NotEmpty(t, resp.RoomId)
	assert.False(t, reg.Exists(resp.RoomId), "expected room to materialize only on first join")
	assert.Equal(t, 0, reg.Len())
}

type discardSink struct{}

func (discardSink) Queue(*server.ServerMessage) bool { return true }

func Test_checkRoom(t *testing.T) {
	app := newTestApp(t)
	reg := server.NewRegistry(0, nil)
	app.rooms = reg

	room := reg.GetOrCreate("abc")
	for i := range 2 {
		require.NoError(t, room.AddParticipant(types.Participant{ConnectionId: fmt.Sprintf("c%d", i)}, discardSink{}))
	}

	tcases := []struct {
		name   string
		roomId string
		code   int
		want   types.Room
	}{
		{
			name:   "live room",
			roomId: "abc",
			code:   http.StatusOK,
			want:   types.Room{Id: "abc", Exists: true, ParticipantCount: 2},
		},
		{
			name:   "unknown room",
			roomId: "nope",
			code:   http.StatusNotFound,
			want:   types.Room{Id: "nope", Exists: false, ParticipantCount: 0},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			rr := app.do(t, httptest.NewRequest(http.MethodGet, "/api/room/"+tc.roomId, nil), nil)

			assert.Equal(t, tc.code, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, tc.want, decodeBody[types.Room](t, rr))
		})
	}
}

func Test_toApiError(t *testing.T) {
	tcases := []struct {
		err  error
		code int
	}{
		{NewForbiddenError(), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", NewConflictError()), http.StatusConflict},
		{database.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: group_members_pkey", database.ErrConflict), http.StatusConflict},
		{database.ErrInvalidReference, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		assert.Equal(t, tc.code, toApiError(tc.err).StatusCode, "unexpected status for %v", tc.err)
	}
}

func TestApiError(t *testing.T) {
	err := NewInternalServerError(io.ErrUnexpectedEOF)
	assert.Equal(t, "internal server error: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.Equal(t, "not found", NewNotFoundError().Error())
	assert.Equal(t, "name is required", NewBadRequestError().withMessage("name is required").Error())
}

func Test_idParam(t *testing.T) {
	tcases := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}

	for _, tc := range tcases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("groupId", tc.raw)
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

		got, err := idParam(r, "groupId")
		if tc.wantErr {
			assert.Error(t, err, "expected %q to be rejected", tc.raw)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func Test_CORS(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/room/create", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rr := app.do(t, req, nil)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}
