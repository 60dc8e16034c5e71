package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/npezzotti/go-meet/internal/auth"
	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testGroup = database.Group{
	Id:        7,
	Name:      "standup",
	OwnerId:   ownerIdentity.UserId,
	CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func Test_createGroup(t *testing.T) {
	tcases := []struct {
		name     string
		caller   *auth.Identity
		body     string
		mock     func(db *database.MockMeetRepository)
		wantCode int
	}{
		{
			name:   "owner creates group",
			caller: &ownerIdentity,
			body:   `{"name":" standup "}`,
			mock: func(db *database.MockMeetRepository) {
				db.On("CreateGroup", mock.Anything, database.CreateGroupParams{
					Name:          "standup",
					OwnerId:       ownerIdentity.UserId,
					OwnerUsername: ownerIdentity.Name,
				}).Return(testGroup, nil).Once()
			},
			wantCode: http.StatusCreated,
		},
		{
			name:     "member is forbidden",
			caller:   &memberIdentity,
			body:     `{"name":"standup"}`,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "anonymous is unauthorized",
			body:     `{"name":"standup"}`,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "missing name",
			caller:   &ownerIdentity,
			body:     `{"name":"   "}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid body",
			caller:   &ownerIdentity,
			body:     `{`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:   "database failure",
			caller: &ownerIdentity,
			body:   `{"name":"standup"}`,
			mock: func(db *database.MockMeetRepository) {
				db.On("CreateGroup", mock.Anything, mock.Anything).Return(database.Group{}, errors.New("db down")).Once()
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			if tc.mock != nil {
				tc.mock(app.db)
			}

			rr := app.do(t, jsonRequest(http.MethodPost, "/api/groups", tc.body), tc.caller)

			assert.Equal(t, tc.wantCode, rr.Code, "unexpected status, body: %s", rr.Body.String())
			if tc.wantCode == http.StatusCreated {
				got := decodeBody[types.Group](t, rr)
				assert.Equal(t, testGroup.Id, got.Id)
				assert.Equal(t, testGroup.OwnerId, got.OwnerId)
			}
		})
	}
}

func Test_addGroupMember(t *testing.T) {
	member := database.GroupMember{GroupId: testGroup.Id, UserId: "u2", Username: "una", CreatedAt: testNow}

	tcases := []struct {
		name     string
		caller   *auth.Identity
		path     string
		body     string
		mock     func(db *database.MockMeetRepository)
		wantCode int
	}{
		{
			name:   "owner adds member",
			caller: &ownerIdentity,
			path:   "/api/groups/7/members",
			body:   `{"user_id":"u2","username":"una"}`,
			mock: func(db *database.MockMeetRepository) {
				db.On("GetGroup", mock.Anything, int64(7)).Return(testGroup, nil).Once()
				db.On("AddGroupMember", mock.Anything, int64(7), "u2", "una").Return(member, nil).Once()
			},
			wantCode: http.StatusCreated,
		},
		{
			name:   "already a member",
			caller: &ownerIdentity,
			path:   "/api/groups/7/members",
			body:   `{"user_id":"u2"}`,
			mock: func(db *database.MockMeetRepository) {
				db.On("GetGroup", mock.Anything, int64(7)).Return(testGroup, nil).Once()
				db.On("AddGroupMember", mock.Anything, int64(7), "u2", "").Return(database.GroupMember{}, database.ErrConflict).Once()
			},
			wantCode: http.StatusConflict,
		},
		{
			name:   "unknown group",
			caller: &ownerIdentity,
			path:   "/api/groups/8/members",
			body:   `{"user_id":"u2"}`,
			mock: func(db *database.MockMeetRepository) {
				db.On("GetGroup", mock.Anything, int64(8)).Return(database.Group{}, database.ErrNotFound).Once()
			},
			wantCode: http.StatusNotFound,
		},
		{
			name:   "not the owner",
			caller: &memberIdentity,
			path:   "/api/groups/7/members",
			body:   `{"user_id":"u2"}`,
			mock: func(db *database.MockMeetRepository) {
				db.On("GetGroup", mock.Anything, int64(7)).Return(testGroup, nil).Once()
			},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing user id",
			caller:   &ownerIdentity,
			path:     "/api/groups/7/members",
			body:     `{"username":"una"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad group id",
			caller:   &ownerIdentity,
			path:     "/api/groups/seven/members",
			body:     `{"user_id":"u2"}`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			if tc.mock != nil {
				tc.mock(app.db)
			}

			rr := app.do(t, jsonRequest(http.MethodPost, tc.path, tc.body), tc.caller)
			assert.Equal(t, tc.wantCode, rr.Code, "unexpected status, body: %s", rr.Body.String())
		})
	}
}

func Test_listGroupMembers(t *testing.T) {
	app := newTestApp(t)
	app.db.On("GetGroup", mock.Anything, int64(7)).Return(testGroup, nil).Once()
	app.db.On("ListGroupMembers", mock.Anything, int64(7)).Return([]database.GroupMember{
		{GroupId: 7, UserId: ownerIdentity.UserId, Username: "olive", CreatedAt: testNow},
		{GroupId: 7, UserId: "u2", Username: "una", CreatedAt: testNow},
	}, nil).Once()

	rr := app.do(t, httptest.NewRequest(http.MethodGet, "/api/groups/7/members", nil), &memberIdentity)

	assert.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[types.GroupMembers](t, rr)
	assert.Equal(t, int64(7), got.GroupId)
	assert.Equal(t, "standup", got.GroupName)
	assert.Equal(t, ownerIdentity.UserId, got.GroupOwner)
	assert.Len(t, got.Members, 2)
	assert.Equal(t, "una", got.Members[1].Username)
}

func Test_listGroupMembersEmpty(t *testing.T) {
	app := newTestApp(t)
	app.db.On("GetGroup", mock.Anything, int64(7)).Return(testGroup, nil).Once()
	app.db.On("ListGroupMembers", mock.Anything, int64(7)).Return(nil, nil).Once()

	rr := app.do(t, httptest.NewRequest(http.MethodGet, "/api/groups/7/members", nil), &ownerIdentity)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"members":[]`)
}
