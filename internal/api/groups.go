package api

import (
	"net/http"
	"strings"

	"github.com/npezzotti/go-meet/internal/auth"
	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/types"
)

type CreateGroupRequest struct {
	Name string `json:"name"`
}

type AddMemberRequest struct {
	UserId   string `json:"user_id"`
	Username string `json:"username"`
}

func toGroup(g database.Group) types.Group {
	return types.Group{
		Id:        g.Id,
		Name:      g.Name,
		OwnerId:   g.OwnerId,
		CreatedAt: g.CreatedAt,
	}
}

func toGroupMember(m database.GroupMember) types.GroupMember {
	return types.GroupMember{
		UserId:   m.UserId,
		Username: m.Username,
		JoinedAt: m.CreatedAt,
	}
}

// identity is only called behind authMiddleware.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (s *MeetApp) createGroup(w http.ResponseWriter, r *http.Request) {
	caller := identity(r)
	if !caller.IsOwner() {
		s.writeError(w, NewForbiddenError().withMessage("only owners can create groups"))
		return
	}

	var req CreateGroupRequest
	if err := s.decodeJson(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.writeError(w, NewBadRequestError().withMessage("name is required"))
		return
	}

	group, err := s.db.CreateGroup(r.Context(), database.CreateGroupParams{
		Name:          req.Name,
		OwnerId:       caller.UserId,
		OwnerUsername: caller.Name,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("group created", "group_id", group.Id, "owner_id", group.OwnerId)
	s.writeJson(w, http.StatusCreated, toGroup(group))
}

func (s *MeetApp) addGroupMember(w http.ResponseWriter, r *http.Request) {
	groupId, err := idParam(r, "groupId")
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req AddMemberRequest
	if err := s.decodeJson(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	req.UserId = strings.TrimSpace(req.UserId)
	if req.UserId == "" {
		s.writeError(w, NewBadRequestError().withMessage("user_id is required"))
		return
	}

	group, err := s.db.GetGroup(r.Context(), groupId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if group.OwnerId != identity(r).UserId {
		s.writeError(w, NewForbiddenError().withMessage("only the group owner can add members"))
		return
	}

	member, err := s.db.AddGroupMember(r.Context(), groupId, req.UserId, strings.TrimSpace(req.Username))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, toGroupMember(member))
}

func (s *MeetApp) listGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupId, err := idParam(r, "groupId")
	if err != nil {
		s.writeError(w, err)
		return
	}

	group, err := s.db.GetGroup(r.Context(), groupId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	members, err := s.db.ListGroupMembers(r.Context(), groupId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := types.GroupMembers{
		GroupId:    group.Id,
		GroupName:  group.Name,
		GroupOwner: group.OwnerId,
		Members:    make([]types.GroupMember, 0, len(members)),
	}
	for _, m := range members {
		resp.Members = append(resp.Members, toGroupMember(m))
	}

	s.writeJson(w, http.StatusOK, resp)
}
