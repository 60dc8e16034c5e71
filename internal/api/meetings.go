package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/types"
)

type CreateMeetingRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func toMeeting(m database.Meeting) types.Meeting {
	return types.Meeting{
		Id:          m.Id,
		GroupId:     m.GroupId,
		HostId:      m.HostId,
		Title:       m.Title,
		Description: m.Description,
		ScheduledAt: m.ScheduledAt,
		StartedAt:   m.StartedAt,
		EndedAt:     m.EndedAt,
		CreatedAt:   m.CreatedAt,
	}
}

func toMeetingFile(f database.MeetingFile) types.MeetingFile {
	return types.MeetingFile{
		Id:          f.Id,
		MeetingId:   f.MeetingId,
		UploadedBy:  f.UploadedBy,
		Filename:    f.Filename,
		BlobURL:     f.BlobURL,
		Size:        f.Size,
		ContentType: f.ContentType,
		CreatedAt:   f.CreatedAt,
	}
}

func toAttendance(a database.Attendance) types.Attendance {
	return types.Attendance{
		MeetingId:       a.MeetingId,
		UserId:          a.UserId,
		Username:        a.Username,
		JoinedAt:        a.JoinedAt,
		LeftAt:          a.LeftAt,
		DurationSeconds: a.DurationSeconds,
		Present:         a.Present,
	}
}

func (s *MeetApp) createMeeting(w http.ResponseWriter, r *http.Request) {
	groupId, err := idParam(r, "groupId")
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req CreateMeetingRequest
	if err := s.decodeJson(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.ScheduledAt.IsZero() {
		s.writeError(w, NewBadRequestError().withMessage("title and scheduled_at are required"))
		return
	}

	group, err := s.db.GetGroup(r.Context(), groupId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	caller := identity(r)
	if group.OwnerId != caller.UserId {
		s.writeError(w, NewForbiddenError().withMessage("only the group owner can create a meeting"))
		return
	}

	meeting, err := s.db.CreateMeeting(r.Context(), database.CreateMeetingParams{
		GroupId:     groupId,
		HostId:      caller.UserId,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("meeting created", "meeting_id", meeting.Id, "group_id", groupId)
	s.writeJson(w, http.StatusCreated, toMeeting(meeting))
}

// ownedMeeting loads the meeting named in the path and checks the caller owns
// its group.
func (s *MeetApp) ownedMeeting(r *http.Request) (database.Meeting, error) {
	meetingId, err := idParam(r, "meetingId")
	if err != nil {
		return database.Meeting{}, err
	}

	meeting, err := s.db.GetMeeting(r.Context(), meetingId)
	if err != nil {
		return database.Meeting{}, err
	}

	if meeting.GroupOwnerId != identity(r).UserId {
		return database.Meeting{}, NewForbiddenError().withMessage("only the group owner can manage this meeting")
	}

	return meeting, nil
}

func (s *MeetApp) startMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := s.ownedMeeting(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	meeting, err = s.db.StartMeeting(r.Context(), meeting.Id, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, toMeeting(meeting))
}

// endMeeting stamps the end time; open attendance rows are closed in the
// same transaction.
func (s *MeetApp) endMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := s.ownedMeeting(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	meeting, err = s.db.EndMeeting(r.Context(), meeting.Id, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, toMeeting(meeting))
}

func (s *MeetApp) getMeeting(w http.ResponseWriter, r *http.Request) {
	meetingId, err := idParam(r, "meetingId")
	if err != nil {
		s.writeError(w, err)
		return
	}

	meeting, err := s.db.GetMeeting(r.Context(), meetingId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	files, err := s.db.ListMeetingFiles(r.Context(), meetingId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	attendance, err := s.db.ListAttendance(r.Context(), meetingId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := types.MeetingDetails{
		Meeting:    toMeeting(meeting),
		Files:      make([]types.MeetingFile, 0, len(files)),
		Attendance: make([]types.Attendance, 0, len(attendance)),
	}
	for _, f := range files {
		resp.Files = append(resp.Files, toMeetingFile(f))
	}
	for _, a := range attendance {
		resp.Attendance = append(resp.Attendance, toAttendance(a))
	}

	s.writeJson(w, http.StatusOK, resp)
}
