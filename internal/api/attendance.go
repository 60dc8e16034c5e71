package api

import (
	"math"
	"net/http"

	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/types"
)

func (s *MeetApp) joinMeeting(w http.ResponseWriter, r *http.Request) {
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

	caller := identity(r)
	member, err := s.db.IsGroupMember(r.Context(), meeting.GroupId, caller.UserId)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !member {
		s.writeError(w, NewForbiddenError().withMessage("not a group member"))
		return
	}

	att, err := s.db.JoinAttendance(r.Context(), meetingId, caller.UserId, caller.Name, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, toAttendance(att))
}

func (s *MeetApp) leaveMeeting(w http.ResponseWriter, r *http.Request) {
	meetingId, err := idParam(r, "meetingId")
	if err != nil {
		s.writeError(w, err)
		return
	}

	att, err := s.db.LeaveAttendance(r.Context(), meetingId, identity(r).UserId, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, toAttendance(att))
}

func (s *MeetApp) attendanceReport(w http.ResponseWriter, r *http.Request) {
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

	rows, err := s.db.ListAttendance(r.Context(), meetingId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, buildAttendanceReport(meeting, rows))
}

// buildAttendanceReport computes each attendee's share of the meeting.
// Percentages are only known once the meeting has both started and ended.
func buildAttendanceReport(m database.Meeting, rows []database.Attendance) types.AttendanceReport {
	report := types.AttendanceReport{
		MeetingId:  m.Id,
		Attendance: make([]types.AttendanceEntry, 0, len(rows)),
	}

	if m.StartedAt != nil && m.EndedAt != nil {
		d := max(1, int64(m.EndedAt.Sub(*m.StartedAt).Seconds()))
		report.MeetingDurationSeconds = &d
	}

	for _, a := range rows {
		var duration int64
		switch {
		case a.DurationSeconds != nil && *a.DurationSeconds > 0:
			duration = *a.DurationSeconds
		case a.JoinedAt != nil && m.EndedAt != nil:
			duration = int64(m.EndedAt.Sub(*a.JoinedAt).Seconds())
		}

		entry := types.AttendanceEntry{
			UserId:          a.UserId,
			Username:        a.Username,
			DurationSeconds: duration,
		}
		if report.MeetingDurationSeconds != nil {
			pct := math.Round(100*float64(duration)/float64(*report.MeetingDurationSeconds)*100) / 100
			entry.AttendancePercent = &pct
		}

		report.Attendance = append(report.Attendance, entry)
	}

	return report
}
