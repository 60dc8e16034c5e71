package types

import "time"

type Group struct {
	Id        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerId   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type GroupMember struct {
	UserId   string    `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

type GroupMembers struct {
	GroupId    int64         `json:"group_id"`
	GroupName  string        `json:"group_name"`
	GroupOwner string        `json:"group_owner"`
	Members    []GroupMember `json:"members"`
}

type Meeting struct {
	Id          int64      `json:"id"`
	GroupId     int64      `json:"group_id"`
	HostId      string     `json:"host_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type MeetingDetails struct {
	Meeting
	Files      []MeetingFile `json:"files"`
	Attendance []Attendance  `json:"attendance"`
}

type Attendance struct {
	MeetingId       int64      `json:"meeting_id"`
	UserId          string     `json:"user_id"`
	Username        string     `json:"username"`
	JoinedAt        *time.Time `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at"`
	DurationSeconds *int64     `json:"duration_seconds"`
	Present         bool       `json:"present"`
}

type AttendanceEntry struct {
	UserId            string   `json:"user_id"`
	Username          string   `json:"username"`
	DurationSeconds   int64    `json:"duration_seconds"`
	AttendancePercent *float64 `json:"attendance_percent"`
}

type AttendanceReport struct {
	MeetingId              int64             `json:"meeting_id"`
	MeetingDurationSeconds *int64            `json:"meeting_duration_seconds"`
	Attendance             []AttendanceEntry `json:"attendance"`
}

type MeetingFile struct {
	Id          int64     `json:"id"`
	MeetingId   int64     `json:"meeting_id"`
	UploadedBy  string    `json:"uploaded_by"`
	Filename    string    `json:"filename"`
	BlobURL     string    `json:"blob_url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
