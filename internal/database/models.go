package database

import "time"

type Group struct {
	Id        int64
	Name      string
	OwnerId   string
	CreatedAt time.Time
}

type GroupMember struct {
	GroupId   int64
	UserId    string
	Username  string
	CreatedAt time.Time
}

type Meeting struct {
	Id           int64
	GroupId      int64
	GroupOwnerId string
	HostId       string
	Title        string
	Description  string
	ScheduledAt  time.Time
	StartedAt    *time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
}

type Attendance struct {
	Id              int64
	MeetingId       int64
	UserId          string
	Username        string
	JoinedAt        *time.Time
	LeftAt          *time.Time
	DurationSeconds *int64
	Present         bool
}

type MeetingFile struct {
	Id          int64
	MeetingId   int64
	UploadedBy  string
	Filename    string
	BlobURL     string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

type CreateGroupParams struct {
	Name          string
	OwnerId       string
	OwnerUsername string
}

type CreateMeetingParams struct {
	GroupId     int64
	HostId      string
	Title       string
	Description string
	ScheduledAt time.Time
}

type CreateMeetingFileParams struct {
	MeetingId   int64
	UploadedBy  string
	Filename    string
	BlobURL     string
	Size        int64
	ContentType string
}
