package database

import (
	"context"
	"time"
)

type MeetRepository interface {
	Ping(ctx context.Context) error

	CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error)
	GetGroup(ctx context.Context, groupId int64) (Group, error)
	AddGroupMember(ctx context.Context, groupId int64, userId, username string) (GroupMember, error)
	ListGroupMembers(ctx context.Context, groupId int64) ([]GroupMember, error)
	IsGroupMember(ctx context.Context, groupId int64, userId string) (bool, error)

	CreateMeeting(ctx context.Context, params CreateMeetingParams) (Meeting, error)
	GetMeeting(ctx context.Context, meetingId int64) (Meeting, error)
	StartMeeting(ctx context.Context, meetingId int64, at time.Time) (Meeting, error)
	EndMeeting(ctx context.Context, meetingId int64, at time.Time) (Meeting, error)

	JoinAttendance(ctx context.Context, meetingId int64, userId, username string, at time.Time) (Attendance, error)
	LeaveAttendance(ctx context.Context, meetingId int64, userId string, at time.Time) (Attendance, error)
	ListAttendance(ctx context.Context, meetingId int64) ([]Attendance, error)

	CreateMeetingFile(ctx context.Context, params CreateMeetingFileParams) (MeetingFile, error)
	ListMeetingFiles(ctx context.Context, meetingId int64) ([]MeetingFile, error)
}
