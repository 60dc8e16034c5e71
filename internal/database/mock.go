package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockMeetRepository struct {
	mock.Mock
}

func (m *MockMeetRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockMeetRepository) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Group), args.Error(1)
}

func (m *MockMeetRepository) GetGroup(ctx context.Context, groupId int64) (Group, error) {
	args := m.Called(ctx, groupId)
	return args.Get(0).(Group), args.Error(1)
}

func (m *MockMeetRepository) AddGroupMember(ctx context.Context, groupId int64, userId, username string) (GroupMember, error) {
	args := m.Called(ctx, groupId, userId, username)
	return args.Get(0).(GroupMember), args.Error(1)
}

func (m *MockMeetRepository) ListGroupMembers(ctx context.Context, groupId int64) ([]GroupMember, error) {
	args := m.Called(ctx, groupId)
	if members, ok := args.Get(0).([]GroupMember); ok {
		return members, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMeetRepository) IsGroupMember(ctx context.Context, groupId int64, userId string) (bool, error) {
	args := m.Called(ctx, groupId, userId)
	return args.Bool(0), args.Error(1)
}

func (m *MockMeetRepository) CreateMeeting(ctx context.Context, params CreateMeetingParams) (Meeting, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Meeting), args.Error(1)
}

func (m *MockMeetRepository) GetMeeting(ctx context.Context, meetingId int64) (Meeting, error) {
	args := m.Called(ctx, meetingId)
	return args.Get(0).(Meeting), args.Error(1)
}

func (m *MockMeetRepository) StartMeeting(ctx context.Context, meetingId int64, at time.Time) (Meeting, error) {
	args := m.Called(ctx, meetingId, at)
	return args.Get(0).(Meeting), args.Error(1)
}

func (m *MockMeetRepository) EndMeeting(ctx context.Context, meetingId int64, at time.Time) (Meeting, error) {
	args := m.Called(ctx, meetingId, at)
	return args.Get(0).(Meeting), args.Error(1)
}

func (m *MockMeetRepository) JoinAttendance(ctx context.Context, meetingId int64, userId, username string, at time.Time) (Attendance, error) {
	args := m.Called(ctx, meetingId, userId, username, at)
	return args.Get(0).(Attendance), args.Error(1)
}

func (m *MockMeetRepository) LeaveAttendance(ctx context.Context, meetingId int64, userId string, at time.Time) (Attendance, error) {
	args := m.Called(ctx, meetingId, userId, at)
	return args.Get(0).(Attendance), args.Error(1)
}

func (m *MockMeetRepository) ListAttendance(ctx context.Context, meetingId int64) ([]Attendance, error) {
	args := m.Called(ctx, meetingId)
	if rows, ok := args.Get(0).([]Attendance); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMeetRepository) CreateMeetingFile(ctx context.Context, params CreateMeetingFileParams) (MeetingFile, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(MeetingFile), args.Error(1)
}

func (m *MockMeetRepository) ListMeetingFiles(ctx context.Context, meetingId int64) ([]MeetingFile, error) {
	args := m.Called(ctx, meetingId)
	if files, ok := args.Get(0).([]MeetingFile); ok {
		return files, args.Error(1)
	}
	return nil, args.Error(1)
}
