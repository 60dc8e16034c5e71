package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	meetingColumns = "m.id, m.group_id, g.owner_id, m.host_id, m.title, m.description, " +
		"m.scheduled_at, m.started_at, m.ended_at, m.created_at"
	attendanceColumns = "id, meeting_id, user_id, username, joined_at, left_at, duration_seconds, present"
	fileColumns       = "id, meeting_id, uploaded_by, filename, blob_url, size, content_type, created_at"

	// whole seconds between joined_at and the given instant, never negative
	elapsedSince = "GREATEST(0, FLOOR(EXTRACT(EPOCH FROM (%s::timestamptz - joined_at))))::bigint"
)

type scanner interface {
	Scan(dest ...any) error
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullInt(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func (db *PgMeetRepository) CreateGroup(ctx context.Context, params CreateGroupParams) (Group, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Group{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var g Group
	err = tx.QueryRowContext(ctx,
		"INSERT INTO groups (name, owner_id, created_at) VALUES ($1, $2, $3) "+
			"RETURNING id, name, owner_id, created_at",
		params.Name,
		params.OwnerId,
		time.Now().UTC(),
	).Scan(&g.Id, &g.Name, &g.OwnerId, &g.CreatedAt)
	if err != nil {
		return Group{}, mapError(err)
	}

	// the owner is always a member of their own group
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO group_members (group_id, user_id, username, created_at) VALUES ($1, $2, $3, $4)",
		g.Id,
		params.OwnerId,
		params.OwnerUsername,
		g.CreatedAt,
	); err != nil {
		return Group{}, mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return Group{}, fmt.Errorf("commit: %w", err)
	}

	return g, nil
}

func (db *PgMeetRepository) GetGroup(ctx context.Context, groupId int64) (Group, error) {
	var g Group
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, name, owner_id, created_at FROM groups WHERE id = $1",
		groupId,
	).Scan(&g.Id, &g.Name, &g.OwnerId, &g.CreatedAt)

	return g, mapError(err)
}

func (db *PgMeetRepository) AddGroupMember(ctx context.Context, groupId int64, userId, username string) (GroupMember, error) {
	var m GroupMember
	err := db.conn.QueryRowContext(ctx,
		"INSERT INTO group_members (group_id, user_id, username, created_at) VALUES ($1, $2, $3, $4) "+
			"RETURNING group_id, user_id, username, created_at",
		groupId,
		userId,
		username,
		time.Now().UTC(),
	).Scan(&m.GroupId, &m.UserId, &m.Username, &m.CreatedAt)

	return m, mapError(err)
}

func (db *PgMeetRepository) ListGroupMembers(ctx context.Context, groupId int64) ([]GroupMember, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT group_id, user_id, username, created_at FROM group_members "+
			"WHERE group_id = $1 ORDER BY created_at, user_id",
		groupId,
	)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	members := make([]GroupMember, 0)
	for rows.Next() {
		var m GroupMember
		if err := rows.Scan(&m.GroupId, &m.UserId, &m.Username, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return members, nil
}

func (db *PgMeetRepository) IsGroupMember(ctx context.Context, groupId int64, userId string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)",
		groupId,
		userId,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}

	return exists, nil
}

func scanMeeting(row scanner) (Meeting, error) {
	var (
		m                  Meeting
		startedAt, endedAt sql.NullTime
	)

	err := row.Scan(
		&m.Id,
		&m.GroupId,
		&m.GroupOwnerId,
		&m.HostId,
		&m.Title,
		&m.Description,
		&m.ScheduledAt,
		&startedAt,
		&endedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return Meeting{}, mapError(err)
	}

	m.StartedAt = nullTime(startedAt)
	m.EndedAt = nullTime(endedAt)
	return m, nil
}

func (db *PgMeetRepository) CreateMeeting(ctx context.Context, params CreateMeetingParams) (Meeting, error) {
	row := db.conn.QueryRowContext(ctx,
		"WITH m AS ("+
			"INSERT INTO meetings (group_id, host_id, title, description, scheduled_at, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING *"+
			") SELECT "+meetingColumns+" FROM m JOIN groups g ON g.id = m.group_id",
		params.GroupId,
		params.HostId,
		params.Title,
		params.Description,
		params.ScheduledAt.UTC(),
		time.Now().UTC(),
	)

	return scanMeeting(row)
}

func (db *PgMeetRepository) GetMeeting(ctx context.Context, meetingId int64) (Meeting, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+meetingColumns+" FROM meetings m JOIN groups g ON g.id = m.group_id WHERE m.id = $1",
		meetingId,
	)

	return scanMeeting(row)
}

func (db *PgMeetRepository) StartMeeting(ctx context.Context, meetingId int64, at time.Time) (Meeting, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE meetings m SET started_at = $2 FROM groups g "+
			"WHERE m.id = $1 AND g.id = m.group_id RETURNING "+meetingColumns,
		meetingId,
		at.UTC(),
	)

	return scanMeeting(row)
}

// EndMeeting stamps ended_at and closes every attendance row still open, in
// one transaction.
func (db *PgMeetRepository) EndMeeting(ctx context.Context, meetingId int64, at time.Time) (Meeting, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Meeting{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	m, err := scanMeeting(tx.QueryRowContext(ctx,
		"UPDATE meetings m SET ended_at = $2 FROM groups g "+
			"WHERE m.id = $1 AND g.id = m.group_id RETURNING "+meetingColumns,
		meetingId,
		at.UTC(),
	))
	if err != nil {
		return Meeting{}, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE attendance SET left_at = $2, present = true, duration_seconds = "+fmt.Sprintf(elapsedSince, "$2")+
			" WHERE meeting_id = $1 AND left_at IS NULL AND joined_at IS NOT NULL",
		meetingId,
		at.UTC(),
	); err != nil {
		return Meeting{}, fmt.Errorf("finalize attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Meeting{}, fmt.Errorf("commit: %w", err)
	}

	return m, nil
}

func scanAttendance(row scanner) (Attendance, error) {
	var (
		a                Attendance
		joinedAt, leftAt sql.NullTime
		duration         sql.NullInt64
	)

	err := row.Scan(
		&a.Id,
		&a.MeetingId,
		&a.UserId,
		&a.Username,
		&joinedAt,
		&leftAt,
		&duration,
		&a.Present,
	)
	if err != nil {
		return Attendance{}, mapError(err)
	}

	a.JoinedAt = nullTime(joinedAt)
	a.LeftAt = nullTime(leftAt)
	a.DurationSeconds = nullInt(duration)
	return a, nil
}

// JoinAttendance records (or re-records) the caller as present from at.
func (db *PgMeetRepository) JoinAttendance(ctx context.Context, meetingId int64, userId, username string, at time.Time) (Attendance, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO attendance (meeting_id, user_id, username, joined_at, present) VALUES ($1, $2, $3, $4, true) "+
			"ON CONFLICT (meeting_id, user_id) DO UPDATE SET joined_at = EXCLUDED.joined_at, "+
			"username = EXCLUDED.username, present = true, left_at = NULL, duration_seconds = NULL "+
			"RETURNING "+attendanceColumns,
		meetingId,
		userId,
		username,
		at.UTC(),
	)

	return scanAttendance(row)
}

func (db *PgMeetRepository) LeaveAttendance(ctx context.Context, meetingId int64, userId string, at time.Time) (Attendance, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE attendance SET left_at = $3, present = true, duration_seconds = "+
			"CASE WHEN joined_at IS NULL THEN NULL ELSE "+fmt.Sprintf(elapsedSince, "$3")+" END "+
			"WHERE meeting_id = $1 AND user_id = $2 RETURNING "+attendanceColumns,
		meetingId,
		userId,
		at.UTC(),
	)

	return scanAttendance(row)
}

func (db *PgMeetRepository) ListAttendance(ctx context.Context, meetingId int64) ([]Attendance, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE meeting_id = $1 ORDER BY id",
		meetingId,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	out := make([]Attendance, 0)
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

func scanFile(row scanner) (MeetingFile, error) {
	var f MeetingFile
	err := row.Scan(
		&f.Id,
		&f.MeetingId,
		&f.UploadedBy,
		&f.Filename,
		&f.BlobURL,
		&f.Size,
		&f.ContentType,
		&f.CreatedAt,
	)

	return f, mapError(err)
}

func (db *PgMeetRepository) CreateMeetingFile(ctx context.Context, params CreateMeetingFileParams) (MeetingFile, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO meeting_files (meeting_id, uploaded_by, filename, blob_url, size, content_type, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+fileColumns,
		params.MeetingId,
		params.UploadedBy,
		params.Filename,
		params.BlobURL,
		params.Size,
		params.ContentType,
		time.Now().UTC(),
	)

	return scanFile(row)
}

func (db *PgMeetRepository) ListMeetingFiles(ctx context.Context, meetingId int64) ([]MeetingFile, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM meeting_files WHERE meeting_id = $1 ORDER BY created_at, id",
		meetingId,
	)
	if err != nil {
		return nil, fmt.Errorf("list meeting files: %w", err)
	}
	defer rows.Close()

	files := make([]MeetingFile, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return files, nil
}
