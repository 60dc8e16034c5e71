package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/npezzotti/go-meet/internal/blob"
	"github.com/npezzotti/go-meet/internal/database"
)

func (s *MeetApp) uploadFile(w http.ResponseWriter, r *http.Request) {
	meetingId, err := idParam(r, "meetingId")
	if err != nil {
		s.writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, NewRequestTooLargeError())
			return
		}
		s.writeError(w, NewBadRequestError().withMessage("file required"))
		return
	}
	defer r.MultipartForm.RemoveAll()

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

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, NewBadRequestError().withMessage("file required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	folder := fmt.Sprintf("groups/%d/meetings/%d", meeting.GroupId, meeting.Id)
	blobURL, err := s.blobs.Upload(r.Context(), folder, header.Filename, data, contentType)
	if errors.Is(err, blob.ErrInvalidName) {
		s.writeError(w, NewBadRequestError().withMessage("invalid filename"))
		return
	}
	if err != nil {
		s.writeError(w, fmt.Errorf("upload blob: %w", err))
		return
	}

	saved, err := s.db.CreateMeetingFile(r.Context(), database.CreateMeetingFileParams{
		MeetingId:   meeting.Id,
		UploadedBy:  caller.UserId,
		Filename:    header.Filename,
		BlobURL:     blobURL,
		Size:        int64(len(data)),
		ContentType: contentType,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("file uploaded", "meeting_id", meeting.Id, "filename", header.Filename, "size", saved.Size)
	s.writeJson(w, http.StatusCreated, toMeetingFile(saved))
}
