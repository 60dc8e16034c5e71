package api

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/npezzotti/go-meet/internal/blob"
	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, path, field, filename string, data []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if field != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		h.Set("Content-Type", "text/plain")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func Test_uploadFile(t *testing.T) {
	data := []byte("hello")
	saved := database.MeetingFile{
		Id:          3,
		MeetingId:   11,
		UploadedBy:  memberIdentity.UserId,
		Filename:    "notes.txt",
		BlobURL:     "/files/groups/7/meetings/11/1_notes.txt",
		Size:        5,
		ContentType: "text/plain",
	}

	app := newTestApp(t)
	app.db.On("GetMeeting", mock.Anything, int64(11)).Return(testMeeting, nil).Once()
	app.db.On("IsGroupMember", mock.Anything, testGroup.Id, memberIdentity.UserId).Return(true, nil).Once()
	app.blobs.On("Upload", mock.Anything, "groups/7/meetings/11", "notes.txt", data, "text/plain").
		Return(saved.BlobURL, nil).Once()
	app.db.On("CreateMeetingFile", mock.Anything, database.CreateMeetingFileParams{
		MeetingId:   11,
		UploadedBy:  memberIdentity.UserId,
		Filename:    "notes.txt",
		BlobURL:     saved.BlobURL,
		Size:        5,
		ContentType: "text/plain",
	}).Return(saved, nil).Once()

	rr := app.do(t, uploadRequest(t, "/api/files/meetings/11", "file", "notes.txt", data), &memberIdentity)

	require.Equal(t, http.StatusCreated, rr.Code, "unexpected status, body: %s", rr.Body.String())
	got := decodeBody[types.MeetingFile](t, rr)
	assert.Equal(t, saved.BlobURL, got.BlobURL)
	assert.Equal(t, int64(5), got.Size)
}

func Test_uploadFileRejected(t *testing.T) {
	tcases := []struct {
		name     string
		field    string
		mock     func(a *testApp)
		wantCode int
	}{
		{
			name:  "unknown meeting",
			field: "file",
			mock: func(a *testApp) {
				a.db.On("GetMeeting", mock.Anything, int64(11)).Return(database.Meeting{}, database.ErrNotFound).Once()
			},
			wantCode: http.StatusNotFound,
		},
		{
			name:  "not a member",
			field: "file",
			mock: func(a *testApp) {
				a.db.On("GetMeeting", mock.Anything, int64(11)).Return(testMeeting, nil).Once()
				a.db.On("IsGroupMember", mock.Anything, testGroup.Id, memberIdentity.UserId).Return(false, nil).Once()
			},
			wantCode: http.StatusForbidden,
		},
		{
			name:  "no file part",
			field: "",
			mock: func(a *testApp) {
				a.db.On("GetMeeting", mock.Anything, int64(11)).Return(testMeeting, nil).Once()
				a.db.On("IsGroupMember", mock.Anything, testGroup.Id, memberIdentity.UserId).Return(true, nil).Once()
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name:  "invalid filename",
			field: "file",
			mock: func(a *testApp) {
				a.db.On("GetMeeting", mock.Anything, int64(11)).Return(testMeeting, nil).Once()
				a.db.On("IsGroupMember", mock.Anything, testGroup.Id, memberIdentity.UserId).Return(true, nil).Once()
				a.blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return("", blob.ErrInvalidName).Once()
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name:  "blob store failure",
			field: "file",
			mock: func(a *testApp) {
				a.db.On("GetMeeting", mock.Anything, int64(11)).Return(testMeeting, nil).Once()
				a.db.On("IsGroupMember", mock.Anything, testGroup.Id, memberIdentity.UserId).Return(true, nil).Once()
				a.blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return("", errors.New("disk full")).Once()
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			tc.mock(app)

			rr := app.do(t, uploadRequest(t, "/api/files/meetings/11", tc.field, "notes.txt", []byte("x")), &memberIdentity)
			assert.Equal(t, tc.wantCode, rr.Code, "unexpected status, body: %s", rr.Body.String())
		})
	}
}

func Test_uploadFileNotMultipart(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, jsonRequest(http.MethodPost, "/api/files/meetings/11", `{}`), &memberIdentity)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
