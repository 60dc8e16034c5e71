package types

import (
	"time"
)

type MediaKind string

const (
	MediaAudio  MediaKind = "audio"
	MediaVideo  MediaKind = "video"
	MediaScreen MediaKind = "screen"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaAudio, MediaVideo, MediaScreen:
		return true
	}
	return false
}

type Participant struct {
	ConnectionId  string    `json:"connection_id"`
	DisplayName   string    `json:"display_name"`
	UserId        string    `json:"user_id,omitempty"`
	AudioEnabled  bool      `json:"audio_enabled"`
	VideoEnabled  bool      `json:"video_enabled"`
	ScreenSharing bool      `json:"screen_sharing"`
	JoinedAt      time.Time `json:"joined_at"`
}

type ChatMessage struct {
	Id         string    `json:"id"`
	SenderId   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

type StrokeTool string

const (
	ToolPen    StrokeTool = "pen"
	ToolEraser StrokeTool = "eraser"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Stroke struct {
	Tool   StrokeTool `json:"tool"`
	Color  string     `json:"color"`
	Width  float64    `json:"width"`
	Points []Point    `json:"points"`
}

// Valid reports whether the stroke can be stored in a whiteboard snapshot.
func (s Stroke) Valid() bool {
	if s.Tool != ToolPen && s.Tool != ToolEraser {
		return false
	}
	return s.Width > 0
}

type Room struct {
	Id               string `json:"room_id"`
	Exists           bool   `json:"exists"`
	ParticipantCount int    `json:"participant_count"`
}
