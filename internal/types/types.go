// Package types holds the data model shared by the daemon, the API and the TUI.
package types

import "time"

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Contact is an entry of the contact list.
type Contact struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	Online      bool      `json:"online"`
	UnreadCount int       `json:"unreadCount"`
	LastMessage string    `json:"lastMessage"`
	LastSeen    time.Time `json:"lastSeen,omitzero"`
}

// AttachmentKind is the kind of file attached to a message.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentDocument AttachmentKind = "document"
	AttachmentLocation AttachmentKind = "location"
)

// LatLng is a shared location.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Attachment describes a file attached to a message.
type Attachment struct {
	Name     string         `json:"name"`
	Kind     AttachmentKind `json:"type"`
	URL      string         `json:"url,omitempty"`
	Size     int64          `json:"size,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
	Location *LatLng        `json:"location,omitempty"`
}

// Message is one entry of a conversation.
type Message struct {
	ID             string      `json:"id"`
	Text           string      `json:"text"`
	Sender         Sender      `json:"sender"`
	Timestamp      time.Time   `json:"timestamp"`
	Status         Status      `json:"status"`
	TranslatedText string      `json:"translatedText,omitempty"`
	Translating    bool        `json:"isTranslating,omitempty"`
	File           *Attachment `json:"file,omitempty"`
}

// MediaKind is the kind of media a story shows.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// StoryReply is a reply left on a story.
type StoryReply struct {
	ID         string    `json:"id"`
	UserName   string    `json:"userName"`
	UserAvatar string    `json:"userAvatar"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// Story is a status update.
type Story struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserAvatar string    `json:"userAvatar"`
	MediaURL   string    `json:"mediaUrl"`
	MediaKind  MediaKind `json:"mediaType"`
	// MediaDuration is the clip length of a video when known.
	MediaDuration time.Duration `json:"mediaDuration,omitempty"`
	Caption       string        `json:"caption,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	Replies       []StoryReply  `json:"replies"`
	ViewCount     int           `json:"viewCount"`
}

// StoryGroup is the ordered list of stories of one author.
type StoryGroup struct {
	UserID     string  `json:"userId"`
	UserName   string  `json:"userName"`
	UserAvatar string  `json:"userAvatar"`
	Stories    []Story `json:"stories"`
}

// MyUserID is the owner id of stories posted by the local user.
const MyUserID = "me"

// Profile is the local user's profile.
type Profile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	About  string `json:"about"`
}

// DefaultProfile returns the profile used when none has been saved.
func DefaultProfile() Profile {
	return Profile{
		Name:   "The Boss",
		Avatar: "https://picsum.photos/seed/boss/200",
		About:  "Quality is not an act, it is a habit. 👑",
	}
}

// CallKind selects audio-only or audio+video calls.
type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

// CallStatus is the lifecycle stage of a call session.
type CallStatus string

const (
	CallIdle      CallStatus = "idle"
	CallCalling   CallStatus = "calling"
	CallConnected CallStatus = "connected"
	CallEnded     CallStatus = "ended"
)

// CallState is a point-in-time view of the call session.
type CallState struct {
	Active       bool          `json:"active"`
	Kind         CallKind      `json:"kind"`
	Contact      Contact       `json:"contact"`
	Status       CallStatus    `json:"status"`
	StartedAt    time.Time     `json:"startedAt,omitzero"`
	Elapsed      time.Duration `json:"elapsed"`
	Participants []Contact     `json:"participants"`
	Pending      []Contact     `json:"pending"`
	Muted        bool          `json:"muted"`
	VideoOff     bool          `json:"videoOff"`
}
